package chart

import (
	"sync"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
)

// Handle owns the spec currently backing one chart widget.
// Replace releases the previous spec before the new one becomes visible,
// so repeated refreshes never hold more than one spec per widget.
type Handle struct {
	name      string
	onRelease func(model.ChartSpec)

	mu      sync.RWMutex
	spec    model.ChartSpec
	present bool
	version uint64
}

// NewHandle creates an empty handle. onRelease, if non-nil, is called with
// every spec that gets replaced or closed.
func NewHandle(name string, onRelease func(model.ChartSpec)) *Handle {
	return &Handle{
		name:      name,
		onRelease: onRelease,
	}
}

// Name returns the widget name the handle was created with
func (h *Handle) Name() string {
	if h == nil {
		return ""
	}
	return h.name
}

// Replace swaps in a new spec and returns it with its assigned version
func (h *Handle) Replace(spec model.ChartSpec) model.ChartSpec {
	if h == nil {
		return spec
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLocked()

	h.version++
	spec.Version = h.version
	h.spec = spec
	h.present = true

	return spec
}

// Current returns the live spec and whether one exists
func (h *Handle) Current() (model.ChartSpec, bool) {
	if h == nil {
		return model.ChartSpec{}, false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.spec, h.present
}

// Close releases the current spec, leaving the handle empty
func (h *Handle) Close() {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLocked()
}

func (h *Handle) releaseLocked() {
	if !h.present {
		return
	}

	old := h.spec
	h.spec = model.ChartSpec{}
	h.present = false

	if h.onRelease != nil {
		h.onRelease(old)
	}
}
