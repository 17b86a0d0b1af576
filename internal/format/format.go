package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Placeholder is rendered for missing, zero or non-numeric values
const Placeholder = "—"

var palette = [...]string{
	"#06d6a0", "#4cc9f0", "#f72585", "#ffd166", "#48bfe3", "#8338ec",
	"#ff7b00", "#80ed99", "#00f5d4", "#a2d2ff", "#ef476f", "#06b6d4",
	"#22c55e", "#f59e0b", "#38bdf8",
}

// PaletteSize is the number of distinct colors before the palette repeats
const PaletteSize = len(palette)

type band struct {
	threshold float64
	suffix    string
}

var bands = []band{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// FmtUSD renders a value as a compact dollar amount: $1.50K, $2.50M, $3.00.
// It accepts numbers, numeric strings and decimals. Anything that is not a
// finite non-zero number renders as Placeholder.
func FmtUSD(v any) string {
	n, ok := toFloat(v)
	if !ok || n == 0 {
		return Placeholder
	}

	for _, b := range bands {
		if n >= b.threshold {
			return fmt.Sprintf("$%.2f%s", n/b.threshold, b.suffix)
		}
	}

	p := message.NewPrinter(language.English)
	return "$" + p.Sprintf("%.2f", n)
}

// ColorPalette returns count colors, cycling through the fixed palette
func ColorPalette(count int) []string {
	if count <= 0 {
		return []string{}
	}

	colors := make([]string, count)
	for i := range colors {
		colors[i] = palette[i%PaletteSize]
	}
	return colors
}

func toFloat(v any) (float64, bool) {
	var n float64

	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		f, err := cast.ToFloat64E(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		n = f
	case decimal.Decimal:
		n = x.InexactFloat64()
	case decimal.NullDecimal:
		if !x.Valid {
			return 0, false
		}
		n = x.Decimal.InexactFloat64()
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, false
		}
		n = f
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
