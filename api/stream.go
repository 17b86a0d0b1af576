package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Stream settings
const (
	streamWriteWait  = 10 * time.Second
	streamBufferSize = 4

	// RefreshMessage sent by a client asks the scheduler for a refresh
	RefreshMessage = "refresh"
)

// StreamHub pushes the KPI summary to websocket clients after each refresh.
// Slow clients whose buffer fills up are dropped.
type StreamHub struct {
	upgrader  websocket.Upgrader
	onRefresh func()
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	latest  *model.KPISummary
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan model.KPISummary
	once sync.Once
}

func (sc *streamClient) close() {
	sc.once.Do(func() {
		close(sc.send)
	})
}

// NewStreamHub creates a hub. onRefresh, if non-nil, is called when a client
// sends RefreshMessage.
func NewStreamHub(onRefresh func(), logger *slog.Logger) *StreamHub {
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		onRefresh: onRefresh,
		logger:    logger,
		clients:   make(map[*streamClient]struct{}),
	}
}

// Publish sends kpis to every connected client and keeps it for new ones
func (sh *StreamHub) Publish(kpis model.KPISummary) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.latest = &kpis

	for client := range sh.clients {
		select {
		case client.send <- kpis:
		default:
			sh.logger.Warn("dropping slow stream client")
			sh.removeLocked(client)
		}
	}
}

// Clients returns the number of connected clients
func (sh *StreamHub) Clients() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.clients)
}

// Close disconnects every client and rejects new ones
func (sh *StreamHub) Close() {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.closed = true
	for client := range sh.clients {
		sh.removeLocked(client)
	}
}

// ServeWS handles GET /api/v1/stream requests
func (sh *StreamHub) ServeWS(c *gin.Context) {
	conn, err := sh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		sh.logger.Debug("stream upgrade failed", slog.Any("error", err))
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan model.KPISummary, streamBufferSize),
	}

	if !sh.register(client) {
		conn.Close()
		return
	}

	go sh.writeLoop(client)
	sh.readLoop(client)
}

func (sh *StreamHub) register(client *streamClient) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.closed {
		return false
	}

	sh.clients[client] = struct{}{}
	if sh.latest != nil {
		client.send <- *sh.latest
	}

	sh.logger.Debug("stream client connected", slog.Int("clients", len(sh.clients)))
	return true
}

func (sh *StreamHub) remove(client *streamClient) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.removeLocked(client)
}

func (sh *StreamHub) removeLocked(client *streamClient) {
	if _, ok := sh.clients[client]; !ok {
		return
	}
	delete(sh.clients, client)
	client.close()
}

func (sh *StreamHub) writeLoop(client *streamClient) {
	defer client.conn.Close()

	for kpis := range client.send {
		if err := client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
			return
		}
		if err := client.conn.WriteJSON(kpis); err != nil {
			sh.logger.Debug("stream write failed", slog.Any("error", err))
			sh.remove(client)
			return
		}
	}

	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
}

func (sh *StreamHub) readLoop(client *streamClient) {
	defer sh.remove(client)

	for {
		_, msg, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		if strings.TrimSpace(string(msg)) == RefreshMessage && sh.onRefresh != nil {
			sh.onRefresh()
		}
	}
}
