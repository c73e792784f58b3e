package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"klinecollector/internal/collector"
	"klinecollector/internal/memorystore"
	"klinecollector/internal/ratebudget"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Source provides the current values sent to a client when it connects.
type Source interface {
	State() collector.State
	Stats() collector.Stats
	RateLimit() ratebudget.State
}

// Hub fans session events out to websocket clients. A client that cannot keep
// up with its send buffer is disconnected instead of blocking the publisher.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	source  Source
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger.Named("stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the feed is read-only and served to the local control UI
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) SetSource(src Source) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = src
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	for _, msg := range h.initial() {
		c.send <- msg
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("feed client connected", zap.String("remote", r.RemoteAddr))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) initial() [][]byte {
	h.mu.RLock()
	src := h.source
	h.mu.RUnlock()
	if src == nil {
		return nil
	}

	var out [][]byte
	for _, ev := range []struct {
		typ  string
		data any
	}{
		{EventState, src.State()},
		{EventStats, src.Stats()},
		{EventRateLimit, src.RateLimit()},
	} {
		if msg, err := h.encode(ev.typ, ev.data); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("feed client read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (h *Hub) encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("encode feed event", zap.String("type", typ), zap.Error(err))
		return nil, err
	}
	return json.Marshal(Event{Type: typ, Ts: time.Now().UnixMilli(), Data: raw})
}

func (h *Hub) publish(typ string, data any) {
	msg, err := h.encode(typ, data)
	if err != nil {
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow feed client")
		h.remove(c)
	}
}

func (h *Hub) StateChanged(s collector.State)      { h.publish(EventState, s) }
func (h *Hub) StatsUpdated(s collector.Stats)      { h.publish(EventStats, s) }
func (h *Hub) Logged(e collector.LogEntry)         { h.publish(EventLog, e) }
func (h *Hub) RateLimitChanged(s ratebudget.State) { h.publish(EventRateLimit, s) }

func (h *Hub) SeriesUpdated(series []memorystore.Candle) {
	summary := SeriesSummary{Count: len(series)}
	if n := len(series); n > 0 {
		first, last := series[0].Timestamp, series[n-1].Timestamp
		summary.FirstTimestamp = &first
		summary.LastTimestamp = &last
	}
	h.publish(EventSeries, summary)
}
