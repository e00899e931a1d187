// Package feed streams newly recorded event-log entries to dashboard clients
// over WebSocket.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/identity"
)

const (
	// DefaultBuffer is the per-subscriber queue length.
	DefaultBuffer = 32

	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

type subscriber struct {
	userID string
	ch     chan *domain.EventLog
}

// Hub fans event-log entries out to connected WebSocket clients. A slow
// client drops entries instead of blocking Publish.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	buffer   int
	patterns []string
	dropped  atomic.Uint64
}

// NewHub creates a hub. origins are the allowed CORS origins; "*" accepts any.
func NewHub(buffer int, origins []string) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:     make(map[*subscriber]struct{}),
		buffer:   buffer,
		patterns: originPatterns(origins),
	}
}

// originPatterns converts configured origins to the host patterns the
// websocket library matches against.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// Publish queues entry for every matching subscriber.
func (h *Hub) Publish(entry *domain.EventLog) {
	if entry == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.userID != "" && sub.userID != entry.UserID {
			continue
		}
		select {
		case sub.ch <- entry:
		default:
			h.dropped.Add(1)
			slog.Debug("Feed subscriber is slow, dropping entry", "event_id", entry.ID, "user_id", sub.userID)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many entries slow subscribers have missed.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) subscribe(userID string) *subscriber {
	sub := &subscriber{userID: userID, ch: make(chan *domain.EventLog, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams entries until the client goes
// away. The optional user_id query parameter restricts the stream to one
// client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	caller := identity.CallerFromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.patterns})
	if err != nil {
		slog.Error("Failed to accept feed WebSocket", "error", err, "caller", caller)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("Failed to close feed websocket", "error", closeErr)
		}
	}()

	// The feed is write-only; CloseRead handles control frames and cancels
	// ctx when the client disconnects.
	ctx := conn.CloseRead(r.Context())

	sub := h.subscribe(userID)
	defer h.unsubscribe(sub)
	slog.Info("Feed client connected", "caller", caller, "user_id", userID, "subscribers", h.Subscribers())

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Feed client disconnected", "caller", caller, "user_id", userID)
			return
		case entry := <-sub.ch:
			if err := h.write(ctx, conn, entry); err != nil {
				slog.Debug("Feed write failed", "error", err)
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				slog.Debug("Feed ping failed", "error", err)
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, entry *domain.EventLog) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, entry)
}
