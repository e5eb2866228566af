package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/padcal/pkg/logger"
	"github.com/okian/padcal/pkg/metrics"
)

const (
	defaultLiveInterval = 50 * time.Millisecond
	liveWriteTimeout    = time.Second
)

// LiveHandler streams pad snapshots over a websocket.
type LiveHandler struct {
	deps     Dependencies
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a live handler pushing one snapshot per interval.
// Browsers must be same-origin unless their origin is listed in origins.
func NewLiveHandler(deps Dependencies, interval time.Duration, origins ...string) *LiveHandler {
	if interval <= 0 {
		interval = defaultLiveInterval
	}
	h := &LiveHandler{
		deps:     deps,
		interval: interval,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
	if len(origins) > 0 {
		h.upgrader.CheckOrigin = allowOrigins(origins)
	}
	return h
}

// allowOrigins accepts same-origin requests, requests without an Origin
// header and the listed origins.
func allowOrigins(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowed[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// HandleLive handles GET /live. Snapshots include histories when the query
// carries history=true.
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	const op = "api.live"
	ctx := r.Context()
	log := logger.Get().Named("live")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "websocket upgrade failed", logger.Error(WrapKind(op, ErrLive, err)))
		metrics.RecordErrorByComponent("http", "live_upgrade")
		return
	}
	defer conn.Close()

	withHistory := r.URL.Query().Get("history") == "true"

	// The reader only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		if err := h.send(conn, withHistory); err != nil {
			log.Debug(ctx, "live stream ended", logger.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

func (h *LiveHandler) send(conn *websocket.Conn, withHistory bool) error {
	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(h.deps.Snapshot(withHistory))
}
