package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"envmon_dashboard/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Stream message types.
const (
	msgView  = "view"
	msgToast = "toast"
	msgError = "error"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins once the dashboard host is fixed in config
}

// wsPanel holds the panel open for the lifetime of the connection, pushes
// its view at the interval and forwards toasts for the panel's kind.
func (h *Handler) wsPanel(c *gin.Context) {
	kind := kindFrom(c)
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	v, err := h.services.Panels.Open(ctx, kind)
	if err != nil && v.Identity.Kind == "" {
		h.log.Errorw("ws_panel_open_failed", "kind", string(kind), "err", err)
		_ = h.write(conn, wsEnvelope{Type: msgError, Error: err.Error()})
		return
	}
	defer h.services.Panels.Close(context.WithoutCancel(ctx), kind)

	var toasts <-chan models.Notification
	if h.notes != nil {
		ch, cancel := h.notes.Subscribe()
		defer cancel()
		toasts = ch
	}

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := h.write(conn, wsEnvelope{Type: msgView, Data: v}); err != nil {
		h.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := h.sendView(ctx, conn, kind); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		case n, ok := <-toasts:
			if !ok {
				toasts = nil
				continue
			}
			if n.Kind != "" && n.Kind != kind {
				continue
			}
			if err := h.write(conn, wsEnvelope{Type: msgToast, Data: n}); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		}
	}
}

// Helper: parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := h.streamInterval
	if interval <= 0 {
		interval = defaultInterval
	}

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Infow("ws_read_closed", "err", err)
			return
		}
	}
}

// Helper: sendView writes the panel's current view.
func (h *Handler) sendView(ctx context.Context, conn *websocket.Conn, kind models.SensorKind) error {
	v, err := h.services.Panels.View(ctx, kind)
	if err != nil {
		h.log.Errorw("ws_get_view_failed", "kind", string(kind), "err", err)
		return err
	}
	return h.write(conn, wsEnvelope{Type: msgView, Data: v})
}

func (h *Handler) write(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
