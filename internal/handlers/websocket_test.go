package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"envmon_dashboard/internal/controller"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/notify"
	"envmon_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// --- parseInterval unit tests ---

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil)

	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", 1 * time.Second},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 1 * time.Second},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 1 * time.Second},
		{"interval_invalid_string", "/ws?interval=bogus", 1 * time.Second},
		{"interval_ms_invalid", "/ws?interval_ms=NaN", 1 * time.Second},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"both_present_invalid_interval_ms_used", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			c, _ := gin.CreateTestContext(w)
			c.Request = req
			got := h.parseInterval(c)
			if got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

func TestParseInterval_ConfiguredDefault(t *testing.T) {
	h := NewHandler(&service.Service{}, nil, WithStreamInterval(3*time.Second))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws", nil)
	if got := h.parseInterval(c); got != 3*time.Second {
		t.Fatalf("got %v, want 3s", got)
	}
}

// --- websocket integration tests ---

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func dialPanel(t *testing.T, srv *httptest.Server, kind string) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws/panels/" + kind
	q := u.Query()
	q.Set("interval_ms", "20") // fast ticks for the test
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	return conn
}

func TestWebSocket_PanelStream_ViewsAndToasts(t *testing.T) {
	panels := &mockPanels{view: fixedView()}
	notes := notify.NewBroadcaster(8)
	s := &service.Service{Panels: panels}

	srv := httptest.NewServer(newTestRouter(s, WithNotifications(notes)))
	defer srv.Close()

	conn := dialPanel(t, srv, "mq2")

	// initial view
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != msgView || len(env.Data) == 0 {
		t.Fatalf("bad envelope: %+v", env)
	}
	var v models.View
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if !v.Open || v.Identity.Kind != models.KindMQ2 || v.State.Phase != models.PhaseOn {
		t.Fatalf("unexpected view: %+v", v)
	}

	// a toast for another panel is filtered, one for this panel arrives
	notes.Notify(models.Notification{Kind: models.KindRadio, Message: "not for us"})
	notes.Notify(models.Notification{Kind: models.KindMQ2, Message: "switched to Balance"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		env = envelope{}
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read: %v", err)
		}
		if env.Type != msgToast {
			continue
		}
		var n models.Notification
		_ = json.Unmarshal(env.Data, &n)
		if n.Message != "switched to Balance" {
			t.Fatalf("unexpected toast: %+v", n)
		}
		break
	}

	// closing the socket releases the panel
	_ = conn.Close()
	for i := 0; i < 100; i++ {
		if _, closed := panels.counts(); closed == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if opened, closed := panels.counts(); opened != 1 || closed != 1 {
		t.Fatalf("opened=%d closed=%d", opened, closed)
	}
}

func TestWebSocket_OpenFailure_SendsErrorAndCloses(t *testing.T) {
	panels := &mockPanels{noView: true, openErr: controller.ErrUnknownKind}
	srv := httptest.NewServer(newTestRouter(&service.Service{Panels: panels}))
	defer srv.Close()

	conn := dialPanel(t, srv, "bmp180")
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Type != msgError || env.Error == "" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
	if err := conn.ReadJSON(&env); err == nil {
		t.Fatalf("expected closed connection, got %+v", env)
	}
	if _, closed := panels.counts(); closed != 0 {
		t.Fatalf("panel that never opened must not be closed")
	}
}

func TestWebSocket_UnknownKindRejectedBeforeUpgrade(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&service.Service{Panels: &mockPanels{}}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws/panels/lidar"
	_, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}
