package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/models"
)

// fakeGateway is a hand-written Gateway. FetchState blocks on hold[device]
// when one is set, so tests can keep a request in flight.
type fakeGateway struct {
	mu sync.Mutex

	FetchFn  func(id models.SensorIdentity) (models.ControllerState, error)
	ModeFn   func(id models.SensorIdentity, mode models.PowerMode) (gateway.ModeResult, error)
	SwitchFn func(id models.SensorIdentity, action models.SwitchAction) (gateway.SwitchResult, error)

	hold    map[string]chan struct{}
	started chan models.SensorIdentity

	fetches  []models.SensorIdentity
	modes    []models.PowerMode
	switches []models.SwitchAction
}

func (g *fakeGateway) FetchState(_ context.Context, id models.SensorIdentity) (models.ControllerState, error) {
	g.mu.Lock()
	g.fetches = append(g.fetches, id)
	release := g.hold[id.DeviceID]
	fn := g.FetchFn
	g.mu.Unlock()

	if g.started != nil {
		g.started <- id
	}
	if release != nil {
		<-release
	}
	if fn == nil {
		return models.ControllerState{Phase: models.PhaseUnknown, BinaryState: models.StateUnknown}, nil
	}
	return fn(id)
}

func (g *fakeGateway) SetMode(_ context.Context, id models.SensorIdentity, mode models.PowerMode) (gateway.ModeResult, error) {
	g.mu.Lock()
	g.modes = append(g.modes, mode)
	fn := g.ModeFn
	g.mu.Unlock()
	if fn == nil {
		return gateway.ModeResult{Mode: mode}, nil
	}
	return fn(id, mode)
}

func (g *fakeGateway) SetSwitch(_ context.Context, id models.SensorIdentity, action models.SwitchAction) (gateway.SwitchResult, error) {
	g.mu.Lock()
	g.switches = append(g.switches, action)
	fn := g.SwitchFn
	g.mu.Unlock()
	if fn == nil {
		return gateway.SwitchResult{BinaryState: models.BinaryState(action)}, nil
	}
	return fn(id, action)
}

func (g *fakeGateway) ListDevices(context.Context) ([]models.Device, error) {
	return nil, nil
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.fetches)
}

func (g *fakeGateway) modeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.modes)
}

func (g *fakeGateway) switchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.switches)
}

// fakeApprover answers every prompt with allow and counts the prompts.
type fakeApprover struct {
	mu    sync.Mutex
	allow bool
	calls []string
}

func (a *fakeApprover) Approve(_ context.Context, message string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, message)
	return a.allow
}

func (a *fakeApprover) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// fakeTimer never fires on its own.
type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) active() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs t the way time.AfterFunc would, on the calling goroutine.
func (s *fakeScheduler) fire(t *fakeTimer) {
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.f()
}

type fakeNotifier struct {
	mu    sync.Mutex
	items []models.Notification
}

func (n *fakeNotifier) Notify(x models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, x)
}

func (n *fakeNotifier) last() (models.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) == 0 {
		return models.Notification{}, false
	}
	return n.items[len(n.items)-1], true
}

type harness struct {
	c     *Controller
	gw    *fakeGateway
	gate  *fakeApprover
	sched *fakeScheduler
	notes *fakeNotifier
	now   time.Time
}

func newHarness(t *testing.T, kind models.SensorKind, deviceID string, gw *fakeGateway, now time.Time) *harness {
	t.Helper()
	h := &harness{
		gw:    gw,
		gate:  &fakeApprover{allow: true},
		sched: &fakeScheduler{},
		notes: &fakeNotifier{},
		now:   now,
	}
	c, err := New(kind, deviceID, Config{
		Gateway:   gw,
		Gate:      h.gate,
		Notifier:  h.notes,
		Scheduler: h.sched,
		Now:       func() time.Time { return h.now },
		Tick:      time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func epoch(sec float64) time.Time {
	whole := int64(sec)
	return time.Unix(whole, int64((sec-float64(whole))*1e9))
}

func fptr(f float64) *float64 { return &f }
