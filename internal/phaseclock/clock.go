package phaseclock

import (
	"fmt"
	"math"
	"sync"
	"time"

	"envmon_dashboard/internal/models"
)

// Display texts.
const (
	TextNoCountdown    = "no countdown"
	TextUnknown        = "unknown remaining time"
	TextAboutToSwitch  = "about to switch"
	DefaultInterval    = time.Second
	DefaultExpiryGuard = 5 * time.Second
)

// Clock derives a countdown from a server-supplied epoch deadline. It keeps
// only the deadline it was given, the manual flag and the last time it asked
// for a refresh.
type Clock struct {
	mu        sync.Mutex
	deadline  *float64
	manual    bool
	lastFired time.Time

	interval time.Duration
	guard    time.Duration
	onExpire func()
	onTick   func(text string)
	now      func() time.Time

	stop chan struct{}
}

// Option customizes a Clock.
type Option func(*Clock)

// WithInterval overrides the 1 Hz tick.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithExpiryGuard overrides the minimum spacing between two expiry callbacks.
func WithExpiryGuard(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.guard = d
		}
	}
}

// WithOnTick registers a callback receiving the text on every tick.
func WithOnTick(fn func(text string)) Option {
	return func(c *Clock) { c.onTick = fn }
}

// WithNow replaces the wall clock.
func WithNow(fn func() time.Time) Option {
	return func(c *Clock) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New creates a stopped clock. onExpire may be nil.
func New(onExpire func(), opts ...Option) *Clock {
	c := &Clock{
		interval: DefaultInterval,
		guard:    DefaultExpiryGuard,
		onExpire: onExpire,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reschedule replaces the deadline reference after a refresh resolved.
// Manual phases never count down; unknown phases have no usable deadline.
func (c *Clock) Reschedule(phase models.Phase, deadline *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.manual = phase == models.PhaseManual
	switch {
	case c.manual, phase == models.PhaseUnknown, deadline == nil:
		c.deadline = nil
	default:
		d := *deadline
		c.deadline = &d
	}
}

// Clear forgets the deadline, e.g. after a device rebind.
func (c *Clock) Clear() {
	c.Reschedule(models.PhaseUnknown, nil)
}

// Remaining returns whole seconds until the deadline, floored at zero.
// ok is false when there is nothing to count down to.
func (c *Clock) Remaining(now time.Time) (secs int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked(now)
}

func (c *Clock) remainingLocked(now time.Time) (int64, bool) {
	if c.manual || c.deadline == nil {
		return 0, false
	}
	r := math.Floor(*c.deadline - epochSeconds(now))
	if r < 0 || math.IsNaN(r) {
		r = 0
	}
	return int64(r), true
}

// Text renders the remaining time at now.
func (c *Clock) Text(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textLocked(now)
}

func (c *Clock) textLocked(now time.Time) string {
	if c.manual {
		return TextNoCountdown
	}
	secs, ok := c.remainingLocked(now)
	if !ok {
		return TextUnknown
	}
	if secs == 0 {
		return TextAboutToSwitch
	}
	return FormatDuration(secs)
}

// Tick evaluates the clock at now and fires onExpire when the deadline has
// been reached, at most once per guard interval. It reports whether it fired.
func (c *Clock) Tick(now time.Time) bool {
	c.mu.Lock()
	secs, ok := c.remainingLocked(now)
	fire := ok && secs == 0 && (c.lastFired.IsZero() || now.Sub(c.lastFired) >= c.guard)
	if fire {
		c.lastFired = now
	}
	text := c.textLocked(now)
	onExpire, onTick := c.onExpire, c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(text)
	}
	if fire && onExpire != nil {
		onExpire()
	}
	return fire
}

// Start runs the ticker. Calling Start on a running clock does nothing.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	interval := c.interval
	c.mu.Unlock()

	go c.run(stop, interval)
}

// Stop cancels the ticker. It is safe to call repeatedly and from any
// goroutine, including from inside onExpire.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Running reports whether the ticker is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Clock) run(stop <-chan struct{}, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			select {
			case <-stop:
				return
			default:
			}
			c.Tick(c.now())
		}
	}
}

// FormatDuration renders seconds as "Xm Ys" or "Ys".
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	m, s := secs/60, secs%60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
