package accessgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/metrics"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/notify"
)

// DefaultSecret is the shared control-panel secret used when none is configured.
const DefaultSecret = "0517"

// WrongSecretMessage is the warning shown after a mismatched attempt.
const WrongSecretMessage = "wrong secret, try again"

// Gate decision outcomes, used as metric labels.
const (
	OutcomeApproved  = "approved"
	OutcomeDenied    = "denied"
	OutcomeCancelled = "cancelled"
)

// Approver is what controllers depend on.
type Approver interface {
	Approve(ctx context.Context, message string) bool
}

// Prompter asks the operator for the secret. attempt starts at 1 and grows
// after every wrong answer; ok=false means the operator cancelled.
type Prompter interface {
	Prompt(ctx context.Context, message string, attempt int) (secret string, ok bool)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, message string, attempt int) (string, bool)

func (f PrompterFunc) Prompt(ctx context.Context, message string, attempt int) (string, bool) {
	return f(ctx, message, attempt)
}

// OneShot answers the first prompt with secret and cancels every retry,
// since a request header cannot be re-entered. An empty secret cancels.
func OneShot(secret string) Prompter {
	return PrompterFunc(func(_ context.Context, _ string, attempt int) (string, bool) {
		if attempt > 1 || secret == "" {
			return "", false
		}
		return secret, true
	})
}

type prompterKey struct{}

// WithPrompter attaches the request-scoped prompter to ctx.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, prompterKey{}, p)
}

// PrompterFrom returns the prompter attached to ctx, if any.
func PrompterFrom(ctx context.Context) (Prompter, bool) {
	p, ok := ctx.Value(prompterKey{}).(Prompter)
	return p, ok && p != nil
}

// Gate compares answers against a single shared secret held as a bcrypt
// hash. It is a deterrent against accidental commands, not authentication:
// there is no lockout and no backoff.
type Gate struct {
	hash     []byte
	cost     int
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger
}

var _ Approver = (*Gate)(nil)

// Option customizes a Gate.
type Option func(*Gate)

// WithCost sets the bcrypt cost used to hash the secret.
func WithCost(cost int) Option {
	return func(g *Gate) { g.cost = cost }
}

// WithNotifier routes wrong-secret warnings to n.
func WithNotifier(n notify.Notifier) Option {
	return func(g *Gate) {
		if n != nil {
			g.notifier = n
		}
	}
}

// WithMetrics records gate decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithLogger sets the gate logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// New hashes secret and returns a gate guarding it.
func New(secret string, opts ...Option) (*Gate, error) {
	g := &Gate{
		cost:     bcrypt.DefaultCost,
		notifier: notify.Nop{},
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	hash, err := hashSecret(secret, g.cost)
	if err != nil {
		return nil, err
	}
	g.hash = hash
	return g, nil
}

// Check reports whether secret matches the shared secret.
func (g *Gate) Check(secret string) bool {
	return bcrypt.CompareHashAndPassword(g.hash, []byte(secret)) == nil
}

// Approve prompts until the operator enters the right secret or cancels.
// A context without a prompter is treated as a cancel.
func (g *Gate) Approve(ctx context.Context, message string) bool {
	p, ok := PrompterFrom(ctx)
	if !ok {
		g.decide(OutcomeCancelled, message, 0)
		return false
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			g.decide(outcomeAfter(attempt), message, attempt-1)
			return false
		}
		secret, ok := p.Prompt(ctx, message, attempt)
		if !ok {
			g.decide(outcomeAfter(attempt), message, attempt-1)
			return false
		}
		if g.Check(secret) {
			g.decide(OutcomeApproved, message, attempt-1)
			return true
		}
		g.log.Warnw("gate_wrong_secret", "action", message, "attempt", attempt)
		g.notifier.Notify(models.Notification{Level: models.LevelWarning, Message: WrongSecretMessage})
	}
}

// outcomeAfter distinguishes a plain cancel from giving up after a wrong answer.
func outcomeAfter(attempt int) string {
	if attempt > 1 {
		return OutcomeDenied
	}
	return OutcomeCancelled
}

func (g *Gate) decide(outcome, message string, wrong int) {
	g.metrics.GateDecision(outcome)
	g.log.Infow("gate_decision", "outcome", outcome, "action", message, "wrong_attempts", wrong)
}

func hashSecret(secret string, cost int) ([]byte, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("secret is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return hash, nil
}
