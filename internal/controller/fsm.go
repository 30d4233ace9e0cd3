package controller

import (
	"context"
	"fmt"
	"reflect"

	"github.com/qmuntal/stateless"

	"envmon_dashboard/internal/models"
)

// triggerResolve moves the machine to the phase carried as its argument.
// Refreshes, failures and rebinds all resolve; any phase may follow any other.
const triggerResolve = "resolve"

type phaseMachine struct {
	sm *stateless.StateMachine
}

// newPhaseMachine builds the phase machine starting in unknown. enterPending
// and exitPending run on every entry to and exit from pending, including
// pending -> pending.
func newPhaseMachine(enterPending, exitPending func()) *phaseMachine {
	sm := stateless.NewStateMachine(models.PhaseUnknown)
	sm.SetTriggerParameters(triggerResolve, reflect.TypeOf(models.PhaseUnknown))

	to := func(_ context.Context, args ...any) (stateless.State, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("resolve: expected one phase argument, got %d", len(args))
		}
		p, ok := args[0].(models.Phase)
		if !ok {
			return nil, fmt.Errorf("resolve: unexpected argument %T", args[0])
		}
		return p, nil
	}
	for _, p := range models.AllPhases {
		sm.Configure(p).PermitDynamic(triggerResolve, to)
	}

	sm.Configure(models.PhasePending).
		OnEntry(func(_ context.Context, _ ...any) error {
			enterPending()
			return nil
		}).
		OnExit(func(_ context.Context, _ ...any) error {
			exitPending()
			return nil
		})

	return &phaseMachine{sm: sm}
}

func (m *phaseMachine) resolve(p models.Phase) error {
	return m.sm.Fire(triggerResolve, p)
}

func (m *phaseMachine) current() models.Phase {
	p, _ := m.sm.MustState().(models.Phase)
	return p
}
