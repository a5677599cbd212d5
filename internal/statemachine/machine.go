// Package statemachine is the wanted-state/system-state pattern shared by
// every periodic mechanism: callers request a wanted state, and once per tick
// the handler for the current system state runs and names the next one.
//
// A Machine does no locking. Its owner guards it with the same lock that
// guards the rest of the owner's state; Task wraps a Machine in that lock for
// the scheduler.
package statemachine

import (
	"fmt"
	"sync"

	"github.com/san-kum/drivenav/internal/loop"
	"github.com/san-kum/drivenav/internal/monitoring"
)

// Handler runs one tick in its system state and returns the next system
// state.
type Handler[S, W comparable] func(t float64, wanted W) S

type Config[S, W comparable] struct {
	Name     string
	Handlers map[S]Handler[S, W]
	// Initial is the system state on construction. Fallback replaces any
	// system state with no handler.
	Initial  S
	Fallback S
	Wanted   W

	// Start and Stop run under the task lock from the scheduler callbacks.
	Start func(m *Machine[S, W], t float64)
	Stop  func(m *Machine[S, W], t float64) error
}

type Machine[S, W comparable] struct {
	cfg         Config[S, W]
	system      S
	wanted      W
	transitions int
}

func New[S, W comparable](cfg Config[S, W]) *Machine[S, W] {
	if cfg.Name == "" {
		cfg.Name = "statemachine"
	}
	return &Machine[S, W]{cfg: cfg, system: cfg.Initial, wanted: cfg.Wanted}
}

func (m *Machine[S, W]) Name() string     { return m.cfg.Name }
func (m *Machine[S, W]) System() S        { return m.system }
func (m *Machine[S, W]) Wanted() W        { return m.wanted }
func (m *Machine[S, W]) Transitions() int { return m.transitions }

func (m *Machine[S, W]) SetWanted(w W) {
	m.wanted = w
}

// Force jumps straight to a system state without running a handler, used by
// commands that must take effect before the next tick.
func (m *Machine[S, W]) Force(s S) {
	m.transition(s)
}

// Step runs the current state's handler once and applies its result.
func (m *Machine[S, W]) Step(t float64) S {
	h, ok := m.cfg.Handlers[m.system]
	if !ok {
		monitoring.Warnf("%s: no handler for state %v", m.cfg.Name, m.system)
		m.transition(m.cfg.Fallback)
		return m.system
	}
	m.transition(h(t, m.wanted))
	return m.system
}

func (m *Machine[S, W]) transition(next S) {
	if next == m.system {
		return
	}
	monitoring.Infof("%s: state %v -> %v", m.cfg.Name, m.system, next)
	m.system = next
	m.transitions++
}

func (m *Machine[S, W]) String() string {
	return fmt.Sprintf("%s{system: %v, wanted: %v}", m.cfg.Name, m.system, m.wanted)
}

// Task adapts the machine to the scheduler, holding mu around every
// callback.
func (m *Machine[S, W]) Task(mu sync.Locker) loop.Task {
	return &task[S, W]{m: m, mu: mu}
}

type task[S, W comparable] struct {
	m  *Machine[S, W]
	mu sync.Locker
}

func (t *task[S, W]) OnStart(ts float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m.cfg.Start != nil {
		t.m.cfg.Start(t.m, ts)
	}
}

func (t *task[S, W]) OnLoop(ts float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m.Step(ts)
}

func (t *task[S, W]) OnStop(ts float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m.cfg.Stop != nil {
		return t.m.cfg.Stop(t.m, ts)
	}
	return nil
}
