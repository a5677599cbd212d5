package statemachine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/drivenav/internal/loop"
	"github.com/san-kum/drivenav/internal/monitoring"
)

type rollerState string
type rollerWant string

const (
	idling     rollerState = "idling"
	harvesting rollerState = "harvesting"
	ejecting   rollerState = "ejecting"
	disabling  rollerState = "disabling"

	wantIdle    rollerWant = "idle"
	wantHarvest rollerWant = "harvest"
	wantEject   rollerWant = "eject"
	wantDisable rollerWant = "disable"
)

// roller is a two-roller intake that ejects for a fixed period.
type roller struct {
	mu      sync.Mutex
	output  float64
	ejectAt float64
	m       *Machine[rollerState, rollerWant]
}

func newRoller() *roller {
	r := &roller{}
	transfer := func(current rollerState, w rollerWant) rollerState {
		switch w {
		case wantIdle:
			return idling
		case wantHarvest:
			return harvesting
		case wantEject:
			return ejecting
		default:
			return current
		}
	}
	r.m = New(Config[rollerState, rollerWant]{
		Name:     "roller",
		Initial:  disabling,
		Fallback: idling,
		Wanted:   wantDisable,
		Handlers: map[rollerState]Handler[rollerState, rollerWant]{
			idling: func(t float64, w rollerWant) rollerState {
				r.output = 0
				next := transfer(idling, w)
				if next == ejecting {
					r.ejectAt = t
				}
				return next
			},
			harvesting: func(t float64, w rollerWant) rollerState {
				r.output = 1
				next := transfer(harvesting, w)
				if next == ejecting {
					r.ejectAt = t
				}
				return next
			},
			ejecting: func(t float64, w rollerWant) rollerState {
				r.output = -1
				if t-r.ejectAt >= 2.3 {
					r.m.SetWanted(wantIdle)
					return idling
				}
				return transfer(ejecting, w)
			},
			disabling: func(float64, rollerWant) rollerState {
				r.output = 0
				return idling
			},
		},
		Start: func(m *Machine[rollerState, rollerWant], t float64) {
			if m.System() == disabling {
				m.Force(idling)
			}
		},
		Stop: func(m *Machine[rollerState, rollerWant], t float64) error {
			r.output = 0
			return nil
		},
	})
	return r
}

func quiet(t *testing.T) {
	original := monitoring.Logger()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(original) })
}

func TestMachineTransitions(t *testing.T) {
	quiet(t)
	r := newRoller()
	task := r.m.Task(&r.mu)

	task.OnStart(0)
	assert.Equal(t, idling, r.m.System())

	r.m.SetWanted(wantHarvest)
	task.OnLoop(0.02)
	assert.Equal(t, harvesting, r.m.System())
	task.OnLoop(0.04)
	assert.Equal(t, 1.0, r.output)

	r.m.SetWanted(wantEject)
	task.OnLoop(0.06)
	assert.Equal(t, ejecting, r.m.System())

	task.OnLoop(1.0)
	assert.Equal(t, ejecting, r.m.System())
	task.OnLoop(2.5)
	assert.Equal(t, idling, r.m.System())
	assert.Equal(t, wantIdle, r.m.Wanted())

	require.NoError(t, task.OnStop(3))
	assert.Equal(t, 0.0, r.output)
}

func TestMachineFallback(t *testing.T) {
	quiet(t)
	m := New(Config[int, int]{
		Handlers: map[int]Handler[int, int]{
			0: func(float64, int) int { return 7 },
		},
		Fallback: 0,
	})
	assert.Equal(t, 7, m.Step(0))
	// 7 has no handler
	assert.Equal(t, 0, m.Step(0))
	assert.Equal(t, 2, m.Transitions())
}

func TestMachineLogsTransitions(t *testing.T) {
	original := monitoring.Logger()
	t.Cleanup(func() { monitoring.SetLogger(original) })
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})

	r := newRoller()
	r.m.Step(0)
	r.m.Step(0.02)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "state")
}

func TestMachineTaskStopError(t *testing.T) {
	quiet(t)
	boom := errors.New("boom")
	m := New(Config[int, int]{
		Handlers: map[int]Handler[int, int]{0: func(float64, int) int { return 0 }},
		Stop:     func(*Machine[int, int], float64) error { return boom },
	})
	var mu sync.Mutex
	var g loop.Group
	g.Register(m.Task(&mu))
	g.Start(0)
	g.Loop(0.02)
	assert.ErrorIs(t, g.Stop(0.04), boom)
}
