package control

import "math"

type Mode int

const (
	OpenLoop Mode = iota
	Velocity
	Position
)

func (m Mode) String() string {
	switch m {
	case OpenLoop:
		return "open-loop"
	case Velocity:
		return "velocity"
	case Position:
		return "position"
	default:
		return "unknown"
	}
}

// Gains for the position loop, output in inches per second per inch.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

func DefaultGains() Gains {
	return Gains{Kp: 12, Ki: 0, Kd: 0.4}
}

// Wheel is one side's motor controller. Output is a wheel velocity in inches
// per second, never faster than FreeSpeed.
type Wheel struct {
	FreeSpeed float64

	mode     Mode
	setpoint float64
	pid      *PID
}

func NewWheel(g Gains, freeSpeed float64) *Wheel {
	return &Wheel{FreeSpeed: freeSpeed, pid: NewPID(g.Kp, g.Ki, g.Kd, freeSpeed)}
}

func (w *Wheel) Mode() Mode            { return w.mode }
func (w *Wheel) Setpoint() float64     { return w.setpoint }
func (w *Wheel) PID() *PID             { return w.pid }
func (w *Wheel) SetOpenLoop(p float64) { w.set(OpenLoop, math.Max(-1, math.Min(1, p))) }
func (w *Wheel) SetVelocity(v float64) { w.set(Velocity, v) }
func (w *Wheel) SetPosition(d float64) { w.set(Position, d) }

func (w *Wheel) set(m Mode, sp float64) {
	if m != w.mode {
		w.pid.Reset()
	}
	w.mode = m
	w.setpoint = sp
}

// Update returns the commanded wheel velocity given the measured wheel
// travel at t.
func (w *Wheel) Update(measured, t float64) float64 {
	var v float64
	switch w.mode {
	case OpenLoop:
		v = w.setpoint * w.FreeSpeed
	case Velocity:
		v = w.setpoint
	case Position:
		v = w.pid.Update(w.setpoint, measured, t)
	}
	return math.Max(-w.FreeSpeed, math.Min(w.FreeSpeed, v))
}
