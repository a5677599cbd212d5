package control

import "math"

// PID is a scalar controller with an optional symmetric output limit. The
// integral is frozen while the output is saturated.
type PID struct {
	Kp    float64
	Ki    float64
	Kd    float64
	Limit float64

	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, limit float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd, Limit: limit, first: true}
}

// Update returns the control output for the error target-measured at t.
func (p *PID) Update(target, measured, t float64) float64 {
	err := target - measured

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		return p.clamp(p.Kp * err)
	}

	dt := t - p.prevT
	if dt <= 0 {
		return p.clamp(p.Kp*err + p.Ki*p.integral)
	}

	derivative := (err - p.prevErr) / dt
	p.prevErr = err
	p.prevT = t

	u := p.Kp*err + p.Ki*(p.integral+err*dt) + p.Kd*derivative
	if out := p.clamp(u); out != u {
		return out
	}
	p.integral += err * dt
	return u
}

func (p *PID) clamp(u float64) float64 {
	if p.Limit <= 0 {
		return u
	}
	return math.Max(-p.Limit, math.Min(p.Limit, u))
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":    p.Kp,
		"Ki":    p.Ki,
		"Kd":    p.Kd,
		"Limit": p.Limit,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Limit":
		p.Limit = value
	}
}
