package pursuit

import "math"

// MinLookaheadDistance floors every lookahead so curvature stays finite.
const MinLookaheadDistance = 1.0

// Lookahead scales the lookahead distance linearly with speed between two
// operating points.
type Lookahead struct {
	MinDistance float64
	MaxDistance float64
	MinSpeed    float64
	MaxSpeed    float64
}

// DistanceFromSpeed uses the magnitude of speed, so reversing behaves the
// same as driving forward.
func (l Lookahead) DistanceFromSpeed(speed float64) float64 {
	speed = math.Abs(speed)
	var d float64
	switch {
	case speed <= l.MinSpeed:
		d = l.MinDistance
	case speed >= l.MaxSpeed || l.MaxSpeed <= l.MinSpeed:
		d = l.MaxDistance
	default:
		frac := (speed - l.MinSpeed) / (l.MaxSpeed - l.MinSpeed)
		d = l.MinDistance + frac*(l.MaxDistance-l.MinDistance)
	}
	return math.Max(d, MinLookaheadDistance)
}
