package geom

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Rotation is a planar heading normalised to (-pi, pi]. The zero value is
// the identity rotation.
type Rotation struct {
	rad float64
}

func FromRadians(rad float64) Rotation {
	return Rotation{rad: normalize(rad)}
}

func FromDegrees(deg float64) Rotation {
	return FromRadians(deg * math.Pi / 180)
}

func (r Rotation) Radians() float64 { return r.rad }
func (r Rotation) Degrees() float64 { return r.rad * 180 / math.Pi }
func (r Rotation) Cos() float64     { return math.Cos(r.rad) }
func (r Rotation) Sin() float64     { return math.Sin(r.rad) }

func (r Rotation) RotateBy(other Rotation) Rotation {
	return FromRadians(r.rad + other.rad)
}

func (r Rotation) Inverse() Rotation {
	return FromRadians(-r.rad)
}

// Rotate applies the rotation to a vector.
func (r Rotation) Rotate(p r2.Point) r2.Point {
	s, c := math.Sincos(r.rad)
	return r2.Point{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c}
}

// Interpolate returns the rotation a fraction x of the shortest way to other.
func (r Rotation) Interpolate(other Rotation, x float64) Rotation {
	if x <= 0 {
		return r
	}
	if x >= 1 {
		return other
	}
	delta := r.Inverse().RotateBy(other).Radians()
	return r.RotateBy(FromRadians(delta * x))
}

// Direction returns the unit vector pointing along the heading.
func (r Rotation) Direction() r2.Point {
	s, c := math.Sincos(r.rad)
	return r2.Point{X: c, Y: s}
}

func (r Rotation) String() string {
	return fmt.Sprintf("%.3f deg", r.Degrees())
}

// normalize wraps an angle into (-pi, pi].
func normalize(rad float64) float64 {
	if rad > math.Pi || rad <= -math.Pi {
		rad = math.Atan2(math.Sin(rad), math.Cos(rad))
		if rad == -math.Pi {
			rad = math.Pi
		}
	}
	return rad
}
