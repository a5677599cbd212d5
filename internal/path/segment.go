package path

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/san-kum/drivenav/internal/geom"
)

// Segment is a straight line or a circular arc. Arcs are stored by centre
// and signed sweep (positive is counter-clockwise).
type Segment struct {
	Start, End r2.Point

	arc    bool
	center r2.Point
	radius float64
	sweep  float64

	length    float64
	startDist float64
	speed     float64
}

func newLine(start, end r2.Point, speed float64) Segment {
	return Segment{
		Start:  start,
		End:    end,
		length: end.Sub(start).Norm(),
		speed:  speed,
	}
}

func newArc(start, end, center r2.Point, ccw bool, speed float64) Segment {
	r := start.Sub(center).Norm()
	a0 := angleOf(start.Sub(center))
	a1 := angleOf(end.Sub(center))
	sweep := math.Mod(a1-a0, 2*math.Pi)
	if ccw && sweep < 0 {
		sweep += 2 * math.Pi
	}
	if !ccw && sweep > 0 {
		sweep -= 2 * math.Pi
	}
	return Segment{
		Start:  start,
		End:    end,
		arc:    true,
		center: center,
		radius: r,
		sweep:  sweep,
		length: r * math.Abs(sweep),
		speed:  speed,
	}
}

func (s Segment) IsArc() bool            { return s.arc }
func (s Segment) Length() float64        { return s.length }
func (s Segment) StartDistance() float64 { return s.startDist }
func (s Segment) EndDistance() float64   { return s.startDist + s.length }
func (s Segment) SpeedLimit() float64    { return s.speed }

// Center and Radius are meaningful for arcs only.
func (s Segment) Center() r2.Point { return s.center }
func (s Segment) Radius() float64  { return s.radius }

// Curvature is signed, positive when turning left.
func (s Segment) Curvature() float64 {
	if !s.arc || s.radius == 0 {
		return 0
	}
	return math.Copysign(1/s.radius, s.sweep)
}

// PoseAt returns position and tangent heading at local distance d.
func (s Segment) PoseAt(d float64) geom.Pose {
	d = clamp(d, 0, s.length)
	if !s.arc {
		heading := geom.FromRadians(angleOf(s.End.Sub(s.Start)))
		if s.length == 0 {
			return geom.Pose{Translation: s.Start, Rotation: heading}
		}
		frac := d / s.length
		return geom.Pose{
			Translation: s.Start.Add(s.End.Sub(s.Start).Mul(frac)),
			Rotation:    heading,
		}
	}

	a0 := angleOf(s.Start.Sub(s.center))
	a := a0 + math.Copysign(d/s.radius, s.sweep)
	pt := s.center.Add(r2.Point{X: math.Cos(a), Y: math.Sin(a)}.Mul(s.radius))
	return geom.Pose{
		Translation: pt,
		Rotation:    geom.FromRadians(a + math.Copysign(math.Pi/2, s.sweep)),
	}
}

// Closest returns the nearest point on the segment and its local distance.
func (s Segment) Closest(p r2.Point) (r2.Point, float64) {
	if !s.arc {
		if s.length == 0 {
			return s.Start, 0
		}
		dir := s.End.Sub(s.Start).Mul(1 / s.length)
		d := clamp(p.Sub(s.Start).Dot(dir), 0, s.length)
		return s.Start.Add(dir.Mul(d)), d
	}

	rel := p.Sub(s.center)
	if rel.Norm() < 1e-12 {
		return s.Start, 0
	}
	a0 := angleOf(s.Start.Sub(s.center))
	delta := angleOf(rel) - a0
	// measure the angle in the sweep direction, within one turn
	if s.sweep >= 0 {
		delta = math.Mod(delta+4*math.Pi, 2*math.Pi)
	} else {
		delta = -math.Mod(-delta+4*math.Pi, 2*math.Pi)
	}
	if math.Abs(delta) <= math.Abs(s.sweep) {
		d := math.Abs(delta) * s.radius
		return s.center.Add(rel.Normalize().Mul(s.radius)), d
	}

	if p.Sub(s.Start).Norm() <= p.Sub(s.End).Norm() {
		return s.Start, 0
	}
	return s.End, s.length
}

func angleOf(v r2.Point) float64 {
	return math.Atan2(v.Y, v.X)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
