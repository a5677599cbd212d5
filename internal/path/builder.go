package path

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
)

var ErrNoWaypoints = errors.New("path: at least one waypoint is required")

const (
	minSegmentLength = 1e-6
	colinearTurn     = 1e-6
)

// Waypoint is one authored point of a path. Speed is the target speed for
// the stretch ending at this waypoint; Radius requests a fillet here.
type Waypoint struct {
	Position r2.Point
	Speed    float64
	Radius   float64
	Marker   string
}

func NewWaypoint(x, y, radius, speed float64) Waypoint {
	return Waypoint{Position: r2.Point{X: x, Y: y}, Radius: radius, Speed: speed}
}

// WithMarker returns a copy of w carrying a marker name.
func (w Waypoint) WithMarker(name string) Waypoint {
	w.Marker = name
	return w
}

// Builder compiles waypoints into a Path.
type Builder struct {
	// MaxDecel bounds how quickly speed limits may drop along the path, in
	// inches per second squared. Zero disables the backward pass.
	MaxDecel float64
}

func NewBuilder(maxDecel float64) *Builder {
	return &Builder{MaxDecel: maxDecel}
}

// Build fillets each interior waypoint with an arc of its requested radius
// when it fits, joining with a sharp corner otherwise. Geometry problems
// never fail the build.
func (b *Builder) Build(waypoints []Waypoint) (*Path, error) {
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}

	p := &Path{
		markers:  make(map[string]float64),
		start:    waypoints[0].Position,
		maxDecel: b.MaxDecel,
	}
	if waypoints[0].Marker != "" {
		p.markers[waypoints[0].Marker] = 0
	}

	cursor := waypoints[0].Position
	for i := 1; i < len(waypoints); i++ {
		wp := waypoints[i]

		if i < len(waypoints)-1 {
			if in, out, center, ccw, ok := fillet(cursor, wp, waypoints[i+1].Position); ok {
				p.appendSegment(newLine(cursor, in, wp.Speed))
				arc := newArc(in, out, center, ccw, wp.Speed)
				p.appendSegment(arc)
				if wp.Marker != "" {
					p.markers[wp.Marker] = p.length - arc.length/2
				}
				cursor = out
				continue
			}
		}

		p.appendSegment(newLine(cursor, wp.Position, wp.Speed))
		if wp.Marker != "" {
			p.markers[wp.Marker] = p.length
		}
		cursor = wp.Position
	}

	p.assignSpeedLimits()
	return p, nil
}

// Build compiles waypoints with the given maximum deceleration.
func Build(waypoints []Waypoint, maxDecel float64) (*Path, error) {
	return NewBuilder(maxDecel).Build(waypoints)
}

func (p *Path) appendSegment(s Segment) {
	if s.length < minSegmentLength {
		return
	}
	s.startDist = p.length
	p.segments = append(p.segments, s)
	p.length += s.length
}

// assignSpeedLimits walks backwards so every segment can slow down in time
// for the segment after it.
func (p *Path) assignSpeedLimits() {
	if p.maxDecel <= 0 {
		return
	}
	for i := len(p.segments) - 2; i >= 0; i-- {
		next := p.segments[i+1].speed
		limit := math.Sqrt(next*next + 2*p.maxDecel*p.segments[i].length)
		if limit < p.segments[i].speed {
			p.segments[i].speed = limit
		}
	}
}

// fillet computes the tangent points and centre of an arc of wp.Radius
// blending prev->wp into wp->next. ok is false when the legs are colinear,
// reversed, or too short to hold the arc.
func fillet(prev r2.Point, wp Waypoint, next r2.Point) (in, out, center r2.Point, ccw, ok bool) {
	if wp.Radius <= 0 {
		return
	}
	legIn := wp.Position.Sub(prev)
	legOut := next.Sub(wp.Position)
	lenIn, lenOut := legIn.Norm(), legOut.Norm()
	if lenIn < minSegmentLength || lenOut < minSegmentLength {
		return
	}
	u1 := legIn.Mul(1 / lenIn)
	u2 := legOut.Mul(1 / lenOut)

	turn := math.Atan2(u1.Cross(u2), u1.Dot(u2))
	if math.Abs(turn) < colinearTurn || math.Pi-math.Abs(turn) < colinearTurn {
		return
	}

	tangent := wp.Radius * math.Tan(math.Abs(turn)/2)
	if tangent > lenIn || tangent > lenOut/2 {
		return
	}

	in = wp.Position.Sub(u1.Mul(tangent))
	out = wp.Position.Add(u2.Mul(tangent))
	ccw = turn > 0
	normal := u1.Ortho()
	if !ccw {
		normal = normal.Mul(-1)
	}
	center = in.Add(normal.Mul(wp.Radius))
	return in, out, center, ccw, true
}
