// Package path builds and queries arc-length parametrised travel paths.
//
// A [Path] is immutable once built and safe to query from any goroutine.
package path

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/san-kum/drivenav/internal/geom"
)

// Path is an ordered chain of segments with per-segment speed limits and
// named markers.
type Path struct {
	segments []Segment
	markers  map[string]float64
	start    r2.Point
	length   float64
	maxDecel float64
}

func (p *Path) Length() float64 {
	if p == nil {
		return 0
	}
	return p.length
}

func (p *Path) IsEmpty() bool {
	return p == nil || len(p.segments) == 0 || p.length == 0
}

// Segments returns a copy of the segment chain.
func (p *Path) Segments() []Segment {
	if p == nil {
		return nil
	}
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Markers returns a copy of the marker offsets keyed by name.
func (p *Path) Markers() map[string]float64 {
	out := make(map[string]float64)
	if p == nil {
		return out
	}
	for k, v := range p.markers {
		out[k] = v
	}
	return out
}

// MarkerDistance reports the arc-length offset of a marker.
func (p *Path) MarkerDistance(name string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	d, ok := p.markers[name]
	return d, ok
}

func (p *Path) StartPoint() r2.Point {
	if p == nil {
		return r2.Point{}
	}
	return p.start
}

func (p *Path) EndPoint() r2.Point {
	if p.IsEmpty() {
		return p.StartPoint()
	}
	return p.segments[len(p.segments)-1].End
}

// NearestPointAndDistance returns the closest point on the path to pos and
// the arc length at which it lies.
func (p *Path) NearestPointAndDistance(pos r2.Point) (r2.Point, float64) {
	if p.IsEmpty() {
		return p.StartPoint(), 0
	}
	best := math.Inf(1)
	var bestPt r2.Point
	var bestDist float64
	for _, s := range p.segments {
		pt, d := s.Closest(pos)
		if e := pos.Sub(pt).Norm(); e < best {
			best, bestPt, bestDist = e, pt, s.startDist+d
		}
	}
	return bestPt, bestDist
}

// PointAtDistance returns position and tangent heading at arc length d,
// clamped to [0, Length()].
func (p *Path) PointAtDistance(d float64) geom.Pose {
	if p.IsEmpty() {
		return geom.Pose{Translation: p.StartPoint()}
	}
	i := p.segmentAt(d)
	s := p.segments[i]
	return s.PoseAt(d - s.startDist)
}

// SpeedLimitAtDistance returns the drivable speed at arc length d: the
// segment's limit, further capped so the next segment's limit is reachable
// under the path's maximum deceleration.
func (p *Path) SpeedLimitAtDistance(d float64) float64 {
	if p.IsEmpty() {
		return 0
	}
	i := p.segmentAt(d)
	s := p.segments[i]
	if i == len(p.segments)-1 || p.maxDecel <= 0 {
		return s.speed
	}
	next := p.segments[i+1].speed
	toEnd := math.Max(s.EndDistance()-clamp(d, 0, p.length), 0)
	return math.Min(s.speed, math.Sqrt(next*next+2*p.maxDecel*toEnd))
}

// HasPassedMarker reports whether distanceDriven has reached the marker.
// Unknown markers are never passed.
func (p *Path) HasPassedMarker(name string, distanceDriven float64) bool {
	d, ok := p.MarkerDistance(name)
	return ok && distanceDriven >= d
}

func (p *Path) segmentAt(d float64) int {
	d = clamp(d, 0, p.length)
	for i, s := range p.segments {
		if d <= s.EndDistance() {
			return i
		}
	}
	return len(p.segments) - 1
}
