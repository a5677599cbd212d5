// Package export renders stored runs as standalone SVG drawings of the field.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/storage"
)

var ErrNothingToDraw = errors.New("export: nothing to draw")

type Options struct {
	Width, Height int
	// Padding is the field margin around the drawing, in inches.
	Padding float64

	Background    string
	PathColor     string
	TrueColor     string
	EstimateColor string
}

func DefaultOptions() Options {
	return Options{
		Width:         800,
		Height:        600,
		Padding:       12,
		Background:    "#0a0a0a",
		PathColor:     "#666688",
		TrueColor:     "#00ffff",
		EstimateColor: "#ff00ff",
	}
}

// view maps field inches to SVG user units with y pointing up.
type view struct {
	minX, maxY float64
	scale      float64
}

func fit(pts []r2.Point, opts Options) view {
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	minX, maxX = minX-opts.Padding, maxX+opts.Padding
	minY, maxY = minY-opts.Padding, maxY+opts.Padding

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	scale := math.Min(float64(opts.Width)/rangeX, float64(opts.Height)/rangeY)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	return view{
		minX:  cx - float64(opts.Width)/scale/2,
		maxY:  cy + float64(opts.Height)/scale/2,
		scale: scale,
	}
}

func (v view) xy(p r2.Point) (float64, float64) {
	return (p.X - v.minX) * v.scale, (v.maxY - p.Y) * v.scale
}

func (v view) point(p r2.Point) string {
	x, y := v.xy(p)
	return fmt.Sprintf("%.1f,%.1f", x, y)
}

// RunToSVG draws p with its lines and fillet arcs, then the true and
// estimated trajectories of tr on top. tr may be nil to draw the path alone.
func RunToSVG(w io.Writer, p *path.Path, tr *storage.Trajectory, opts Options) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}

	pts := []r2.Point{p.StartPoint(), p.EndPoint()}
	for _, s := range p.Segments() {
		pts = append(pts, s.Start, s.End)
	}
	var truth, est []geom.Pose
	if tr != nil {
		truth, est = tr.Poses, tr.Estimated
	}
	for _, pose := range truth {
		pts = append(pts, pose.Translation)
	}
	if p.IsEmpty() && len(truth) == 0 {
		return ErrNothingToDraw
	}
	v := fit(pts, opts)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, opts.Width, opts.Height, opts.Width, opts.Height, opts.Background))

	if !p.IsEmpty() {
		sb.WriteString(fmt.Sprintf(`<path id="path" fill="none" stroke="%s" stroke-width="3" d="%s"/>
`, opts.PathColor, pathData(p, v)))
	}
	if len(est) > 1 {
		sb.WriteString(fmt.Sprintf(`<polyline id="estimated" fill="none" stroke="%s" stroke-width="1" stroke-dasharray="4 3" points="%s"/>
`, opts.EstimateColor, polyline(est, v)))
	}
	if len(truth) > 1 {
		sb.WriteString(fmt.Sprintf(`<polyline id="true" fill="none" stroke="%s" stroke-width="1.5" points="%s"/>
`, opts.TrueColor, polyline(truth, v)))
	}
	sx, sy := v.xy(p.StartPoint())
	sb.WriteString(fmt.Sprintf(`<circle id="start" cx="%.1f" cy="%.1f" r="4" fill="%s"/>
`, sx, sy, opts.PathColor))
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// pathData emits an SVG path: L for lines, A for arcs. Flipping y turns a
// counter-clockwise field arc into a positive SVG sweep.
func pathData(p *path.Path, v view) string {
	var b strings.Builder
	b.WriteString("M" + v.point(p.StartPoint()))
	for _, s := range p.Segments() {
		if !s.IsArc() {
			b.WriteString(" L" + v.point(s.End))
			continue
		}
		sweep := 0
		if s.Curvature() > 0 {
			sweep = 1
		}
		large := 0
		if s.Length() > math.Pi*s.Radius() {
			large = 1
		}
		r := s.Radius() * v.scale
		b.WriteString(fmt.Sprintf(" A%.1f,%.1f 0 %d %d %s", r, r, large, sweep, v.point(s.End)))
	}
	return b.String()
}

func polyline(poses []geom.Pose, v view) string {
	parts := make([]string, len(poses))
	for i, pose := range poses {
		parts[i] = v.point(pose.Translation)
	}
	return strings.Join(parts, " ")
}
