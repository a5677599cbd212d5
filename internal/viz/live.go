package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r2"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/sim"
)

const (
	width          = 72
	height         = 22
	trailCapacity  = 2000
	graphCapacity  = 150
	fieldPadding   = 18.0
	robotLength    = 10.0
	pathSampleStep = 1.0
)

// Model is the live field view of one path run. It owns no simulation: steps
// arrive from a Feed registered as a runner observer.
type Model struct {
	title  string
	path   *path.Path
	feed   *Feed
	theme  Theme
	styles styles
	canvas *Canvas
	frame  frame
	route  []r2.Point

	trail    []r2.Point
	estimate []r2.Point
	cte      []float64
	speed    []float64
	last     sim.Step
	steps    int

	done         bool
	err          error
	paused       bool
	showEstimate bool
	showHelp     bool
}

// NewModel lays the canvas out around p and start. title heads the stats
// panel.
func NewModel(title string, p *path.Path, start geom.Pose, feed *Feed) Model {
	route := samplePath(p)
	canvas := NewCanvas(width, height)
	bounds := append([]r2.Point{start.Translation}, route...)
	return Model{
		title:        title,
		path:         p,
		feed:         feed,
		theme:        ThemeField,
		styles:       newStyles(ThemeField),
		canvas:       canvas,
		frame:        fitFrame(bounds, canvas.PixelWidth(), canvas.PixelHeight(), fieldPadding),
		route:        route,
		trail:        make([]r2.Point, 0, 256),
		estimate:     make([]r2.Point, 0, 256),
		cte:          make([]float64, 0, graphCapacity),
		speed:        make([]float64, 0, graphCapacity),
		last:         sim.Step{True: start, Estimated: start},
		showEstimate: true,
	}
}

func (m Model) WithTheme(t Theme) Model {
	m.theme = t
	m.styles = newStyles(t)
	return m
}

func (m Model) Init() tea.Cmd {
	return m.feed.wait()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "e":
			m.showEstimate = !m.showEstimate
		case "t":
			m.theme = NextTheme(m.theme.Name)
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case StepMsg:
		m.observe(sim.Step(msg))
		return m, m.feed.wait()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
	}
	return m, nil
}

func (m *Model) observe(s sim.Step) {
	m.last = s
	m.steps++
	m.trail = appendBounded(m.trail, s.True.Translation, trailCapacity)
	m.estimate = appendBounded(m.estimate, s.Estimated.Translation, trailCapacity)
	m.cte = appendBounded(m.cte, s.CrossTrack, graphCapacity)
	m.speed = appendBounded(m.speed, (s.Command.Left+s.Command.Right)/2, graphCapacity)
}

func appendBounded[T any](xs []T, x T, capacity int) []T {
	if len(xs) >= capacity {
		xs = append(xs[:0], xs[1:]...)
	}
	return append(xs, x)
}

// Done reports whether the run has ended.
func (m Model) Done() bool { return m.done }
func (m Model) Err() error { return m.err }

func (m Model) View() string {
	if !m.paused {
		m.draw()
	}
	canvasView := m.styles.canvas.Render(m.canvas.Render(m.theme.layerStyles()))
	statsView := m.styles.panel.Render(m.stats())
	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
  Space  freeze the field view
  E      toggle the estimated trail
  T      cycle colour themes
  ?      toggle this help
  Q      quit
`

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.styles.failed.Render("FAILED")
	case m.done:
		return m.styles.finished.Render("DONE")
	case m.paused:
		return m.styles.paused.Render("FROZEN")
	default:
		return m.styles.running.Render(spinner(m.steps) + " RUNNING")
	}
}

func (m Model) stats() string {
	s := m.styles
	last := m.last
	row := func(label, format string, args ...any) string {
		return s.label.Render(label) + s.value.Render(fmt.Sprintf(format, args...)) + "\n"
	}

	var b strings.Builder
	b.WriteString(s.header.Render(strings.ToUpper(m.title)) + "\n")
	b.WriteString(m.status() + "\n\n")

	b.WriteString(row("Time", "%.2fs", last.Time))
	b.WriteString(row("Mode", "%v", last.Mode))
	b.WriteString(row("Pose", "%.1f, %.1f  %.0f°", last.True.X(), last.True.Y(), last.True.Rotation.Degrees()))
	b.WriteString(row("Est error", "%.2f in", last.True.Translation.Sub(last.Estimated.Translation).Norm()))
	b.WriteString(row("Cross", "%.2f in", last.CrossTrack))
	b.WriteString(row("Along", "%.1f in", last.AlongTrack))
	b.WriteString(row("Wheels", "%.0f / %.0f", last.Command.Left, last.Command.Right))

	if length := m.path.Length(); length > 0 {
		b.WriteString("\n" + s.progressBar(1-last.AlongTrack/length, 28) + "\n")
	}

	if len(m.cte) > 1 {
		chart := asciigraph.Plot(m.cte, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("cross-track (in)"))
		b.WriteString(s.graph.Render(chart) + "\n")
	}
	b.WriteString(s.label.Render("Speed") + s.sparkline(m.speed, 28) + "\n")

	if m.err != nil {
		b.WriteString("\n" + s.failed.Render(m.err.Error()) + "\n")
	}
	if d := m.feed.Dropped(); d > 0 {
		b.WriteString(row("Dropped", "%d steps", d))
	}
	b.WriteString(s.hint.Render("Q:Quit  Space:Freeze  E:Estimate  T:Theme  ?:Help"))
	return b.String()
}

// draw repaints the canvas from the recorded trails.
func (m *Model) draw() {
	m.canvas.Clear()
	m.polyline(m.route, LayerPath)
	if m.showEstimate {
		m.polyline(m.estimate, LayerEstimate)
	}
	m.polyline(m.trail, LayerTrail)
	if m.last.Following {
		x, y := m.frame.project(m.last.Lookahead)
		m.cross(x, y, LayerLookahead)
	}
	m.robot(m.last.True)
}

func (m *Model) polyline(pts []r2.Point, l Layer) {
	if len(pts) == 0 {
		return
	}
	px, py := m.frame.project(pts[0])
	m.canvas.Set(px, py, l)
	for _, p := range pts[1:] {
		x, y := m.frame.project(p)
		m.canvas.DrawLine(px, py, x, y, l)
		px, py = x, y
	}
}

func (m *Model) cross(x, y int, l Layer) {
	m.canvas.DrawLine(x-1, y, x+1, y, l)
	m.canvas.DrawLine(x, y-1, x, y+1, l)
}

// robot draws the footprint as a triangle pointing along the heading.
func (m *Model) robot(pose geom.Pose) {
	corner := func(fwd, left float64) (int, int) {
		return m.frame.project(pose.TransformBy(geom.NewPose(fwd, left, geom.FromRadians(0))).Translation)
	}
	nx, ny := corner(robotLength/2, 0)
	lx, ly := corner(-robotLength/2, robotLength/3)
	rx, ry := corner(-robotLength/2, -robotLength/3)
	m.canvas.DrawLine(nx, ny, lx, ly, LayerRobot)
	m.canvas.DrawLine(lx, ly, rx, ry, LayerRobot)
	m.canvas.DrawLine(rx, ry, nx, ny, LayerRobot)
}

// samplePath returns points along p every pathSampleStep inches, ends
// included.
func samplePath(p *path.Path) []r2.Point {
	length := p.Length()
	pts := []r2.Point{p.StartPoint()}
	for d := pathSampleStep; d < length; d += pathSampleStep {
		pts = append(pts, p.PointAtDistance(d).Translation)
	}
	if length > 0 {
		pts = append(pts, p.EndPoint())
	}
	return pts
}

// frame maps field inches onto canvas dots with a uniform scale, y up.
type frame struct {
	minX, maxY float64
	scale      float64
}

func fitFrame(pts []r2.Point, pw, ph int, pad float64) frame {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if len(pts) == 0 {
		minX, maxX, minY, maxY = 0, 0, 0, 0
	}
	minX, maxX = minX-pad, maxX+pad
	minY, maxY = minY-pad, maxY+pad

	w, h := maxX-minX, maxY-minY
	scale := math.Min(float64(pw-1)/w, float64(ph-1)/h)

	// centre the shorter axis
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	return frame{
		minX:  cx - float64(pw-1)/scale/2,
		maxY:  cy + float64(ph-1)/scale/2,
		scale: scale,
	}
}

func (f frame) project(p r2.Point) (int, int) {
	x := math.Round((p.X - f.minX) * f.scale)
	y := math.Round((f.maxY - p.Y) * f.scale)
	return int(x), int(y)
}
