package viz

import (
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/geo/r2"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/sim"
)

func testPath(t *testing.T) *path.Path {
	t.Helper()
	p, err := path.Build([]path.Waypoint{
		path.NewWaypoint(0, 0, 0, 0),
		path.NewWaypoint(60, 0, 15, 60),
		path.NewWaypoint(60, 40, 0, 60),
	}, 300)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFeedDeliversThenFinishes(t *testing.T) {
	f := NewFeed(2)
	f.OnStep(sim.Step{Index: 0})
	f.OnStep(sim.Step{Index: 1})
	f.OnStep(sim.Step{Index: 2})
	if f.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", f.Dropped())
	}

	boom := errors.New("boom")
	f.Finish(boom)
	f.Finish(nil)

	for want := 0; want < 2; want++ {
		msg, ok := f.wait()().(StepMsg)
		if !ok || msg.Index != want {
			t.Fatalf("step %d: got %#v", want, msg)
		}
	}
	done, ok := f.wait()().(DoneMsg)
	if !ok || !errors.Is(done.Err, boom) {
		t.Errorf("got %#v, want DoneMsg with the first error", done)
	}
}

func TestFitFrameKeepsPointsOnCanvas(t *testing.T) {
	pts := []r2.Point{{X: -10, Y: 5}, {X: 200, Y: 5}, {X: 50, Y: 80}}
	f := fitFrame(pts, 144, 88, 10)
	for _, p := range pts {
		x, y := f.project(p)
		if x < 0 || x >= 144 || y < 0 || y >= 88 {
			t.Errorf("%v projects off canvas to (%d, %d)", p, x, y)
		}
	}

	// y grows downward on screen
	_, top := f.project(r2.Point{X: 0, Y: 80})
	_, bottom := f.project(r2.Point{X: 0, Y: 5})
	if top >= bottom {
		t.Errorf("higher field y should be nearer the top: %d vs %d", top, bottom)
	}

	// uniform scale
	x0, y0 := f.project(r2.Point{})
	x1, _ := f.project(r2.Point{X: 10})
	_, y1 := f.project(r2.Point{Y: -10})
	if math.Abs(float64((x1-x0)-(y1-y0))) > 1 {
		t.Errorf("axes scaled differently: %d vs %d", x1-x0, y1-y0)
	}
}

func TestModelFollowsSteps(t *testing.T) {
	p := testPath(t)
	feed := NewFeed(8)
	m := NewModel("sCurve", p, geom.Pose{}, feed)

	step := sim.Step{
		Index:      0,
		Time:       0.5,
		True:       geom.NewPose(20, 1, geom.FromDegrees(0)),
		Estimated:  geom.NewPose(20, 0, geom.FromDegrees(5)),
		Command:    kinematics.DriveVelocity{Left: 40, Right: 44},
		CrossTrack: 1,
		AlongTrack: p.Length() - 20,
		Lookahead:  r2.Point{X: 40},
		Following:  true,
	}
	next, cmd := m.Update(StepMsg(step))
	if cmd == nil {
		t.Fatal("a step should schedule the next wait")
	}
	m = next.(Model)
	if len(m.trail) != 1 || m.last.Time != 0.5 {
		t.Fatalf("step not recorded: trail %d, t %v", len(m.trail), m.last.Time)
	}

	view := m.View()
	for _, want := range []string{"SCURVE", "RUNNING", "40 / 44"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	x, y := m.frame.project(step.Lookahead)
	if m.canvas.LayerAt(x, y) != LayerLookahead {
		t.Errorf("lookahead not drawn at (%d, %d)", x, y)
	}
	rx, ry := m.frame.project(step.True.Translation.Add(r2.Point{X: robotLength / 2}))
	if m.canvas.LayerAt(rx, ry) < LayerTrail {
		t.Errorf("robot nose not drawn at (%d, %d)", rx, ry)
	}

	next, cmd = m.Update(DoneMsg{})
	m = next.(Model)
	if !m.Done() || cmd != nil {
		t.Error("done should stop waiting on the feed")
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view should show DONE")
	}
}

func TestModelKeys(t *testing.T) {
	m := NewModel("straight", testPath(t), geom.Pose{}, NewFeed(1))

	key := func(s string) tea.KeyMsg {
		if s == " " {
			return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	next, _ := m.Update(key("t"))
	m = next.(Model)
	if m.theme.Name != NextTheme(ThemeField.Name).Name {
		t.Errorf("theme = %s", m.theme.Name)
	}

	next, _ = m.Update(key("e"))
	m = next.(Model)
	if m.showEstimate {
		t.Error("e should hide the estimate")
	}

	next, _ = m.Update(key(" "))
	m = next.(Model)
	if !m.paused {
		t.Error("space should freeze")
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}
