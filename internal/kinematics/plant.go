package kinematics

import (
	"math"

	"github.com/san-kum/drivenav/internal/dynamo"
	"github.com/san-kum/drivenav/internal/geom"
)

// DiffDrive is the ground-truth plant used by the simulator.
// State is [x, y, theta]; control is [leftVel, rightVel].
type DiffDrive struct {
	Model
}

func NewDiffDrive(m Model) *DiffDrive {
	return &DiffDrive{Model: m}
}

func (d *DiffDrive) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	tw := d.Forward(u[0], u[1])
	s, c := math.Sincos(x[2])
	return dynamo.State{tw.Dx * c, tw.Dx * s, tw.Dtheta}
}

func (d *DiffDrive) StateDim() int   { return 3 }
func (d *DiffDrive) ControlDim() int { return 2 }

// PoseState packs a pose into plant state.
func PoseState(p geom.Pose) dynamo.State {
	return dynamo.State{p.X(), p.Y(), p.Rotation.Radians()}
}

// StatePose unpacks plant state into a pose.
func StatePose(x dynamo.State) geom.Pose {
	return geom.NewPose(x[0], x[1], geom.FromRadians(x[2]))
}

// ArcIntegrator steps the plant exactly, assuming wheel speeds are held
// constant over the step.
type ArcIntegrator struct {
	Model
}

func (a ArcIntegrator) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	tw := a.Forward(u[0], u[1]).Scaled(dt)
	next := a.Integrate(StatePose(x), tw)
	// keep theta continuous rather than wrapped
	return dynamo.State{next.X(), next.Y(), x[2] + tw.Dtheta}
}
