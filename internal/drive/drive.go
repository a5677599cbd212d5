// Package drive is the drivetrain subsystem. It owns the control mode, turns
// follower and heading commands into wheel setpoints, and exposes the command
// surface used by operator input and autonomous routines.
//
// A single mutex guards every mutable field. Commands and the scheduler tick
// both take it and hold it only for in-memory work and non-blocking hardware
// writes.
package drive

import (
	"errors"
	"math"
	"sync"

	"github.com/san-kum/drivenav/internal/estimator"
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/loop"
	"github.com/san-kum/drivenav/internal/monitoring"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/pursuit"
	"github.com/san-kum/drivenav/internal/statemachine"
)

var (
	ErrUninitialized = errors.New("drive: hardware not initialized")
	ErrWrongMode     = errors.New("drive: not in the required control mode")
)

type ControlState int

const (
	OpenLoop ControlState = iota
	VelocitySetpoint
	PathFollowing
	TurnToHeading
	AimToGoal
	DriveTowardsGoalCoarseAlign
	DriveTowardsGoalApproach
)

func (s ControlState) String() string {
	switch s {
	case OpenLoop:
		return "open-loop"
	case VelocitySetpoint:
		return "velocity-setpoint"
	case PathFollowing:
		return "path-following"
	case TurnToHeading:
		return "turn-to-heading"
	case AimToGoal:
		return "aim-to-goal"
	case DriveTowardsGoalCoarseAlign:
		return "drive-towards-goal-coarse-align"
	case DriveTowardsGoalApproach:
		return "drive-towards-goal-approach"
	default:
		return "unknown"
	}
}

func usesVelocityControl(s ControlState) bool {
	return s == VelocitySetpoint || s == PathFollowing
}

func usesPositionControl(s ControlState) bool {
	switch s {
	case TurnToHeading, AimToGoal, DriveTowardsGoalCoarseAlign, DriveTowardsGoalApproach:
		return true
	}
	return false
}

type Config struct {
	// MaxSetpoint caps wheel velocity setpoints; larger pairs are scaled
	// down together so the commanded curvature is kept.
	MaxSetpoint float64
	Follower    pursuit.Parameters

	HeadingToleranceDeg float64
	TurnVelTolerance    float64

	// Range band, in inches, that counts as in position for aiming.
	OptimalRangeFloor   float64
	OptimalRangeCeiling float64
	ApproachTolerance   float64
}

func DefaultConfig() Config {
	return Config{
		MaxSetpoint:         150,
		Follower:            pursuit.DefaultParameters(),
		HeadingToleranceDeg: 0.75,
		TurnVelTolerance:    5,
		OptimalRangeFloor:   60,
		OptimalRangeCeiling: 90,
		ApproachTolerance:   1,
	}
}

// DebugSink receives a follower snapshot every path-following tick. Add must
// not block.
type DebugSink interface {
	Add(pursuit.DebugOutput)
}

type flusher interface {
	Flush() error
}

type Drive struct {
	hw    Hardware
	kin   kinematics.Model
	state *estimator.RobotState
	cfg   Config

	// mu guards every field below.
	mu            sync.Mutex
	debug         DebugSink
	machine       *statemachine.Machine[ControlState, ControlState]
	follower      *pursuit.Follower
	currentPath   *path.Path
	targetHeading geom.Rotation
	onTarget      bool
	approaching   bool
	brake         bool
	setpoint      kinematics.DriveVelocity
}

func New(hw Hardware, kin kinematics.Model, state *estimator.RobotState, cfg Config) *Drive {
	d := &Drive{hw: hw, kin: kin, state: state, cfg: cfg}
	d.machine = statemachine.New(statemachine.Config[ControlState, ControlState]{
		Name:     "drive",
		Initial:  OpenLoop,
		Fallback: OpenLoop,
		Handlers: map[ControlState]statemachine.Handler[ControlState, ControlState]{
			OpenLoop:                    hold(OpenLoop),
			VelocitySetpoint:            hold(VelocitySetpoint),
			PathFollowing:               d.handlePathFollowing,
			TurnToHeading:               d.handleTurnToHeading,
			AimToGoal:                   d.handleAimToGoal,
			DriveTowardsGoalCoarseAlign: d.handleCoarseAlign,
			DriveTowardsGoalApproach:    d.handleApproach,
		},
		Start: func(m *statemachine.Machine[ControlState, ControlState], t float64) {
			if !d.Initialized() {
				return
			}
			if err := d.setVelocityLocked(0, 0); err != nil {
				monitoring.Errorf("drive: start: %v", err)
			}
		},
		Stop: func(m *statemachine.Machine[ControlState, ControlState], t float64) error {
			return d.stopLocked()
		},
	})
	return d
}

func hold(s ControlState) statemachine.Handler[ControlState, ControlState] {
	return func(float64, ControlState) ControlState { return s }
}

// SetDebugSink attaches a telemetry consumer for follower snapshots.
func (d *Drive) SetDebugSink(s DebugSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.debug = s
}

func (d *Drive) Initialized() bool {
	return d.hw != nil && d.hw.Initialized()
}

// Registrar is anything that accepts periodic tasks, such as a loop.Looper.
type Registrar interface {
	Register(loop.Task) error
}

// Register adds the drive's periodic task. Uninitialized hardware is not
// registered.
func (d *Drive) Register(r Registrar) error {
	if !d.Initialized() {
		monitoring.Errorf("drive: not registering loop, hardware not initialized")
		return ErrUninitialized
	}
	return r.Register(d.Task())
}

// Task is the drive's periodic work, guarded by the drive mutex. On stop the
// debug sink is flushed after the mutex is released.
func (d *Drive) Task() loop.Task {
	return driveTask{Task: d.machine.Task(&d.mu), d: d}
}

type driveTask struct {
	loop.Task
	d *Drive
}

func (t driveTask) OnStop(ts float64) error {
	err := t.Task.OnStop(ts)

	t.d.mu.Lock()
	sink := t.d.debug
	t.d.mu.Unlock()

	if f, ok := sink.(flusher); ok {
		if ferr := f.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

func (d *Drive) Mode() ControlState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.machine.System()
}

// Setpoint is the most recent wheel velocity setpoint sent in a
// velocity-controlled mode.
func (d *Drive) Setpoint() kinematics.DriveVelocity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setpoint
}

func (d *Drive) SetOpenLoop(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	if d.machine.System() != OpenLoop {
		d.machine.Force(OpenLoop)
		if err := d.setBrakeLocked(false); err != nil {
			return err
		}
	}
	return d.hw.SetOpenLoop(left, right)
}

// SetVelocitySetpoint drives each side at a velocity in inches per second.
func (d *Drive) SetVelocitySetpoint(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	return d.setVelocityLocked(left, right)
}

func (d *Drive) setVelocityLocked(left, right float64) error {
	if !usesVelocityControl(d.machine.System()) {
		d.machine.Force(VelocitySetpoint)
		if err := d.setBrakeLocked(true); err != nil {
			return err
		}
	}
	return d.updateVelocitySetpoint(left, right)
}

func (d *Drive) updateVelocitySetpoint(left, right float64) error {
	if !usesVelocityControl(d.machine.System()) {
		monitoring.Errorf("drive: velocity setpoint in %v mode", d.machine.System())
		return d.hw.SetVelocity(0, 0)
	}
	maxDesired := math.Max(math.Abs(left), math.Abs(right))
	scale := 1.0
	if d.cfg.MaxSetpoint > 0 && maxDesired > d.cfg.MaxSetpoint {
		scale = d.cfg.MaxSetpoint / maxDesired
	}
	d.setpoint = kinematics.DriveVelocity{Left: left * scale, Right: right * scale}
	return d.hw.SetVelocity(d.setpoint.Left, d.setpoint.Right)
}

func (d *Drive) updatePositionSetpoint(left, right float64) error {
	if !usesPositionControl(d.machine.System()) {
		monitoring.Errorf("drive: position setpoint in %v mode", d.machine.System())
		return d.hw.SetOpenLoop(0, 0)
	}
	return d.hw.SetPosition(left, right)
}

func (d *Drive) holdPosition() error {
	return d.updatePositionSetpoint(d.hw.LeftDistance(), d.hw.RightDistance())
}

func (d *Drive) SetBrakeMode(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	return d.setBrakeLocked(on)
}

func (d *Drive) setBrakeLocked(on bool) error {
	if d.brake == on {
		return nil
	}
	d.brake = on
	return d.hw.SetBrakeMode(on)
}

// ResetPose zeroes the encoders, sets the gyro to the pose heading and
// re-seeds the estimator, as a routine does before driving a path from its
// start pose.
func (d *Drive) ResetPose(t float64, pose geom.Pose) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	if err := d.hw.ResetEncoders(); err != nil {
		return err
	}
	if err := d.hw.SetGyroHeading(pose.Rotation.Degrees()); err != nil {
		return err
	}
	d.state.Reset(t, pose)
	return nil
}

// Stop drops to open loop with zero output.
func (d *Drive) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	return d.stopLocked()
}

func (d *Drive) stopLocked() error {
	if !d.Initialized() {
		return nil
	}
	d.machine.Force(OpenLoop)
	d.setpoint = kinematics.DriveVelocity{}
	return d.hw.SetOpenLoop(0, 0)
}
