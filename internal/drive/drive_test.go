package drive

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/drivenav/internal/estimator"
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/loop"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/pursuit"
)

type fakeHardware struct {
	initialized bool

	leftDist, rightDist float64
	leftVel, rightVel   float64
	gyro                float64

	openLoop [2]float64
	velocity [2]float64
	position [2]float64
	brake    bool

	positionCalls int
	resets        int
	failBrake     error
}

func (h *fakeHardware) Initialized() bool           { return h.initialized }
func (h *fakeHardware) LeftDistance() float64       { return h.leftDist }
func (h *fakeHardware) RightDistance() float64      { return h.rightDist }
func (h *fakeHardware) LeftVelocity() float64       { return h.leftVel }
func (h *fakeHardware) RightVelocity() float64      { return h.rightVel }
func (h *fakeHardware) GyroHeadingDegrees() float64 { return h.gyro }

func (h *fakeHardware) SetGyroHeading(deg float64) error {
	h.gyro = deg
	return nil
}

func (h *fakeHardware) SetOpenLoop(left, right float64) error {
	h.openLoop = [2]float64{left, right}
	return nil
}

func (h *fakeHardware) SetVelocity(left, right float64) error {
	h.velocity = [2]float64{left, right}
	return nil
}

func (h *fakeHardware) SetPosition(left, right float64) error {
	h.position = [2]float64{left, right}
	h.positionCalls++
	return nil
}

func (h *fakeHardware) SetBrakeMode(on bool) error {
	if h.failBrake != nil {
		return h.failBrake
	}
	h.brake = on
	return nil
}

func (h *fakeHardware) ResetEncoders() error {
	h.leftDist, h.rightDist = 0, 0
	h.resets++
	return nil
}

type recordingSink struct {
	added   []pursuit.DebugOutput
	flushes int
	onFlush func()
}

func (s *recordingSink) Add(o pursuit.DebugOutput) { s.added = append(s.added, o) }

func (s *recordingSink) Flush() error {
	s.flushes++
	if s.onFlush != nil {
		s.onFlush()
	}
	return nil
}

type countingRegistrar struct{ tasks []loop.Task }

func (r *countingRegistrar) Register(t loop.Task) error {
	r.tasks = append(r.tasks, t)
	return nil
}

const track = 24.0

func newTestDrive(t *testing.T) (*Drive, *fakeHardware, *estimator.RobotState) {
	t.Helper()
	hw := &fakeHardware{initialized: true}
	kin := kinematics.New(track)
	state := estimator.New(kin, estimator.DefaultConfig())
	return New(hw, kin, state, DefaultConfig()), hw, state
}

func straight(t *testing.T, length float64) *path.Path {
	t.Helper()
	p, err := path.Build([]path.Waypoint{
		path.NewWaypoint(0, 0, 0, 0),
		path.NewWaypoint(length, 0, 0, 60).WithMarker("end"),
	}, 300)
	require.NoError(t, err)
	return p
}

func TestUninitializedHardware(t *testing.T) {
	hw := &fakeHardware{}
	kin := kinematics.New(track)
	d := New(hw, kin, estimator.New(kin, estimator.DefaultConfig()), DefaultConfig())

	assert.False(t, d.Initialized())
	assert.ErrorIs(t, d.SetOpenLoop(1, 1), ErrUninitialized)
	assert.ErrorIs(t, d.SetVelocitySetpoint(1, 1), ErrUninitialized)
	assert.ErrorIs(t, d.SetWantDrivePath(straight(t, 24), false), ErrUninitialized)
	assert.ErrorIs(t, d.SetWantTurnToHeading(geom.FromDegrees(90)), ErrUninitialized)
	assert.ErrorIs(t, d.Stop(), ErrUninitialized)

	r := &countingRegistrar{}
	assert.ErrorIs(t, d.Register(r), ErrUninitialized)
	assert.Empty(t, r.tasks)

	// the task is inert without hardware
	task := d.Task()
	task.OnStart(0)
	task.OnLoop(0.02)
	assert.NoError(t, task.OnStop(0.04))
	assert.Equal(t, [2]float64{}, hw.velocity)
}

func TestRegister(t *testing.T) {
	d, _, _ := newTestDrive(t)
	r := &countingRegistrar{}
	require.NoError(t, d.Register(r))
	assert.Len(t, r.tasks, 1)
}

func TestVelocitySetpointScaling(t *testing.T) {
	d, hw, _ := newTestDrive(t)

	require.NoError(t, d.SetVelocitySetpoint(300, 150))
	assert.Equal(t, VelocitySetpoint, d.Mode())
	assert.True(t, hw.brake)
	assert.Equal(t, [2]float64{150, 75}, hw.velocity)
	assert.Equal(t, kinematics.DriveVelocity{Left: 150, Right: 75}, d.Setpoint())

	require.NoError(t, d.SetVelocitySetpoint(-40, 20))
	assert.Equal(t, [2]float64{-40, 20}, hw.velocity)
}

func TestOpenLoopReleasesBrake(t *testing.T) {
	d, hw, _ := newTestDrive(t)
	require.NoError(t, d.SetVelocitySetpoint(10, 10))
	require.True(t, hw.brake)

	require.NoError(t, d.SetOpenLoop(0.5, -0.5))
	assert.Equal(t, OpenLoop, d.Mode())
	assert.False(t, hw.brake)
	assert.Equal(t, [2]float64{0.5, -0.5}, hw.openLoop)
}

func TestBrakeErrorPropagates(t *testing.T) {
	d, hw, _ := newTestDrive(t)
	hw.failBrake = errors.New("can bus fault")
	assert.EqualError(t, d.SetVelocitySetpoint(10, 10), "can bus fault")
}

func TestTaskStartZeroesVelocity(t *testing.T) {
	d, hw, _ := newTestDrive(t)
	hw.velocity = [2]float64{9, 9}

	d.Task().OnStart(0)
	assert.Equal(t, VelocitySetpoint, d.Mode())
	assert.Equal(t, [2]float64{0, 0}, hw.velocity)
}

func TestPathFollowing(t *testing.T) {
	d, hw, _ := newTestDrive(t)
	sink := &recordingSink{}
	d.SetDebugSink(sink)
	p := straight(t, 24)

	require.NoError(t, d.SetWantDrivePath(p, false))
	assert.Equal(t, PathFollowing, d.Mode())
	assert.True(t, hw.brake)
	assert.False(t, d.IsDoneWithPath())
	assert.False(t, d.HasPassedMarker("end"))

	task := d.Task()
	task.OnLoop(0)
	task.OnLoop(0.02)

	assert.Greater(t, hw.velocity[0], 0.0)
	assert.InDelta(t, hw.velocity[0], hw.velocity[1], 1e-9)
	assert.Len(t, sink.added, 2)
	assert.Equal(t, 0.02, sink.added[1].Time)

	cte, err := d.CrossTrackError()
	require.NoError(t, err)
	assert.InDelta(t, 0, cte, 1e-9)
	_, err = d.AlongTrackError()
	require.NoError(t, err)

	dbg, ok := d.FollowerDebug()
	require.True(t, ok)
	assert.Greater(t, dbg.Command, 0.0)

	d.ForceDoneWithPath()
	assert.True(t, d.IsDoneWithPath())
	task.OnLoop(0.04)
	assert.Equal(t, [2]float64{0, 0}, hw.velocity)

	require.NoError(t, task.OnStop(0.06))
	assert.Equal(t, OpenLoop, d.Mode())
	assert.Equal(t, 1, sink.flushes)
}

func TestStopFlushesOutsideLock(t *testing.T) {
	d, _, _ := newTestDrive(t)
	locked := true
	sink := &recordingSink{onFlush: func() {
		if d.mu.TryLock() {
			locked = false
			d.mu.Unlock()
		}
	}}
	d.SetDebugSink(sink)

	task := d.Task()
	task.OnStart(0)
	require.NoError(t, d.SetWantDrivePath(straight(t, 24), false))
	task.OnLoop(0.02)
	require.NoError(t, task.OnStop(0.04))

	assert.Equal(t, 1, sink.flushes)
	assert.False(t, locked, "flush ran with the drive mutex held")
}

func TestPathQueriesOutsidePathFollowing(t *testing.T) {
	d, _, _ := newTestDrive(t)

	assert.True(t, d.IsDoneWithPath())
	assert.False(t, d.HasPassedMarker("end"))
	_, err := d.CrossTrackError()
	assert.ErrorIs(t, err, ErrWrongMode)
	_, err = d.AlongTrackError()
	assert.ErrorIs(t, err, ErrWrongMode)
	d.ForceDoneWithPath()
}

func TestSetWantDrivePathSamePath(t *testing.T) {
	d, _, state := newTestDrive(t)
	p := straight(t, 24)
	require.NoError(t, d.SetWantDrivePath(p, false))

	state.Update(0.01, 0, 0, 0)
	state.Update(0.02, 0, 5, 5)
	require.InDelta(t, 5, state.DistanceDriven(), 1e-9)

	require.NoError(t, d.SetWantDrivePath(p, false))
	assert.InDelta(t, 5, state.DistanceDriven(), 1e-9, "same path keeps progress")

	require.NoError(t, d.SetWantDrivePath(straight(t, 48), false))
	assert.Equal(t, 0.0, state.DistanceDriven())
}

func TestTurnToHeading(t *testing.T) {
	d, hw, state := newTestDrive(t)
	hw.leftDist, hw.rightDist = 10, 12

	require.NoError(t, d.SetWantTurnToHeading(geom.FromDegrees(90)))
	assert.Equal(t, TurnToHeading, d.Mode())
	assert.Equal(t, [2]float64{10, 12}, hw.position, "holds position on entry")
	assert.InDelta(t, 90, d.TargetHeading().Degrees(), 1e-9)

	task := d.Task()
	task.OnLoop(0.02)
	arc := track * (math.Pi / 2) / 2
	assert.InDelta(t, 10-arc, hw.position[0], 1e-9)
	assert.InDelta(t, 12+arc, hw.position[1], 1e-9)
	assert.False(t, d.IsDoneWithTurn())

	// still rotating fast enough to overshoot
	state.Reset(0.04, geom.NewPose(0, 0, geom.FromDegrees(90.2)))
	hw.leftVel, hw.rightVel = -20, 20
	task.OnLoop(0.04)
	assert.False(t, d.IsOnTarget())

	hw.leftVel, hw.rightVel = -1, 1
	hw.leftDist, hw.rightDist = -8, 30
	task.OnLoop(0.06)
	assert.True(t, d.IsDoneWithTurn())
	assert.Equal(t, [2]float64{-8, 30}, hw.position)

	// a new heading clears on-target
	require.NoError(t, d.SetWantTurnToHeading(geom.FromDegrees(180)))
	assert.False(t, d.IsOnTarget())
}

func TestIsDoneWithTurnWrongMode(t *testing.T) {
	d, _, _ := newTestDrive(t)
	assert.False(t, d.IsDoneWithTurn())
}

func TestAimToGoal(t *testing.T) {
	d, hw, state := newTestDrive(t)
	hw.gyro = 0

	require.NoError(t, d.SetWantAimToGoal())
	assert.Equal(t, AimToGoal, d.Mode())
	assert.InDelta(t, 0, d.TargetHeading().Degrees(), 1e-9)

	state.AddVisionObservation(0, r2.Point{X: 0, Y: 50})
	d.Task().OnLoop(0.02)

	assert.InDelta(t, 90, d.TargetHeading().Degrees(), 1e-9)
	arc := track * (math.Pi / 2) / 2
	assert.InDelta(t, -arc, hw.position[0], 1e-9)
	assert.InDelta(t, arc, hw.position[1], 1e-9)
}

func TestDriveTowardsGoal(t *testing.T) {
	d, hw, state := newTestDrive(t)
	state.AddVisionObservation(0, r2.Point{X: 100, Y: 0})

	require.NoError(t, d.SetWantDriveTowardsGoal())
	assert.Equal(t, DriveTowardsGoalCoarseAlign, d.Mode())

	task := d.Task()
	task.OnLoop(0.02)
	assert.Equal(t, DriveTowardsGoalApproach, d.Mode())
	assert.True(t, d.IsApproaching())

	task.OnLoop(0.04)
	assert.Equal(t, [2]float64{10, 10}, hw.position)

	// repeated requests keep the sequence going
	require.NoError(t, d.SetWantDriveTowardsGoal())
	assert.Equal(t, DriveTowardsGoalApproach, d.Mode())

	state.AddVisionObservation(0, r2.Point{X: 90.5, Y: 0})
	task.OnLoop(0.06)
	assert.Equal(t, AimToGoal, d.Mode())
	assert.False(t, d.IsApproaching())
	_, ok := state.AimingParameters()
	assert.False(t, ok, "vision is consumed on arrival")
}

func TestDriveTowardsGoalInBand(t *testing.T) {
	d, _, state := newTestDrive(t)
	state.AddVisionObservation(0, r2.Point{X: 75, Y: 0})

	require.NoError(t, d.SetWantDriveTowardsGoal())
	d.Task().OnLoop(0.02)
	assert.Equal(t, AimToGoal, d.Mode())
	assert.False(t, d.IsApproaching())
}

func TestResetPose(t *testing.T) {
	d, hw, state := newTestDrive(t)
	hw.leftDist, hw.rightDist = 40, 42

	pose := geom.NewPose(18, 166, geom.FromDegrees(-90))
	require.NoError(t, d.ResetPose(1.5, pose))

	assert.Equal(t, 1, hw.resets)
	assert.InDelta(t, -90, hw.gyro, 1e-9)
	assert.Equal(t, 1.5, state.Latest().Time)
	assert.InDelta(t, 166, state.LatestPose().Y(), 1e-12)
}

func TestStop(t *testing.T) {
	d, hw, _ := newTestDrive(t)
	require.NoError(t, d.SetVelocitySetpoint(50, 50))

	require.NoError(t, d.Stop())
	assert.Equal(t, OpenLoop, d.Mode())
	assert.Equal(t, [2]float64{0, 0}, hw.openLoop)
	assert.Equal(t, kinematics.DriveVelocity{}, d.Setpoint())
}

func TestControlStateString(t *testing.T) {
	assert.Equal(t, "path-following", PathFollowing.String())
	assert.Equal(t, "unknown", ControlState(42).String())
}
