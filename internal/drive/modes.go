package drive

import (
	"math"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/monitoring"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/pursuit"
)

// SetWantDrivePath starts following p. Distance driven is reset and a fresh
// follower is built unless p is already being followed.
func (d *Drive) SetWantDrivePath(p *path.Path, reversed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	if p == d.currentPath && d.machine.System() == PathFollowing {
		return nil
	}

	d.machine.Force(PathFollowing)
	if err := d.setBrakeLocked(true); err != nil {
		return err
	}
	d.state.ResetDistanceDriven()
	d.follower = pursuit.NewFollower(p, reversed, d.cfg.Follower)
	d.currentPath = p
	return nil
}

// IsDoneWithPath reports true outside path following so a waiting routine
// never hangs.
func (d *Drive) IsDoneWithPath() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.machine.System() != PathFollowing || d.follower == nil {
		monitoring.Errorf("drive: IsDoneWithPath: %v", ErrWrongMode)
		return true
	}
	return d.follower.IsFinished()
}

func (d *Drive) ForceDoneWithPath() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.machine.System() != PathFollowing || d.follower == nil {
		monitoring.Errorf("drive: ForceDoneWithPath: %v", ErrWrongMode)
		return
	}
	d.follower.ForceFinish()
}

func (d *Drive) HasPassedMarker(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.machine.System() != PathFollowing || d.follower == nil {
		monitoring.Errorf("drive: HasPassedMarker: %v", ErrWrongMode)
		return false
	}
	return d.follower.HasPassedMarker(name)
}

func (d *Drive) CrossTrackError() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.machine.System() != PathFollowing || d.follower == nil {
		return 0, ErrWrongMode
	}
	return d.follower.CrossTrackError(), nil
}

func (d *Drive) AlongTrackError() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.machine.System() != PathFollowing || d.follower == nil {
		return 0, ErrWrongMode
	}
	return d.follower.AlongTrackError(), nil
}

// FollowerDebug returns the latest follower snapshot while following.
func (d *Drive) FollowerDebug() (pursuit.DebugOutput, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.follower == nil {
		return pursuit.DebugOutput{}, false
	}
	return d.follower.Debug(), true
}

func (d *Drive) handlePathFollowing(t float64, _ ControlState) ControlState {
	if d.follower == nil {
		return VelocitySetpoint
	}
	pose := d.state.LatestPose()
	cmd := d.follower.Update(t, pose, d.state.DistanceDriven(), d.state.PredictedVelocity().Dx)
	if d.debug != nil {
		d.debug.Add(d.follower.Debug())
	}

	var err error
	if d.follower.IsFinished() {
		err = d.updateVelocitySetpoint(0, 0)
	} else {
		v := d.kin.Inverse(cmd)
		err = d.updateVelocitySetpoint(v.Left, v.Right)
	}
	if err != nil {
		monitoring.Errorf("drive: path following: %v", err)
	}
	return PathFollowing
}

// SetWantTurnToHeading turns in place to a field-relative heading.
func (d *Drive) SetWantTurnToHeading(heading geom.Rotation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	if d.machine.System() != TurnToHeading {
		d.machine.Force(TurnToHeading)
		if err := d.setBrakeLocked(true); err != nil {
			return err
		}
		if err := d.holdPosition(); err != nil {
			return err
		}
	}
	if math.Abs(heading.Inverse().RotateBy(d.targetHeading).Degrees()) > 1e-3 {
		d.targetHeading = heading
		d.onTarget = false
	}
	return nil
}

func (d *Drive) IsDoneWithTurn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.machine.System() != TurnToHeading {
		monitoring.Errorf("drive: IsDoneWithTurn: %v", ErrWrongMode)
		return false
	}
	return d.onTarget
}

func (d *Drive) IsOnTarget() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onTarget
}

func (d *Drive) IsApproaching() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.approaching
}

func (d *Drive) TargetHeading() geom.Rotation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targetHeading
}

func (d *Drive) handleTurnToHeading(t float64, _ ControlState) ControlState {
	if err := d.turnToHeading(); err != nil {
		monitoring.Errorf("drive: turn to heading: %v", err)
	}
	return TurnToHeading
}

// turnToHeading closes the heading error with a wheel position move derived
// from the inverse kinematics of a pure rotation.
func (d *Drive) turnToHeading() error {
	fieldToRobot := d.state.LatestPose().Rotation
	robotToTarget := fieldToRobot.Inverse().RotateBy(d.targetHeading)

	if math.Abs(robotToTarget.Degrees()) < d.cfg.HeadingToleranceDeg &&
		math.Abs(d.hw.LeftVelocity()) < d.cfg.TurnVelTolerance &&
		math.Abs(d.hw.RightVelocity()) < d.cfg.TurnVelTolerance {
		d.onTarget = true
		return d.holdPosition()
	}

	delta := d.kin.Inverse(geom.Twist{Dtheta: robotToTarget.Radians()})
	return d.updatePositionSetpoint(delta.Left+d.hw.LeftDistance(), delta.Right+d.hw.RightDistance())
}

// SetWantAimToGoal turns toward the vision target, holding the current
// heading until a fresh sighting arrives.
func (d *Drive) SetWantAimToGoal() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	if d.machine.System() != AimToGoal {
		d.onTarget = false
		d.machine.Force(AimToGoal)
		if err := d.setBrakeLocked(true); err != nil {
			return err
		}
		if err := d.holdPosition(); err != nil {
			return err
		}
		d.targetHeading = geom.FromDegrees(d.hw.GyroHeadingDegrees())
	}
	return nil
}

// SetWantDriveTowardsGoal aligns with the vision target, then drives until
// it is inside the optimal range band, then aims.
func (d *Drive) SetWantDriveTowardsGoal() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Initialized() {
		return ErrUninitialized
	}
	switch d.machine.System() {
	case DriveTowardsGoalCoarseAlign, DriveTowardsGoalApproach, AimToGoal:
		return nil
	}
	d.onTarget = false
	d.machine.Force(DriveTowardsGoalCoarseAlign)
	if err := d.setBrakeLocked(true); err != nil {
		return err
	}
	if err := d.holdPosition(); err != nil {
		return err
	}
	d.targetHeading = geom.FromDegrees(d.hw.GyroHeadingDegrees())
	return nil
}

func (d *Drive) updateGoalHeading() {
	if aim, ok := d.state.AimingParameters(); ok {
		d.targetHeading = aim.RobotToGoal
	}
}

func (d *Drive) handleAimToGoal(t float64, _ ControlState) ControlState {
	d.updateGoalHeading()
	if err := d.turnToHeading(); err != nil {
		monitoring.Errorf("drive: aim to goal: %v", err)
	}
	return AimToGoal
}

func (d *Drive) handleCoarseAlign(t float64, _ ControlState) ControlState {
	d.updateGoalHeading()
	if err := d.turnToHeading(); err != nil {
		monitoring.Errorf("drive: coarse align: %v", err)
	}
	d.approaching = true
	if !d.onTarget {
		return DriveTowardsGoalCoarseAlign
	}

	d.onTarget = false
	if aim, ok := d.state.AimingParameters(); ok &&
		aim.Range > d.cfg.OptimalRangeFloor && aim.Range < d.cfg.OptimalRangeCeiling {
		d.approaching = false
		return d.enterAim()
	}
	return DriveTowardsGoalApproach
}

func (d *Drive) handleApproach(t float64, _ ControlState) ControlState {
	d.approaching = true
	aim, ok := d.state.AimingParameters()
	if !ok {
		if err := d.holdPosition(); err != nil {
			monitoring.Errorf("drive: approach: %v", err)
		}
		return DriveTowardsGoalApproach
	}

	var rangeErr float64
	switch {
	case aim.Range < d.cfg.OptimalRangeFloor:
		rangeErr = aim.Range - d.cfg.OptimalRangeFloor
	case aim.Range > d.cfg.OptimalRangeCeiling:
		rangeErr = aim.Range - d.cfg.OptimalRangeCeiling
	}
	if math.Abs(rangeErr) <= d.cfg.ApproachTolerance {
		d.state.ResetVision()
		d.approaching = false
		return d.enterAim()
	}

	err := d.updatePositionSetpoint(d.hw.LeftDistance()+rangeErr, d.hw.RightDistance()+rangeErr)
	if err != nil {
		monitoring.Errorf("drive: approach: %v", err)
	}
	return DriveTowardsGoalApproach
}

func (d *Drive) enterAim() ControlState {
	d.machine.Force(AimToGoal)
	if err := d.holdPosition(); err != nil {
		monitoring.Errorf("drive: aim: %v", err)
	}
	return AimToGoal
}
