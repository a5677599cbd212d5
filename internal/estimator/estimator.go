// Package estimator tracks the robot's field-relative pose by dead reckoning
// wheel odometry, with the gyro as the authority on heading.
//
// RobotState keeps a bounded, time-ordered pose history that can be queried
// at any timestamp, a distance-driven accumulator for path progress, and the
// most recent vision sighting of a goal. All methods are safe for concurrent
// use.
package estimator

import (
	"math"
	"sort"
	"sync"

	"github.com/golang/geo/r2"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
)

type Config struct {
	// HistoryRetention is how many seconds of poses are kept.
	HistoryRetention float64
	// VisionMaxAge is how old, in seconds, a vision sighting may be before
	// aiming parameters are withheld.
	VisionMaxAge float64
}

func DefaultConfig() Config {
	return Config{HistoryRetention: 1.0, VisionMaxAge: 0.5}
}

// Sample is one timestamped pose.
type Sample struct {
	Time float64
	Pose geom.Pose
}

// AimingParameters describe where a sighted goal lies from the latest pose.
type AimingParameters struct {
	Range float64
	// RobotToGoal is the field-relative direction from robot to goal.
	RobotToGoal geom.Rotation
	// Bearing is RobotToGoal relative to the robot's heading.
	Bearing geom.Rotation
	Target  r2.Point
	// Age is seconds between the sighting and the latest pose.
	Age float64
}

type sighting struct {
	time   float64
	target r2.Point
}

type RobotState struct {
	kin kinematics.Model
	cfg Config

	mu           sync.Mutex
	history      []Sample
	haveBaseline bool
	lastLeft     float64
	lastRight    float64
	distance     float64
	velocity     geom.Twist
	vision       *sighting
}

// New returns an estimator seeded at the origin at time zero.
func New(kin kinematics.Model, cfg Config) *RobotState {
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = DefaultConfig().HistoryRetention
	}
	s := &RobotState{kin: kin, cfg: cfg}
	s.Reset(0, geom.Pose{})
	return s
}

// Reset clears history, distance, velocity and vision, and seeds the history
// with pose at t. The next Update only records an encoder baseline.
func (s *RobotState) Reset(t float64, pose geom.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []Sample{{Time: t, Pose: pose}}
	s.haveBaseline = false
	s.distance = 0
	s.velocity = geom.Twist{}
	s.vision = nil
}

// ResetBaseline makes the next Update re-read the encoders instead of
// integrating from the previous reading, for use after encoders are zeroed.
func (s *RobotState) ResetBaseline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveBaseline = false
}

// Update integrates the wheel travel since the previous call and records the
// resulting pose at t. Distances are absolute encoder readings in inches.
func (s *RobotState) Update(t, gyroHeadingDeg, leftDist, rightDist float64) geom.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.history[len(s.history)-1]
	heading := geom.FromDegrees(gyroHeadingDeg)

	var twist geom.Twist
	if s.haveBaseline {
		twist = s.kin.Forward(leftDist-s.lastLeft, rightDist-s.lastRight)
	}
	s.lastLeft, s.lastRight = leftDist, rightDist
	s.haveBaseline = true

	next := latest.Pose.TransformBy(geom.Exp(twist))
	next.Rotation = heading

	if dt := t - latest.Time; dt > 0 {
		s.velocity = twist.Scaled(1 / dt)
		s.history = append(s.history, Sample{Time: t, Pose: next})
	} else {
		// out-of-order or repeated timestamp, refine the newest sample
		s.history[len(s.history)-1].Pose = next
	}
	s.distance += twist.Norm()
	s.evict(t)
	return next
}

func (s *RobotState) evict(now float64) {
	cutoff := now - s.cfg.HistoryRetention
	i := 0
	for i < len(s.history)-1 && s.history[i].Time < cutoff {
		i++
	}
	if i > 0 {
		s.history = append(s.history[:0], s.history[i:]...)
	}
}

// PoseAt interpolates between the samples bracketing t, extrapolates past
// the newest with the predicted velocity, and clamps to the oldest.
func (s *RobotState) PoseAt(t float64) geom.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poseAt(t)
}

func (s *RobotState) poseAt(t float64) geom.Pose {
	oldest := s.history[0]
	newest := s.history[len(s.history)-1]
	if t <= oldest.Time {
		return oldest.Pose
	}
	if t >= newest.Time {
		return newest.Pose.TransformBy(geom.Exp(s.velocity.Scaled(t - newest.Time)))
	}

	i := sort.Search(len(s.history), func(i int) bool { return s.history[i].Time >= t })
	lo, hi := s.history[i-1], s.history[i]
	frac := (t - lo.Time) / (hi.Time - lo.Time)
	return lo.Pose.Interpolate(hi.Pose, frac)
}

func (s *RobotState) Latest() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[len(s.history)-1]
}

func (s *RobotState) LatestPose() geom.Pose {
	return s.Latest().Pose
}

// History returns a copy of the retained samples, oldest first.
func (s *RobotState) History() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.history...)
}

func (s *RobotState) DistanceDriven() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance
}

func (s *RobotState) ResetDistanceDriven() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distance = 0
}

// PredictedVelocity is the most recent twist per second.
func (s *RobotState) PredictedVelocity() geom.Twist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity
}

// AddVisionObservation records a goal sighted at a field position.
func (s *RobotState) AddVisionObservation(t float64, target r2.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vision = &sighting{time: t, target: target}
}

// AddVisionBearingRange records a goal sighted at a bearing and range
// relative to the robot, placed on the field with the pose at t.
func (s *RobotState) AddVisionBearingRange(t float64, bearing geom.Rotation, rng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pose := s.poseAt(t)
	dir := pose.Rotation.RotateBy(bearing).Direction()
	s.vision = &sighting{time: t, target: pose.Translation.Add(dir.Mul(rng))}
}

func (s *RobotState) ResetVision() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vision = nil
}

// AimingParameters reports the goal relative to the latest pose. ok is false
// when there is no sighting or it is older than VisionMaxAge.
func (s *RobotState) AimingParameters() (AimingParameters, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vision == nil {
		return AimingParameters{}, false
	}
	latest := s.history[len(s.history)-1]
	age := latest.Time - s.vision.time
	if age > s.cfg.VisionMaxAge {
		return AimingParameters{}, false
	}

	toGoal := s.vision.target.Sub(latest.Pose.Translation)
	robotToGoal := geom.FromRadians(math.Atan2(toGoal.Y, toGoal.X))
	return AimingParameters{
		Range:       toGoal.Norm(),
		RobotToGoal: robotToGoal,
		Bearing:     latest.Pose.Rotation.Inverse().RotateBy(robotToGoal),
		Target:      s.vision.target,
		Age:         age,
	}, true
}
