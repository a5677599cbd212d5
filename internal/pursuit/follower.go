package pursuit

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/path"
)

type State int

const (
	Running State = iota
	Finished
)

func (s State) String() string {
	if s == Finished {
		return "finished"
	}
	return "running"
}

// DebugOutput is a snapshot of one update, written to telemetry.
type DebugOutput struct {
	Time            float64
	PoseX           float64
	PoseY           float64
	PoseTheta       float64
	DistanceDriven  float64
	LookaheadX      float64
	LookaheadY      float64
	LookaheadDist   float64
	Curvature       float64
	ProfileSpeed    float64
	Command         float64
	CrossTrackError float64
	AlongTrackError float64
}

type Follower struct {
	path     *path.Path
	reversed bool
	params   Parameters

	state     State
	lastTime  float64
	started   bool
	steered   bool
	curvature float64
	lookahead float64

	setpointPos float64
	setpointVel float64
	integral    float64

	distance   float64
	crossTrack float64
	alongTrack float64
	passed     map[string]bool
	debug      DebugOutput
}

// NewFollower binds a follower to p. An empty path is finished from the
// start.
func NewFollower(p *path.Path, reversed bool, params Parameters) *Follower {
	f := &Follower{
		path:      p,
		reversed:  reversed,
		params:    params,
		passed:    make(map[string]bool),
		lookahead: params.Lookahead.DistanceFromSpeed(0),
	}
	if p.IsEmpty() {
		f.state = Finished
	}
	f.alongTrack = p.Length()
	return f
}

// Update advances the follower one tick. pose and velocity are the robot's
// own (velocity signed along its heading); distanceDriven is unsigned travel
// since the path started. The returned twist is a body-frame velocity.
func (f *Follower) Update(t float64, pose geom.Pose, distanceDriven, velocity float64) geom.Twist {
	if f.state == Finished {
		return geom.Twist{}
	}

	robot := pose
	if f.reversed {
		pose = pose.Flipped()
		velocity = -velocity
	}

	dt := 0.0
	if f.started {
		dt = t - f.lastTime
	}
	f.started = true
	f.lastTime = t

	length := f.path.Length()
	f.distance = distanceDriven
	// travel past the end counts as arrived
	remaining := math.Max(length-distanceDriven, 0)
	f.updateMarkers()

	f.lookahead = f.params.Lookahead.DistanceFromSpeed(velocity)
	target := f.path.PointAtDistance(distanceDriven + f.lookahead)

	// a path shorter than the stop-steering distance still steers once
	if remaining > f.params.StopSteeringDistance || !f.steered {
		f.steered = true
		rel := pose.RelativePoint(target.Translation)
		fresh := 2 * rel.Y / (f.lookahead * f.lookahead)
		g := clamp(f.params.InertiaGain, 0, 1)
		f.curvature = g*f.curvature + (1-g)*fresh
	}

	limit := math.Min(f.path.SpeedLimitAtDistance(distanceDriven+f.lookahead), f.params.MaxVelocity)
	accel := f.advanceProfile(dt, length, limit)

	posErr := f.setpointPos - distanceDriven
	f.integral += posErr * dt
	p := f.params
	cmd := p.ProfileKffv*f.setpointVel + p.ProfileKffa*accel +
		p.ProfileKp*posErr + p.ProfileKi*f.integral +
		p.ProfileKv*(f.setpointVel-velocity)
	// never back up along a path; overshoot is absorbed by the goal tolerance
	cmd = clamp(cmd, 0, limit)

	nearest, _ := f.path.NearestPointAndDistance(pose.Translation)
	f.crossTrack = pose.Translation.Sub(nearest).Norm()
	f.alongTrack = remaining

	f.debug = DebugOutput{
		Time:            t,
		PoseX:           robot.X(),
		PoseY:           robot.Y(),
		PoseTheta:       robot.Rotation.Radians(),
		DistanceDriven:  distanceDriven,
		LookaheadX:      target.X(),
		LookaheadY:      target.Y(),
		LookaheadDist:   f.lookahead,
		Curvature:       f.curvature,
		ProfileSpeed:    f.setpointVel,
		Command:         cmd,
		CrossTrackError: f.crossTrack,
		AlongTrackError: f.alongTrack,
	}

	if remaining <= p.GoalPosTolerance && math.Abs(velocity) <= p.GoalVelTolerance {
		f.state = Finished
		return geom.Twist{}
	}

	if f.reversed {
		return geom.Twist{Dx: -cmd, Dtheta: cmd * f.curvature}
	}
	return geom.Twist{Dx: cmd, Dtheta: cmd * f.curvature}
}

// advanceProfile moves the speed setpoint toward the fastest speed that can
// still stop at the end of the path, and returns the setpoint acceleration.
func (f *Follower) advanceProfile(dt, length, limit float64) float64 {
	if dt <= 0 {
		return 0
	}
	a := f.params.MaxAcceleration
	stop := math.Sqrt(2 * a * math.Max(length-f.setpointPos, 0))
	goal := math.Min(limit, stop)
	next := math.Min(goal, f.setpointVel+a*dt)

	accel := (next - f.setpointVel) / dt
	f.setpointPos = math.Min(length, f.setpointPos+(f.setpointVel+next)/2*dt)
	f.setpointVel = next
	return accel
}

func (f *Follower) updateMarkers() {
	for name := range f.path.Markers() {
		if !f.passed[name] && f.path.HasPassedMarker(name, f.distance) {
			f.passed[name] = true
		}
	}
}

// ForceFinish stops the follower immediately. Subsequent updates return a
// zero twist.
func (f *Follower) ForceFinish() {
	f.state = Finished
}

func (f *Follower) IsFinished() bool        { return f.state == Finished }
func (f *Follower) State() State             { return f.state }
func (f *Follower) IsReversed() bool         { return f.reversed }
func (f *Follower) Path() *path.Path         { return f.path }
func (f *Follower) Curvature() float64       { return f.curvature }
func (f *Follower) CrossTrackError() float64 { return f.crossTrack }
func (f *Follower) AlongTrackError() float64 { return f.alongTrack }
func (f *Follower) Debug() DebugOutput       { return f.debug }

// LookaheadDistance is the distance used by the most recent update.
func (f *Follower) LookaheadDistance() float64 { return f.lookahead }

// HasPassedMarker latches: once a marker is passed it stays passed for the
// life of the follower.
func (f *Follower) HasPassedMarker(name string) bool {
	if f.passed[name] {
		return true
	}
	if f.path.HasPassedMarker(name, f.distance) {
		f.passed[name] = true
		return true
	}
	return false
}

// LookaheadPoint is where the most recent update aimed.
func (f *Follower) LookaheadPoint() r2.Point {
	return r2.Point{X: f.debug.LookaheadX, Y: f.debug.LookaheadY}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
