// Package sim drives the navigation stack against a simulated drivetrain.
//
// A [Runner] wires the pose estimator and the drive subsystem to a
// [Hardware] plant through the same task interface the robot's scheduler
// uses, then drives one path. [Runner.Run] steps a [loop.Group] with virtual
// timestamps and is fully deterministic; [Runner.RunRealtime] hands the same
// tasks to a [loop.Looper].
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"

	"github.com/san-kum/drivenav/internal/drive"
	"github.com/san-kum/drivenav/internal/estimator"
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/loop"
	"github.com/san-kum/drivenav/internal/metrics"
	"github.com/san-kum/drivenav/internal/monitoring"
	"github.com/san-kum/drivenav/internal/paths"
	"github.com/san-kum/drivenav/internal/timeutil"
)

var ErrInvalidConfig = errors.New("sim: invalid config")

type Config struct {
	// Dt is the scheduler period in seconds.
	Dt       float64
	Duration float64
	// Substeps splits each period for the wheel controllers and the plant.
	Substeps int
	MaxDecel float64
	// StartOffset displaces the true start pose from the one the estimator
	// is seeded with, in the start pose's frame.
	StartOffset      geom.Pose
	OnTrackTolerance float64
}

func DefaultConfig() Config {
	return Config{
		Dt:               loop.DefaultPeriod.Seconds(),
		Duration:         15,
		Substeps:         4,
		MaxDecel:         300,
		OnTrackTolerance: 2,
	}
}

func (c Config) validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, c.Duration)
	}
	return nil
}

// SimError marks the tick at which a run went wrong.
type SimError struct {
	Step    int
	Time    float64
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("sim: step %d (t=%.3f): %s", e.Step, e.Time, e.Message)
}

// Step is one recorded tick.
type Step struct {
	Index      int
	Time       float64
	True       geom.Pose
	Estimated  geom.Pose
	Command    kinematics.DriveVelocity
	CrossTrack float64
	AlongTrack float64
	Mode       drive.ControlState
	// Lookahead is the follower's aim point; zero unless Following.
	Lookahead r2.Point
	Following bool
}

// Observer is notified after every recorded tick, on the goroutine driving
// the run.
type Observer interface {
	OnStep(s Step)
}

type Result struct {
	Path       string
	Times      []float64
	Poses      []geom.Pose
	Estimated  []geom.Pose
	Commands   []kinematics.DriveVelocity
	CrossTrack []float64
	AlongTrack []float64
	Finished   bool
	FinishTime float64
	StepsTaken int
	Metrics    map[string]float64
	Errors     []error
}

type Runner struct {
	Hardware  HardwareConfig
	Drive     drive.Config
	Estimator estimator.Config
	Config    Config
	// Sink receives follower snapshots. It is flushed when the drive stops.
	Sink drive.DebugSink

	observers []Observer
}

func NewRunner() *Runner {
	return &Runner{
		Hardware:  DefaultHardwareConfig(),
		Drive:     drive.DefaultConfig(),
		Estimator: estimator.DefaultConfig(),
		Config:    DefaultConfig(),
	}
}

func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// session is one path run's wiring and recording.
type session struct {
	r       *Runner
	hw      *Hardware
	state   *estimator.RobotState
	drv     *drive.Drive
	est     *estimator.Task
	metrics []metrics.Metric
	result  *Result
	t0      float64
}

func (r *Runner) newSession(c paths.Container, t0 float64) (*session, error) {
	if err := r.Config.validate(); err != nil {
		return nil, err
	}

	hw := NewHardware(r.Hardware)
	kin := r.Hardware.Model
	state := estimator.New(kin, r.Estimator)
	drv := drive.New(hw, kin, state, r.Drive)
	if r.Sink != nil {
		drv.SetDebugSink(r.Sink)
	}

	hw.SetPose(c.StartPose.TransformBy(r.Config.StartOffset))
	if err := drv.ResetPose(t0, c.StartPose); err != nil {
		return nil, err
	}

	steps := int(r.Config.Duration/r.Config.Dt) + 1
	return &session{
		r:       r,
		hw:      hw,
		state:   state,
		drv:     drv,
		est:     estimator.NewTask(state, hw),
		metrics: metrics.Tracking(r.Config.OnTrackTolerance),
		t0:      t0,
		result: &Result{
			Path:       c.Name,
			Times:      make([]float64, 0, steps),
			Poses:      make([]geom.Pose, 0, steps),
			Estimated:  make([]geom.Pose, 0, steps),
			Commands:   make([]kinematics.DriveVelocity, 0, steps),
			CrossTrack: make([]float64, 0, steps),
			AlongTrack: make([]float64, 0, steps),
		},
	}, nil
}

// record captures the tick at timestamp t and reports whether the path is
// done.
func (s *session) record(t float64) bool {
	rel := t - s.t0
	step := Step{
		Index:     s.result.StepsTaken,
		Time:      rel,
		True:      s.hw.TruePose(),
		Estimated: s.state.LatestPose(),
		Command:   s.drv.Setpoint(),
		Mode:      s.drv.Mode(),
	}
	step.CrossTrack, _ = s.drv.CrossTrackError()
	step.AlongTrack, _ = s.drv.AlongTrackError()
	if dbg, ok := s.drv.FollowerDebug(); ok {
		step.Lookahead = r2.Point{X: dbg.LookaheadX, Y: dbg.LookaheadY}
		step.Following = true
	}

	res := s.result
	res.Times = append(res.Times, rel)
	res.Poses = append(res.Poses, step.True)
	res.Estimated = append(res.Estimated, step.Estimated)
	res.Commands = append(res.Commands, step.Command)
	res.CrossTrack = append(res.CrossTrack, step.CrossTrack)
	res.AlongTrack = append(res.AlongTrack, step.AlongTrack)
	res.StepsTaken++

	sample := metrics.Sample{
		Time:       rel,
		CrossTrack: step.CrossTrack,
		AlongTrack: step.AlongTrack,
		Left:       step.Command.Left,
		Right:      step.Command.Right,
		PoseError:  step.True.Translation.Sub(step.Estimated.Translation).Norm(),
	}
	for _, m := range s.metrics {
		m.Observe(sample)
	}
	for _, o := range s.r.observers {
		o.OnStep(step)
	}

	if step.Mode == drive.PathFollowing && s.drv.IsDoneWithPath() {
		res.Finished = true
		res.FinishTime = rel
		return true
	}
	return false
}

// advance moves the plant forward one scheduler period.
func (s *session) advance() error {
	n := s.r.Config.Substeps
	if n < 1 {
		n = 1
	}
	h := s.r.Config.Dt / float64(n)
	for i := 0; i < n; i++ {
		if err := s.hw.Advance(h); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) finish() *Result {
	s.result.Metrics = metrics.Summarize(s.metrics)
	return s.result
}

// Run drives c to completion, or until the configured duration elapses,
// stepping every task with virtual timestamps.
func (r *Runner) Run(ctx context.Context, c paths.Container) (*Result, error) {
	p, err := c.Build(r.Config.MaxDecel)
	if err != nil {
		return nil, err
	}
	s, err := r.newSession(c, 0)
	if err != nil {
		return nil, err
	}

	var g loop.Group
	g.Register(s.est)
	g.Register(s.drv.Task())
	g.Start(0)
	if err := s.drv.SetWantDrivePath(p, c.Reversed); err != nil {
		return nil, err
	}

	steps := int(math.Round(r.Config.Duration / r.Config.Dt))
	t := 0.0
	var runErr error
	for i := 0; i <= steps; i++ {
		t = float64(i) * r.Config.Dt
		if runErr = ctx.Err(); runErr != nil {
			break
		}

		g.Loop(t)
		if s.record(t) {
			break
		}
		if err := s.advance(); err != nil {
			s.result.Errors = append(s.result.Errors, SimError{Step: i, Time: t, Message: err.Error()})
			break
		}
	}

	if err := g.Stop(t); err != nil {
		s.result.Errors = append(s.result.Errors, err)
	}
	res := s.finish()
	if !res.Finished && runErr == nil {
		monitoring.Warnf("sim: %s did not finish within %.1fs", c.Name, r.Config.Duration)
	}
	return res, runErr
}

// RunRealtime drives c from a Looper on clock, advancing the plant one period
// per tick, until the path finishes, the duration elapses, or ctx is done.
func (r *Runner) RunRealtime(ctx context.Context, c paths.Container, clock timeutil.Clock) (*Result, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p, err := c.Build(r.Config.MaxDecel)
	if err != nil {
		return nil, err
	}
	period := timeutil.Duration(r.Config.Dt)
	looper, err := loop.NewLooper(clock, period)
	if err != nil {
		return nil, err
	}
	s, err := r.newSession(c, timeutil.Seconds(clock.Now()))
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		armed    bool
		done     = make(chan struct{})
		doneOnce sync.Once
		stepErr  error
	)
	finish := func() { doneOnce.Do(func() { close(done) }) }

	plant := loop.Funcs{Loop: func(t float64) {
		mu.Lock()
		defer mu.Unlock()
		if !armed {
			return
		}
		if s.record(t) || t-s.t0 >= r.Config.Duration {
			finish()
			return
		}
		if err := s.advance(); err != nil {
			stepErr = SimError{Step: s.result.StepsTaken, Time: t - s.t0, Message: err.Error()}
			finish()
		}
	}}

	if err := looper.Register(s.est); err != nil {
		return nil, err
	}
	if err := s.drv.Register(looper); err != nil {
		return nil, err
	}
	if err := looper.Register(plant); err != nil {
		return nil, err
	}
	if err := looper.Start(); err != nil {
		return nil, err
	}

	err = s.drv.SetWantDrivePath(p, c.Reversed)
	mu.Lock()
	armed = err == nil
	mu.Unlock()
	if err != nil {
		return nil, multierr.Append(err, looper.Stop())
	}

	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	stopErr := looper.Stop()

	mu.Lock()
	defer mu.Unlock()
	if stepErr != nil {
		s.result.Errors = append(s.result.Errors, stepErr)
	}
	if stopErr != nil {
		s.result.Errors = append(s.result.Errors, stopErr)
	}
	return s.finish(), err
}
