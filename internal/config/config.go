// Package config loads the yaml configuration shared by every command and
// converts it into the settings each subsystem takes.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/drivenav/internal/control"
	"github.com/san-kum/drivenav/internal/drive"
	"github.com/san-kum/drivenav/internal/dynamo"
	"github.com/san-kum/drivenav/internal/estimator"
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/integrators"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/pursuit"
	"github.com/san-kum/drivenav/internal/sim"
)

var ErrInvalidConfig = errors.New("config: invalid")

// ArcIntegrator names the exact constant-velocity arc stepper.
const ArcIntegrator = "arc"

const (
	DefaultTrackWidth = 25.5
	DefaultPeriod     = 0.02
	DefaultDuration   = 15.0
	DefaultMaxDecel   = 300.0
)

type Config struct {
	Robot     RobotConfig     `yaml:"robot"`
	Loop      LoopConfig      `yaml:"loop"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Follower  FollowerConfig  `yaml:"follower"`
	Drive     DriveConfig     `yaml:"drive"`
	Path      PathConfig      `yaml:"path"`
	Sim       SimConfig       `yaml:"sim"`
}

type RobotConfig struct {
	TrackWidth  float64 `yaml:"track_width"`
	FreeSpeed   float64 `yaml:"free_speed"`
	VelocityLag float64 `yaml:"velocity_lag"`
	PositionKp  float64 `yaml:"position_kp"`
	PositionKi  float64 `yaml:"position_ki"`
	PositionKd  float64 `yaml:"position_kd"`
}

type LoopConfig struct {
	// Period in seconds.
	Period float64 `yaml:"period"`
}

type EstimatorConfig struct {
	HistoryRetention float64 `yaml:"history_retention"`
	VisionMaxAge     float64 `yaml:"vision_max_age"`
}

type FollowerConfig struct {
	LookaheadMinDistance float64 `yaml:"lookahead_min_distance"`
	LookaheadMaxDistance float64 `yaml:"lookahead_max_distance"`
	LookaheadMinSpeed    float64 `yaml:"lookahead_min_speed"`
	LookaheadMaxSpeed    float64 `yaml:"lookahead_max_speed"`
	InertiaGain          float64 `yaml:"inertia_gain"`
	Kp                   float64 `yaml:"kp"`
	Ki                   float64 `yaml:"ki"`
	Kv                   float64 `yaml:"kv"`
	Kffv                 float64 `yaml:"kffv"`
	Kffa                 float64 `yaml:"kffa"`
	MaxVelocity          float64 `yaml:"max_velocity"`
	MaxAcceleration      float64 `yaml:"max_acceleration"`
	GoalPosTolerance     float64 `yaml:"goal_pos_tolerance"`
	GoalVelTolerance     float64 `yaml:"goal_vel_tolerance"`
	StopSteeringDistance float64 `yaml:"stop_steering_distance"`
}

type DriveConfig struct {
	MaxSetpoint         float64 `yaml:"max_setpoint"`
	HeadingToleranceDeg float64 `yaml:"heading_tolerance_deg"`
	TurnVelTolerance    float64 `yaml:"turn_vel_tolerance"`
	OptimalRangeFloor   float64 `yaml:"optimal_range_floor"`
	OptimalRangeCeiling float64 `yaml:"optimal_range_ceiling"`
	ApproachTolerance   float64 `yaml:"approach_tolerance"`
}

type PathConfig struct {
	MaxDecel float64 `yaml:"max_decel"`
}

type SimConfig struct {
	Duration         float64 `yaml:"duration"`
	Substeps         int     `yaml:"substeps"`
	Integrator       string  `yaml:"integrator"`
	StartOffsetX     float64 `yaml:"start_offset_x"`
	StartOffsetY     float64 `yaml:"start_offset_y"`
	StartOffsetDeg   float64 `yaml:"start_offset_deg"`
	OnTrackTolerance float64 `yaml:"on_track_tolerance"`
}

func DefaultConfig() *Config {
	fp := pursuit.DefaultParameters()
	dc := drive.DefaultConfig()
	ec := estimator.DefaultConfig()
	gains := control.DefaultGains()
	return &Config{
		Robot: RobotConfig{
			TrackWidth: DefaultTrackWidth,
			FreeSpeed:  180,
			PositionKp: gains.Kp,
			PositionKi: gains.Ki,
			PositionKd: gains.Kd,
		},
		Loop: LoopConfig{Period: DefaultPeriod},
		Estimator: EstimatorConfig{
			HistoryRetention: ec.HistoryRetention,
			VisionMaxAge:     ec.VisionMaxAge,
		},
		Follower: FollowerConfig{
			LookaheadMinDistance: fp.Lookahead.MinDistance,
			LookaheadMaxDistance: fp.Lookahead.MaxDistance,
			LookaheadMinSpeed:    fp.Lookahead.MinSpeed,
			LookaheadMaxSpeed:    fp.Lookahead.MaxSpeed,
			InertiaGain:          fp.InertiaGain,
			Kp:                   fp.ProfileKp,
			Ki:                   fp.ProfileKi,
			Kv:                   fp.ProfileKv,
			Kffv:                 fp.ProfileKffv,
			Kffa:                 fp.ProfileKffa,
			MaxVelocity:          fp.MaxVelocity,
			MaxAcceleration:      fp.MaxAcceleration,
			GoalPosTolerance:     fp.GoalPosTolerance,
			GoalVelTolerance:     fp.GoalVelTolerance,
			StopSteeringDistance: fp.StopSteeringDistance,
		},
		Drive: DriveConfig{
			MaxSetpoint:         dc.MaxSetpoint,
			HeadingToleranceDeg: dc.HeadingToleranceDeg,
			TurnVelTolerance:    dc.TurnVelTolerance,
			OptimalRangeFloor:   dc.OptimalRangeFloor,
			OptimalRangeCeiling: dc.OptimalRangeCeiling,
			ApproachTolerance:   dc.ApproachTolerance,
		},
		Path: PathConfig{MaxDecel: DefaultMaxDecel},
		Sim: SimConfig{
			Duration:         DefaultDuration,
			Substeps:         4,
			Integrator:       ArcIntegrator,
			OnTrackTolerance: 2,
		},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

// Validate reports every problem found, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var err error
	if c.Robot.TrackWidth <= 0 {
		err = multierr.Append(err, invalid("robot.track_width must be positive"))
	}
	if c.Robot.FreeSpeed <= 0 {
		err = multierr.Append(err, invalid("robot.free_speed must be positive"))
	}
	if c.Robot.VelocityLag < 0 {
		err = multierr.Append(err, invalid("robot.velocity_lag must not be negative"))
	}
	if c.Loop.Period <= 0 {
		err = multierr.Append(err, invalid("loop.period must be positive"))
	}
	if c.Estimator.HistoryRetention <= 0 {
		err = multierr.Append(err, invalid("estimator.history_retention must be positive"))
	}

	f := c.Follower
	if f.LookaheadMinDistance < pursuit.MinLookaheadDistance || f.LookaheadMaxDistance < f.LookaheadMinDistance {
		err = multierr.Append(err, invalid("follower lookahead distances must satisfy %.1f <= min <= max",
			pursuit.MinLookaheadDistance))
	}
	if f.LookaheadMaxSpeed < f.LookaheadMinSpeed {
		err = multierr.Append(err, invalid("follower lookahead speeds must satisfy min <= max"))
	}
	if f.InertiaGain < 0 || f.InertiaGain > 1 {
		err = multierr.Append(err, invalid("follower.inertia_gain must be within [0, 1], got %g", f.InertiaGain))
	}
	if f.MaxVelocity <= 0 || f.MaxAcceleration <= 0 {
		err = multierr.Append(err, invalid("follower max velocity and acceleration must be positive"))
	}
	if f.GoalPosTolerance < 0 || f.GoalVelTolerance < 0 || f.StopSteeringDistance < 0 {
		err = multierr.Append(err, invalid("follower tolerances must not be negative"))
	}

	if c.Drive.OptimalRangeCeiling < c.Drive.OptimalRangeFloor {
		err = multierr.Append(err, invalid("drive optimal range ceiling is below its floor"))
	}
	if c.Path.MaxDecel < 0 {
		err = multierr.Append(err, invalid("path.max_decel must not be negative"))
	}
	if c.Sim.Duration <= 0 {
		err = multierr.Append(err, invalid("sim.duration must be positive"))
	}
	if _, ierr := c.integrator(); ierr != nil {
		err = multierr.Append(err, invalid("sim.integrator: %v", ierr))
	}
	return err
}

func (c *Config) Model() kinematics.Model {
	return kinematics.New(c.Robot.TrackWidth)
}

func (c *Config) FollowerParameters() pursuit.Parameters {
	f := c.Follower
	return pursuit.Parameters{
		Lookahead: pursuit.Lookahead{
			MinDistance: f.LookaheadMinDistance,
			MaxDistance: f.LookaheadMaxDistance,
			MinSpeed:    f.LookaheadMinSpeed,
			MaxSpeed:    f.LookaheadMaxSpeed,
		},
		InertiaGain:          f.InertiaGain,
		ProfileKp:            f.Kp,
		ProfileKi:            f.Ki,
		ProfileKv:            f.Kv,
		ProfileKffv:          f.Kffv,
		ProfileKffa:          f.Kffa,
		MaxVelocity:          f.MaxVelocity,
		MaxAcceleration:      f.MaxAcceleration,
		GoalPosTolerance:     f.GoalPosTolerance,
		GoalVelTolerance:     f.GoalVelTolerance,
		StopSteeringDistance: f.StopSteeringDistance,
	}
}

func (c *Config) EstimatorConfig() estimator.Config {
	return estimator.Config{
		HistoryRetention: c.Estimator.HistoryRetention,
		VisionMaxAge:     c.Estimator.VisionMaxAge,
	}
}

func (c *Config) DriveConfig() drive.Config {
	d := c.Drive
	return drive.Config{
		MaxSetpoint:         d.MaxSetpoint,
		Follower:            c.FollowerParameters(),
		HeadingToleranceDeg: d.HeadingToleranceDeg,
		TurnVelTolerance:    d.TurnVelTolerance,
		OptimalRangeFloor:   d.OptimalRangeFloor,
		OptimalRangeCeiling: d.OptimalRangeCeiling,
		ApproachTolerance:   d.ApproachTolerance,
	}
}

// integrator resolves the configured plant stepper; nil selects exact arcs.
func (c *Config) integrator() (dynamo.Integrator, error) {
	if c.Sim.Integrator == "" || c.Sim.Integrator == ArcIntegrator {
		return nil, nil
	}
	return integrators.Get(c.Sim.Integrator)
}

// Runner builds a simulation runner from the configuration.
func (c *Config) Runner() (*sim.Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	integ, err := c.integrator()
	if err != nil {
		return nil, err
	}

	r := sim.NewRunner()
	r.Hardware = sim.HardwareConfig{
		Model:       c.Model(),
		FreeSpeed:   c.Robot.FreeSpeed,
		Gains:       control.Gains{Kp: c.Robot.PositionKp, Ki: c.Robot.PositionKi, Kd: c.Robot.PositionKd},
		Integrator:  integ,
		VelocityLag: c.Robot.VelocityLag,
	}
	r.Drive = c.DriveConfig()
	r.Estimator = c.EstimatorConfig()
	r.Config = sim.Config{
		Dt:               c.Loop.Period,
		Duration:         c.Sim.Duration,
		Substeps:         c.Sim.Substeps,
		MaxDecel:         c.Path.MaxDecel,
		StartOffset:      geom.NewPose(c.Sim.StartOffsetX, c.Sim.StartOffsetY, geom.FromDegrees(c.Sim.StartOffsetDeg)),
		OnTrackTolerance: c.Sim.OnTrackTolerance,
	}
	return r, nil
}
