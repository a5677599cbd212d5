package sim

import (
	"math"
	"sync"

	"github.com/san-kum/drivenav/internal/control"
	"github.com/san-kum/drivenav/internal/dynamo"
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
)

type HardwareConfig struct {
	Model kinematics.Model
	// FreeSpeed is the fastest either wheel can turn, inches per second.
	FreeSpeed float64
	Gains     control.Gains
	// Integrator steps the plant; nil integrates exact arcs.
	Integrator dynamo.Integrator
	// VelocityLag is the time constant, in seconds, of the wheel response
	// to its commanded velocity. Zero is an ideal drive.
	VelocityLag float64
}

func DefaultHardwareConfig() HardwareConfig {
	return HardwareConfig{
		Model:     kinematics.New(25.5),
		FreeSpeed: 180,
		Gains:     control.DefaultGains(),
	}
}

// Hardware is a simulated drivetrain. Wheel controllers run once per
// Advance, and the plant integrates the resulting wheel velocities.
type Hardware struct {
	cfg   HardwareConfig
	plant *kinematics.DiffDrive
	integ dynamo.Integrator

	mu          sync.Mutex
	initialized bool
	t           float64
	x           dynamo.State
	left, right *control.Wheel
	leftDist    float64
	rightDist   float64
	leftVel     float64
	rightVel    float64
	gyroOffset  float64
	brake       bool
}

func NewHardware(cfg HardwareConfig) *Hardware {
	if cfg.FreeSpeed <= 0 {
		cfg.FreeSpeed = DefaultHardwareConfig().FreeSpeed
	}
	integ := cfg.Integrator
	if integ == nil {
		integ = kinematics.ArcIntegrator{Model: cfg.Model}
	}
	return &Hardware{
		cfg:         cfg,
		plant:       kinematics.NewDiffDrive(cfg.Model),
		integ:       integ,
		initialized: true,
		x:           dynamo.State{0, 0, 0},
		left:        control.NewWheel(cfg.Gains, cfg.FreeSpeed),
		right:       control.NewWheel(cfg.Gains, cfg.FreeSpeed),
	}
}

// SetInitialized simulates a controller that failed to come up.
func (h *Hardware) SetInitialized(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initialized = ok
}

func (h *Hardware) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

func (h *Hardware) LeftDistance() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leftDist
}

func (h *Hardware) RightDistance() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rightDist
}

func (h *Hardware) LeftVelocity() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leftVel
}

func (h *Hardware) RightVelocity() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rightVel
}

func (h *Hardware) GyroHeadingDegrees() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.x[2]*180/math.Pi + h.gyroOffset
}

func (h *Hardware) SetGyroHeading(deg float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gyroOffset = deg - h.x[2]*180/math.Pi
	return nil
}

func (h *Hardware) SetOpenLoop(left, right float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.left.SetOpenLoop(left)
	h.right.SetOpenLoop(right)
	return nil
}

func (h *Hardware) SetVelocity(left, right float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.left.SetVelocity(left)
	h.right.SetVelocity(right)
	return nil
}

func (h *Hardware) SetPosition(left, right float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.left.SetPosition(left)
	h.right.SetPosition(right)
	return nil
}

func (h *Hardware) SetBrakeMode(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.brake = on
	return nil
}

func (h *Hardware) Brake() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.brake
}

func (h *Hardware) ResetEncoders() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leftDist, h.rightDist = 0, 0
	return nil
}

// SetPose places the robot on the field without moving the encoders or
// the gyro's reported heading.
func (h *Hardware) SetPose(p geom.Pose) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gyro := h.x[2]*180/math.Pi + h.gyroOffset
	h.x = kinematics.PoseState(p)
	h.gyroOffset = gyro - h.x[2]*180/math.Pi
}

// TruePose is the plant's actual pose.
func (h *Hardware) TruePose() geom.Pose {
	h.mu.Lock()
	defer h.mu.Unlock()
	return kinematics.StatePose(h.x)
}

func (h *Hardware) Time() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.t
}

// Advance runs the wheel controllers and integrates the plant over dt.
func (h *Hardware) Advance(dt float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cmdL := h.left.Update(h.leftDist, h.t)
	cmdR := h.right.Update(h.rightDist, h.t)
	if h.cfg.VelocityLag > 0 {
		alpha := 1 - math.Exp(-dt/h.cfg.VelocityLag)
		h.leftVel += (cmdL - h.leftVel) * alpha
		h.rightVel += (cmdR - h.rightVel) * alpha
	} else {
		h.leftVel, h.rightVel = cmdL, cmdR
	}

	u := dynamo.Control{h.leftVel, h.rightVel}
	next := h.integ.Step(h.plant, h.x, u, h.t, dt)
	if !next.IsValid() {
		return &dynamo.StepError{Time: h.t, State: next, Wrapped: dynamo.ErrInvalidState}
	}
	h.x = next
	h.leftDist += h.leftVel * dt
	h.rightDist += h.rightVel * dt
	h.t += dt
	return nil
}
