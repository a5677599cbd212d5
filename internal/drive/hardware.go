package drive

// Hardware is the motor controller and sensor boundary. Distances are
// inches, velocities inches per second, headings degrees counter-clockwise.
type Hardware interface {
	Initialized() bool

	LeftDistance() float64
	RightDistance() float64
	LeftVelocity() float64
	RightVelocity() float64
	GyroHeadingDegrees() float64

	SetGyroHeading(deg float64) error
	SetOpenLoop(left, right float64) error
	SetVelocity(left, right float64) error
	SetPosition(left, right float64) error
	SetBrakeMode(on bool) error
	ResetEncoders() error
}
