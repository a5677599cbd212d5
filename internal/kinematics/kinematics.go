// Package kinematics converts between differential-drive wheel motion and
// body-frame twists. Everything here is stateless and safe to call from any
// goroutine.
package kinematics

import "github.com/san-kum/drivenav/internal/geom"

// DriveVelocity is a pair of wheel speeds (or wheel distance deltas), in
// inches per second (or inches).
type DriveVelocity struct {
	Left  float64
	Right float64
}

// Model is a differential drive with a fixed effective track width.
type Model struct {
	TrackWidth float64
}

func New(trackWidth float64) Model {
	return Model{TrackWidth: trackWidth}
}

// Forward maps wheel motion to body motion.
func (m Model) Forward(left, right float64) geom.Twist {
	return geom.Twist{
		Dx:     (left + right) / 2,
		Dtheta: (right - left) / m.TrackWidth,
	}
}

// ForwardWithHeading uses an externally measured heading change, typically
// from a gyro, in place of the wheel difference.
func (m Model) ForwardWithHeading(left, right, dtheta float64) geom.Twist {
	return geom.Twist{Dx: (left + right) / 2, Dtheta: dtheta}
}

// Inverse maps body motion to wheel motion. Lateral motion is ignored.
func (m Model) Inverse(t geom.Twist) DriveVelocity {
	delta := m.TrackWidth * t.Dtheta / 2
	return DriveVelocity{Left: t.Dx - delta, Right: t.Dx + delta}
}

// Integrate applies a body-frame increment to a pose along an arc.
func (m Model) Integrate(pose geom.Pose, t geom.Twist) geom.Pose {
	return pose.TransformBy(geom.Exp(t))
}
