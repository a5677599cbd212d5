// Package geom provides planar rigid-body primitives for field navigation.
//
// All distances are in inches and all angles are in radians unless a
// function name says otherwise:
//
//   - [Rotation]: a heading on the field
//   - [Pose]: a rigid transform (translation + rotation)
//   - [Twist]: a body-frame motion increment (dx, dy, dtheta)
//
// [Exp] and [Log] convert between twists and poses along constant-curvature
// arcs, which is how odometry increments are applied to a pose.
//
// # Example
//
//	start := geom.NewPose(18, 166, geom.FromDegrees(0))
//	next := start.TransformBy(geom.Exp(geom.Twist{Dx: 1.5, Dtheta: 0.01}))
package geom
