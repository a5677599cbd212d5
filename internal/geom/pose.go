package geom

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

const epsilon = 1e-9

// Pose is a field-relative rigid transform.
type Pose struct {
	Translation r2.Point
	Rotation    Rotation
}

func NewPose(x, y float64, rot Rotation) Pose {
	return Pose{Translation: r2.Point{X: x, Y: y}, Rotation: rot}
}

func (p Pose) X() float64 { return p.Translation.X }
func (p Pose) Y() float64 { return p.Translation.Y }

// TransformBy composes p with other expressed in p's frame.
func (p Pose) TransformBy(other Pose) Pose {
	return Pose{
		Translation: p.Translation.Add(p.Rotation.Rotate(other.Translation)),
		Rotation:    p.Rotation.RotateBy(other.Rotation),
	}
}

func (p Pose) Inverse() Pose {
	inv := p.Rotation.Inverse()
	return Pose{
		Translation: inv.Rotate(p.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// RelativePoint expresses a field point in p's frame.
func (p Pose) RelativePoint(pt r2.Point) r2.Point {
	return p.Rotation.Inverse().Rotate(pt.Sub(p.Translation))
}

// Interpolate moves along the constant-curvature arc from p to other.
func (p Pose) Interpolate(other Pose, x float64) Pose {
	if x <= 0 {
		return p
	}
	if x >= 1 {
		return other
	}
	twist := Log(p.Inverse().TransformBy(other))
	return p.TransformBy(Exp(twist.Scaled(x)))
}

// Flipped returns the pose facing the opposite direction.
func (p Pose) Flipped() Pose {
	return Pose{Translation: p.Translation, Rotation: p.Rotation.RotateBy(FromRadians(math.Pi))}
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %s)", p.Translation.X, p.Translation.Y, p.Rotation)
}

// Twist is a body-frame motion: dx forward, dy left, dtheta counter-clockwise.
// Depending on context it is an increment or a rate per second.
type Twist struct {
	Dx     float64
	Dy     float64
	Dtheta float64
}

func (t Twist) Scaled(k float64) Twist {
	return Twist{Dx: t.Dx * k, Dy: t.Dy * k, Dtheta: t.Dtheta * k}
}

// Norm is the translational magnitude.
func (t Twist) Norm() float64 {
	if t.Dy == 0 {
		return math.Abs(t.Dx)
	}
	return math.Hypot(t.Dx, t.Dy)
}

// Exp integrates a constant twist over unit time into a pose delta.
func Exp(d Twist) Pose {
	sinTheta, cosTheta := math.Sincos(d.Dtheta)
	var s, c float64
	if math.Abs(d.Dtheta) < epsilon {
		s = 1 - d.Dtheta*d.Dtheta/6
		c = 0.5 * d.Dtheta
	} else {
		s = sinTheta / d.Dtheta
		c = (1 - cosTheta) / d.Dtheta
	}
	return Pose{
		Translation: r2.Point{X: d.Dx*s - d.Dy*c, Y: d.Dx*c + d.Dy*s},
		Rotation:    FromRadians(d.Dtheta),
	}
}

// Log is the inverse of Exp.
func Log(p Pose) Twist {
	dtheta := p.Rotation.Radians()
	half := 0.5 * dtheta
	cosMinusOne := math.Cos(dtheta) - 1
	var a float64
	if math.Abs(cosMinusOne) < epsilon {
		a = 1 - dtheta*dtheta/12
	} else {
		a = -(half * math.Sin(dtheta)) / cosMinusOne
	}
	x, y := p.Translation.X, p.Translation.Y
	return Twist{
		Dx:     x*a + y*half,
		Dy:     -x*half + y*a,
		Dtheta: dtheta,
	}
}
