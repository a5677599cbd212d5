package kinematics

import (
	"math"
	"testing"

	"github.com/san-kum/drivenav/internal/dynamo"
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/integrators"
)

func TestForward(t *testing.T) {
	m := New(25)

	tw := m.Forward(10, 20)
	if tw.Dx != 15 {
		t.Errorf("dx = %v, want 15", tw.Dx)
	}
	if tw.Dtheta != 10.0/25 {
		t.Errorf("dtheta = %v, want %v", tw.Dtheta, 10.0/25)
	}
	if tw.Dy != 0 {
		t.Errorf("dy = %v, want 0", tw.Dy)
	}
}

func TestInverseForwardRoundTrip(t *testing.T) {
	m := New(23.5)
	cases := []DriveVelocity{
		{0, 0},
		{10, 10},
		{-40, 40},
		{12.25, -3.5},
		{1e-6, 2e-6},
		{120, 119.9},
	}

	for _, c := range cases {
		got := m.Inverse(m.Forward(c.Left, c.Right))
		if math.Abs(got.Left-c.Left) > 1e-9 || math.Abs(got.Right-c.Right) > 1e-9 {
			t.Errorf("round trip %v -> %v", c, got)
		}
	}
}

func TestInverseStraight(t *testing.T) {
	got := New(25).Inverse(geom.Twist{Dx: 30})
	if got.Left != 30 || got.Right != 30 {
		t.Errorf("expected equal wheel speeds, got %v", got)
	}
}

func TestArcIntegratorMatchesRK4(t *testing.T) {
	m := New(25)
	plant := NewDiffDrive(m)
	arc := ArcIntegrator{Model: m}
	rk4 := integrators.NewRK4()

	u := dynamo.Control{20, 30}
	xa := PoseState(geom.NewPose(0, 0, geom.FromDegrees(30)))
	xr := xa.Clone()

	for i := 0; i < 50; i++ {
		xa = arc.Step(plant, xa, u, 0, 0.02)
		xr = rk4.Step(plant, xr, u, 0, 0.02)
	}

	for i := range xa {
		if math.Abs(xa[i]-xr[i]) > 1e-6 {
			t.Errorf("state[%d]: arc %v vs rk4 %v", i, xa[i], xr[i])
		}
	}
}
