package integrators

import (
	"math"

	"github.com/san-kum/drivenav/internal/dynamo"
)

// Dormand-Prince 5(4). The last row of dpA equals dpB, so the seventh stage
// is the derivative at the new state.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth-order weights minus the embedded fourth-order ones
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

type RK45 struct {
	Tolerance float64
	Safety    float64
	MinScale  float64
	MaxScale  float64
}

func NewRK45() *RK45 {
	return &RK45{Tolerance: 1e-6, Safety: 0.9, MinScale: 0.2, MaxScale: 10}
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	next, _ := r.StepAdaptive(dyn, x, u, t, dt)
	return next
}

// StepAdaptive takes one step of dt and suggests the next step size from the
// embedded error estimate.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, float64) {
	var k [7]dynamo.State
	k[0] = dyn.Derive(x, u, t)

	var next dynamo.State
	for s := 1; s < 7; s++ {
		xs := x
		for j := 0; j < s; j++ {
			if dpA[s][j] != 0 {
				xs = xs.Axpy(dt*dpA[s][j], k[j])
			}
		}
		k[s] = dyn.Derive(xs, u, t+dpC[s]*dt)
		if s == 6 {
			next = xs
		}
	}

	errMax := 0.0
	for i := range x {
		est := 0.0
		for j := range dpE {
			est += dpE[j] * k[j][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*est)/scale)
	}

	ratio := errMax / r.Tolerance
	switch {
	case ratio > 1:
		return next, dt * math.Max(r.MinScale, r.Safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		return next, dt * math.Min(r.MaxScale, r.Safety*math.Pow(ratio, -0.2))
	default:
		return next, dt * r.MaxScale
	}
}
