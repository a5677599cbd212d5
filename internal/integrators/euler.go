package integrators

import "github.com/san-kum/drivenav/internal/dynamo"

// Euler is the explicit first-order stepper. It is exact for the
// differential-drive plant only while the heading is constant.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return x.Axpy(dt, dyn.Derive(x, u, t))
}
