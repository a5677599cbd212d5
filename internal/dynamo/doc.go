// Package dynamo provides the numeric primitives used to simulate the
// drivetrain plant.
//
//   - [State]: vector representing plant state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//
// The differential-drive plant lives in the kinematics package and the
// steppers in the integrators package; the simulator composes them.
package dynamo
