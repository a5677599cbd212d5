// Package control emulates the closed-loop modes of a smart motor
// controller for one drive side.
//
// A [Wheel] turns an open-loop, velocity, or position setpoint into the wheel
// velocity the plant should follow:
//
//   - open loop scales a percent output by the free speed
//   - velocity passes the setpoint through, clamped to the free speed
//   - position runs a [PID] on wheel travel
//
// # Usage
//
//	w := control.NewWheel(control.DefaultGains(), 180)
//	w.SetPosition(12)
//	v := w.Update(measuredDist, t)
package control
