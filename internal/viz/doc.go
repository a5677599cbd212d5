// Package viz draws a path run live in the terminal with Bubble Tea.
//
// The field view plots the path, the true trail, the estimated trail, the
// follower's lookahead point and the robot footprint on a braille [Canvas],
// coloured per [Layer] by the active [Theme]. A [Feed] registered as a
// runner observer carries steps to the [Model] without blocking the control
// loop.
//
// # Key Bindings
//
//	Space - Freeze the field view
//	E     - Toggle the estimated trail
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
