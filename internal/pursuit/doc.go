// Package pursuit steers a differential drive along a path with an adaptive
// pure-pursuit law.
//
// Each tick the Follower picks a lookahead point further along the path,
// steers onto the circular arc through it, and runs a trapezoidal speed
// profile toward the end of the path. A Follower is bound to one path and is
// discarded once finished. It is not safe for concurrent use; its owner
// serialises access.
package pursuit
