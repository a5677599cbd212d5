// Package analysis characterises how a stored run tracked its path.
//
// The follower's steering can ring when curvature changes abruptly, which
// shows up as a periodic swing of the signed cross-track error:
//
//	cte := analysis.SignedCrossTrack(p, poses)
//	if osc, ok := analysis.DominantOscillation(cte, dt); ok {
//	    fmt.Printf("%.2f Hz, %.2f in\n", osc.Frequency, osc.Amplitude)
//	}
package analysis
