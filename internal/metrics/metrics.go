// Package metrics scores a path-following run. Each [Metric] observes one
// [Sample] per simulation tick and reduces them to a single number.
package metrics

// Sample is one tick of a run as seen by a metric.
type Sample struct {
	Time       float64
	CrossTrack float64
	AlongTrack float64
	// Commanded wheel velocities, inches per second.
	Left  float64
	Right float64
	// PoseError is the distance between the true and estimated position.
	PoseError float64
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Tracking is the standard metric set for a path run.
func Tracking(onTrackTolerance float64) []Metric {
	return []Metric{
		NewCrossTrackRMS(),
		NewCrossTrackMax(),
		NewFinalAlongTrack(),
		NewControlEffort(),
		NewStability(onTrackTolerance),
		NewEstimatorDrift(),
	}
}

// Summarize collects every metric's value by name.
func Summarize(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
