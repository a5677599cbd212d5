package metrics

import (
	"math"
	"testing"
)

func observeAll(ms []Metric, samples []Sample) {
	for _, s := range samples {
		for _, m := range ms {
			m.Observe(s)
		}
	}
}

func TestTrackingMetrics(t *testing.T) {
	samples := []Sample{
		{Time: 0, CrossTrack: 3, AlongTrack: 24, Left: 10, Right: 10, PoseError: 0},
		{Time: 0.02, CrossTrack: -4, AlongTrack: 12, Left: -20, Right: 40, PoseError: 0.2},
		{Time: 0.04, CrossTrack: 0, AlongTrack: 0.5, Left: 0, Right: 0, PoseError: 0.4},
	}
	ms := Tracking(1)
	observeAll(ms, samples)
	got := Summarize(ms)

	tests := []struct {
		name string
		want float64
	}{
		{"cte_rms", math.Sqrt(25.0 / 3)},
		{"cte_max", 4},
		{"ate_final", 0.5},
		{"control_effort", (10 + 30 + 0) / 3.0},
		{"on_track", 1.0 / 3},
		{"estimator_drift", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := got[tt.name]
			if !ok {
				t.Fatalf("missing metric %s", tt.name)
			}
			if math.Abs(v-tt.want) > 1e-9 {
				t.Errorf("%s = %f, want %f", tt.name, v, tt.want)
			}
		})
	}
}

func TestMetricReset(t *testing.T) {
	ms := Tracking(1)
	observeAll(ms, []Sample{{CrossTrack: 5, AlongTrack: 3, Left: 9, Right: 9, PoseError: 1}})
	for _, m := range ms {
		m.Reset()
	}

	for name, v := range Summarize(ms) {
		want := 0.0
		if name == "on_track" {
			want = 1
		}
		if v != want {
			t.Errorf("%s after reset = %f, want %f", name, v, want)
		}
	}
}
