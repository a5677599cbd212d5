package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type CrossTrackRMS struct {
	errs []float64
}

func NewCrossTrackRMS() *CrossTrackRMS { return &CrossTrackRMS{} }

func (c *CrossTrackRMS) Name() string { return "cte_rms" }

func (c *CrossTrackRMS) Observe(s Sample) {
	c.errs = append(c.errs, s.CrossTrack)
}

func (c *CrossTrackRMS) Value() float64 {
	if len(c.errs) == 0 {
		return 0
	}
	return floats.Norm(c.errs, 2) / math.Sqrt(float64(len(c.errs)))
}

func (c *CrossTrackRMS) Reset() { c.errs = c.errs[:0] }

type CrossTrackMax struct {
	abs []float64
}

func NewCrossTrackMax() *CrossTrackMax { return &CrossTrackMax{} }

func (c *CrossTrackMax) Name() string { return "cte_max" }

func (c *CrossTrackMax) Observe(s Sample) {
	c.abs = append(c.abs, math.Abs(s.CrossTrack))
}

func (c *CrossTrackMax) Value() float64 {
	if len(c.abs) == 0 {
		return 0
	}
	return floats.Max(c.abs)
}

func (c *CrossTrackMax) Reset() { c.abs = c.abs[:0] }

// FinalAlongTrack is the along-track error at the last observed tick,
// positive when short of the end of the path.
type FinalAlongTrack struct {
	last float64
}

func NewFinalAlongTrack() *FinalAlongTrack { return &FinalAlongTrack{} }

func (f *FinalAlongTrack) Name() string     { return "ate_final" }
func (f *FinalAlongTrack) Observe(s Sample) { f.last = s.AlongTrack }
func (f *FinalAlongTrack) Value() float64   { return f.last }
func (f *FinalAlongTrack) Reset()           { f.last = 0 }

// EstimatorDrift is the mean distance between true and estimated position.
type EstimatorDrift struct {
	errs []float64
}

func NewEstimatorDrift() *EstimatorDrift { return &EstimatorDrift{} }

func (e *EstimatorDrift) Name() string { return "estimator_drift" }

func (e *EstimatorDrift) Observe(s Sample) {
	e.errs = append(e.errs, s.PoseError)
}

func (e *EstimatorDrift) Value() float64 {
	if len(e.errs) == 0 {
		return 0
	}
	return stat.Mean(e.errs, nil)
}

func (e *EstimatorDrift) Reset() { e.errs = e.errs[:0] }
