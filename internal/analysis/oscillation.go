package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/path"
)

// minSamples is the shortest record worth a spectrum.
const minSamples = 16

// SignedCrossTrack is each pose's lateral offset from the nearest point of p,
// positive to the left of the direction of travel.
func SignedCrossTrack(p *path.Path, poses []geom.Pose) []float64 {
	out := make([]float64, len(poses))
	for i, pose := range poses {
		_, d := p.NearestPointAndDistance(pose.Translation)
		out[i] = p.PointAtDistance(d).RelativePoint(pose.Translation).Y
	}
	return out
}

type Spectrum struct {
	// Freqs in Hz, from zero to the Nyquist frequency.
	Freqs []float64
	// Amplitude of the sinusoid at each frequency, in the samples' units.
	Amplitude []float64
}

// PowerSpectrum transforms samples taken every dt seconds after removing
// their mean.
func PowerSpectrum(samples []float64, dt float64) Spectrum {
	n := len(samples)
	if n == 0 || dt <= 0 {
		return Spectrum{}
	}
	mean := stat.Mean(samples, nil)
	centred := make([]float64, n)
	for i, v := range samples {
		centred[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centred)
	s := Spectrum{
		Freqs:     make([]float64, len(coeff)),
		Amplitude: make([]float64, len(coeff)),
	}
	for k, c := range coeff {
		s.Freqs[k] = fft.Freq(k) / dt
		a := cmplx.Abs(c) / float64(n)
		// the zero and Nyquist bins have no mirrored twin
		if k != 0 && !(n%2 == 0 && k == n/2) {
			a *= 2
		}
		s.Amplitude[k] = a
	}
	return s
}

type Oscillation struct {
	Frequency float64
	Amplitude float64
	// Share is the peak's fraction of all non-constant spectral energy.
	Share float64
}

// DominantOscillation finds the strongest periodic component. ok is false
// for records too short to resolve or with no variation.
func DominantOscillation(samples []float64, dt float64) (Oscillation, bool) {
	if len(samples) < minSamples {
		return Oscillation{}, false
	}
	s := PowerSpectrum(samples, dt)

	best, energy := 0, 0.0
	for k := 1; k < len(s.Amplitude); k++ {
		energy += s.Amplitude[k] * s.Amplitude[k]
		if s.Amplitude[k] > s.Amplitude[best] || best == 0 {
			best = k
		}
	}
	if best == 0 || energy == 0 || s.Amplitude[best] < 1e-9 {
		return Oscillation{}, false
	}
	peak := s.Amplitude[best]
	return Oscillation{
		Frequency: s.Freqs[best],
		Amplitude: peak,
		Share:     peak * peak / energy,
	}, true
}

// ZeroCrossings counts sign changes, ignoring samples within deadband of
// zero, as a spectrum-free check on ringing.
func ZeroCrossings(samples []float64, deadband float64) int {
	n, sign := 0, 0
	for _, v := range samples {
		if math.Abs(v) <= deadband {
			continue
		}
		s := 1
		if v < 0 {
			s = -1
		}
		if sign != 0 && s != sign {
			n++
		}
		sign = s
	}
	return n
}
