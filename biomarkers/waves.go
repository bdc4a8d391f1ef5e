package biomarkers

import (
	"fmt"
	"math"

	"github.com/aim-lab/pecg"
	"github.com/aim-lab/pecg/fiducial"
)

// Waves are one beat's amplitude and area biomarkers, measured against
// the beat's isoelectric reference, taken as the sample value at QRS
// onset. Amplitudes are in the lead's physical units; areas are
// unit-milliseconds, integrated by the trapezoid rule over the wave's
// on/off span.
type Waves struct {
	Pamp    float64 `csv:"Pamp"`
	Qamp    float64 `csv:"Qamp"`
	Ramp    float64 `csv:"Ramp"`
	Samp    float64 `csv:"Samp"`
	Tamp    float64 `csv:"Tamp"`
	Jpoint  float64 `csv:"Jpoint"`
	Parea   float64 `csv:"Parea"`
	QRSarea float64 `csv:"QRSarea"`
	Tarea   float64 `csv:"Tarea"`
}

// ComputeWaves measures every beat in the landmark table against the lead
// it was delineated on.
func ComputeWaves(signal []float64, beats []*fiducial.Beat, fs float64) ([]Waves, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("biomarkers: sampling frequency %g must be positive", fs)
	}

	out := make([]Waves, len(beats))
	for i, b := range beats {
		out[i] = beatWaves(signal, b, fs)
	}

	return out, nil
}

func beatWaves(signal []float64, b *fiducial.Beat, fs float64) Waves {
	ref := sampleAt(signal, b.QRSon)

	return Waves{
		Pamp:    sampleAt(signal, b.P) - ref,
		Qamp:    sampleAt(signal, b.Q) - ref,
		Ramp:    sampleAt(signal, b.R) - ref,
		Samp:    sampleAt(signal, b.S) - ref,
		Tamp:    sampleAt(signal, b.T) - ref,
		Jpoint:  sampleAt(signal, b.QRSoff) - ref,
		Parea:   area(signal, b.Pon, b.Poff, ref, fs),
		QRSarea: area(signal, b.QRSon, b.QRSoff, ref, fs),
		Tarea:   area(signal, b.Ton, b.Toff, ref, fs),
	}
}

// sampleAt returns the signal value under a landmark, NaN when the
// landmark is missing, out of range, or sits on a missing sample.
func sampleAt(signal []float64, idx fiducial.Index) float64 {
	if !idx.Found() || int(idx) < 0 || int(idx) >= len(signal) {
		return math.NaN()
	}
	v := signal[idx]
	if pecg.IsMissing(v) {
		return math.NaN()
	}

	return v
}

// area integrates signal minus ref from on to off by the trapezoid rule,
// in unit-milliseconds. NaN when the span is incomplete, inverted, out of
// range, or crosses missing samples.
func area(signal []float64, on, off fiducial.Index, ref float64, fs float64) float64 {
	if !on.Found() || !off.Found() || on >= off || int(on) < 0 || int(off) >= len(signal) {
		return math.NaN()
	}

	dt := 1000 / fs
	sum := 0.0
	for i := int(on); i < int(off); i++ {
		y0, y1 := signal[i], signal[i+1]
		if pecg.IsMissing(y0) || pecg.IsMissing(y1) {
			return math.NaN()
		}
		sum += ((y0 - ref) + (y1 - ref)) / 2 * dt
	}

	return sum
}
