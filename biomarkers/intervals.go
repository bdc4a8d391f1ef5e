// Package biomarkers measures per-beat ECG intervals and wave shapes from
// one lead's samples and its fiducial landmark table, and reduces them to
// per-lead summaries. Beats whose landmarks are incomplete yield NaN for
// the affected measurements rather than errors, so one bad beat never
// sinks a recording.
package biomarkers

import (
	"fmt"
	"math"

	"github.com/aim-lab/pecg/fiducial"
)

// Intervals are one beat's duration biomarkers in milliseconds. A field
// is NaN when a landmark it depends on was not placed. RR, TP, and the
// rate-corrected QT variants also need the following beat, so they are
// NaN for the last beat of a recording.
type Intervals struct {
	RR      float64 `csv:"RR_ms"`
	Pwave   float64 `csv:"Pwave_ms"`
	PR      float64 `csv:"PR_ms"`
	PRSeg   float64 `csv:"PRseg_ms"`
	QRS     float64 `csv:"QRS_ms"`
	QT      float64 `csv:"QT_ms"`
	JT      float64 `csv:"JT_ms"`
	Twave   float64 `csv:"Twave_ms"`
	Tpe     float64 `csv:"Tpe_ms"`
	TP      float64 `csv:"TP_ms"`
	QTcB    float64 `csv:"QTcB_ms"`
	QTcFrid float64 `csv:"QTcFrid_ms"`
	QTcFram float64 `csv:"QTcFram_ms"`
	QTcHod  float64 `csv:"QTcHod_ms"`
}

// ComputeIntervals measures every beat in the landmark table at the given
// sampling frequency.
func ComputeIntervals(beats []*fiducial.Beat, fs float64) ([]Intervals, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("biomarkers: sampling frequency %g must be positive", fs)
	}

	out := make([]Intervals, len(beats))
	for i, b := range beats {
		var next *fiducial.Beat
		if i+1 < len(beats) {
			next = beats[i+1]
		}
		out[i] = beatIntervals(b, next, fs)
	}

	return out, nil
}

func beatIntervals(b, next *fiducial.Beat, fs float64) Intervals {
	v := Intervals{
		Pwave:   spanMillis(b.Pon, b.Poff, fs),
		PR:      spanMillis(b.Pon, b.QRSon, fs),
		PRSeg:   spanMillis(b.Poff, b.QRSon, fs),
		QRS:     spanMillis(b.QRSon, b.QRSoff, fs),
		QT:      spanMillis(b.QRSon, b.Toff, fs),
		JT:      spanMillis(b.QRSoff, b.Toff, fs),
		Twave:   spanMillis(b.Ton, b.Toff, fs),
		Tpe:     spanMillis(b.T, b.Toff, fs),
		RR:      math.NaN(),
		TP:      math.NaN(),
		QTcB:    math.NaN(),
		QTcFrid: math.NaN(),
		QTcFram: math.NaN(),
		QTcHod:  math.NaN(),
	}
	if next == nil {
		return v
	}

	v.RR = spanMillis(b.R, next.R, fs)
	v.TP = spanMillis(b.Toff, next.Pon, fs)

	// Rate corrections want RR in seconds and QT in milliseconds.
	rrSec := v.RR / 1000
	if !(rrSec > 0) {
		return v
	}
	v.QTcB = v.QT / math.Sqrt(rrSec)
	v.QTcFrid = v.QT / math.Cbrt(rrSec)
	v.QTcFram = v.QT + 154*(1-rrSec)
	v.QTcHod = v.QT + 1.75*(60/rrSec-60)

	return v
}

// spanMillis converts the sample distance between two landmarks to
// milliseconds, NaN when either end is missing.
func spanMillis(from, to fiducial.Index, fs float64) float64 {
	if !from.Found() || !to.Found() {
		return math.NaN()
	}

	return float64(to-from) / fs * 1000
}
