// Package qrs implements an energy-based QRS detector for single-lead ECG
// signals, an adaptation of the Pan & Tompkins approach (IEEE Trans Biomed
// Eng 32.3, 1985) as described by Behar et al., "A comparison of single
// channel fetal ECG extraction methods", Ann Biomed Eng 42.6 (2014).
//
// The detector assumes its input has already been conditioned (bandpass
// filtered, power-line interference removed). Invalid samples must be
// encoded as pecg.MissingSample rather than dropped, so that the returned
// peak indices line up with the original recording.
package qrs

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aim-lab/pecg"
)

// Default tuning, chosen in the source publication for adult surface ECG.
const (
	// DefaultThreshold is the multiplier applied to the envelope's 98th
	// percentile to obtain the detection level.
	DefaultThreshold = 0.8

	// DefaultRefractorySec is the minimum plausible spacing between two
	// beats, in seconds. Candidates closer together than this are competing
	// views of the same beat and the weaker one is discarded.
	DefaultRefractorySec = 0.25
)

// ErrInvalidParameter is returned when the sampling rate, the threshold
// coefficient, or the signal length makes detection impossible.
var ErrInvalidParameter = errors.New("invalid parameter")

// Detect locates heartbeats in a single pre-filtered ECG lead and returns
// their sample indices in strictly increasing order. fs is the sampling rate
// in Hz, thresholdCoeff scales the adaptive energy threshold (nu), and
// refractorySec is the refractory period in seconds. A segment with no
// detectable beats yields an empty, non-nil slice.
func Detect(signal []float64, fs, thresholdCoeff, refractorySec float64) ([]int, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("%w: sampling frequency must be strictly positive, got %g", ErrInvalidParameter, fs)
	}
	if thresholdCoeff <= 0 {
		return nil, fmt.Errorf("%w: threshold coefficient must be strictly positive, got %g", ErrInvalidParameter, thresholdCoeff)
	}

	// The integration window is matched to the typical QRS duration
	// (7 samples at 256 Hz, about 27 ms) and scales with the sampling rate.
	window := int(math.Round(7 * fs / 256))
	if window < 1 {
		window = 1
	}
	if len(signal)-1 < window {
		return nil, fmt.Errorf("%w: signal has %d samples but the integration window needs at least %d", ErrInvalidParameter, len(signal), window+1)
	}

	// Differentiate and square, emphasizing the steep slopes of the QRS
	// complex over the lower-frequency P and T waves.
	sq := make([]float64, len(signal)-1)
	for i := range sq {
		d := signal[i+1] - signal[i]
		sq[i] = d * d
	}

	// Integrate with a moving sum over the window, then undo the filter's
	// group delay with a circular left shift so that energy peaks line up
	// with the QRS complexes they came from.
	env := make([]float64, len(sq))
	var running float64
	for i, v := range sq {
		running += v
		if i >= window {
			running -= sq[i-window]
		}
		env[i] = running
	}
	delay := int(math.Ceil(float64(window) / 2))
	shifted := make([]float64, len(env))
	for i := range env {
		shifted[i] = env[(i+delay)%len(env)]
	}
	env = shifted

	// The detection level is a fraction of the envelope's own 98th
	// percentile, so the decision is self-referential to this recording's
	// amplitude scale. Envelope samples that line up with missing input
	// samples are excluded from the distribution but keep their place in
	// the envelope itself.
	valid := make([]float64, 0, len(env))
	for i, v := range env {
		if pecg.IsMissing(signal[i]) {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		return []int{}, nil
	}
	sort.Float64s(valid)
	enThres := valid[int(0.98*float64(len(valid)))]
	level := thresholdCoeff * enThres

	above := make([]bool, len(env))
	var aboveIdx []int
	for i, v := range env {
		if v > level {
			above[i] = true
			aboveIdx = append(aboveIdx, i)
		}
	}

	// Search back for missed beats: an unusually long gap between
	// above-threshold samples suggests a beat whose energy fell just under
	// the level, so that stretch alone is re-scanned at a quarter of it.
	if gaps := gapSeconds(aboveIdx, fs); len(gaps) > 0 {
		medGap := median(gaps)
		lowered := 0.25 * thresholdCoeff * enThres
		for k := 0; k+1 < len(aboveIdx); k++ {
			if float64(aboveIdx[k+1]-aboveIdx[k])/fs <= 1.5*medGap {
				continue
			}
			for i := aboveIdx[k] + 1; i < aboveIdx[k+1]; i++ {
				if env[i] > lowered {
					above[i] = true
				}
			}
		}
	}

	// Contiguous above-threshold runs are the candidate beat regions.
	type region struct{ left, right int }
	var regions []region
	for i := 0; i < len(above); i++ {
		if !above[i] {
			continue
		}
		j := i
		for j+1 < len(above) && above[j+1] {
			j++
		}
		regions = append(regions, region{left: i, right: j})
		i = j
	}

	// One polarity decision for the whole recording: the sign of the median
	// of each region's largest-magnitude sample. Beats are then hunted as
	// maxima or minima accordingly. A median of exactly zero is treated as
	// positive. Missing samples never participate.
	extrema := make([]float64, 0, len(regions))
	for _, r := range regions {
		bestAbs := -1.0
		bestVal := 0.0
		for i := r.left; i <= r.right; i++ {
			if pecg.IsMissing(signal[i]) {
				continue
			}
			if a := math.Abs(signal[i]); a > bestAbs {
				bestAbs, bestVal = a, signal[i]
			}
		}
		if bestAbs >= 0 {
			extrema = append(extrema, bestVal)
		}
	}
	if len(extrema) == 0 {
		return []int{}, nil
	}
	positive := median(extrema) >= 0

	// Walk the regions in time order, keeping a growable list of retained
	// peaks. A candidate inside the refractory period of the last retained
	// peak either loses (smaller magnitude: dropped) or wins (replaces it).
	refractorySamples := refractorySec * fs
	locs := make([]int, 0, len(regions))
	amps := make([]float64, 0, len(regions))
	for _, r := range regions {
		loc := -1
		var amp float64
		for i := r.left; i <= r.right; i++ {
			if pecg.IsMissing(signal[i]) {
				continue
			}
			if loc < 0 || (positive && signal[i] > amp) || (!positive && signal[i] < amp) {
				loc, amp = i, signal[i]
			}
		}
		if loc < 0 {
			continue
		}

		if n := len(locs); n > 0 && float64(loc-locs[n-1]) < refractorySamples {
			if math.Abs(amp) < math.Abs(amps[n-1]) {
				continue
			}
			locs[n-1], amps[n-1] = loc, amp
			continue
		}
		locs = append(locs, loc)
		amps = append(amps, amp)
	}

	return locs, nil
}

// DetectDefault runs Detect with the publication's tuning.
func DetectDefault(signal []float64, fs float64) ([]int, error) {
	return Detect(signal, fs, DefaultThreshold, DefaultRefractorySec)
}

// gapSeconds converts the spacing between consecutive above-threshold
// indices to seconds, dropping gaps of 10 ms or less, which are samples
// within a single beat's energy burst rather than beat-to-beat intervals.
func gapSeconds(aboveIdx []int, fs float64) []float64 {
	gaps := make([]float64, 0, len(aboveIdx))
	for k := 0; k+1 < len(aboveIdx); k++ {
		if gap := float64(aboveIdx[k+1]-aboveIdx[k]) / fs; gap > 0.01 {
			gaps = append(gaps, gap)
		}
	}
	return gaps
}

func median(vals []float64) float64 {
	floats := make([]float64, len(vals))
	copy(floats, vals)
	sort.Float64s(floats)

	mIdx := len(floats) / 2

	if len(floats)%2 == 1 {
		return floats[mIdx]
	}

	return (floats[mIdx-1] + floats[mIdx]) / 2.0
}
