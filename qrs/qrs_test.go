package qrs

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/aim-lab/pecg"
)

// impulseTrain returns n seconds of zeros at fs Hz with unit-width impulses
// of the given amplitudes centered one second apart, starting at 0.5 s.
// The returned indices are the true impulse locations.
func impulseTrain(seconds int, fs float64, amps []float64) ([]float64, []int) {
	signal := make([]float64, seconds*int(fs))
	locs := make([]int, 0, len(amps))
	for i, amp := range amps {
		k := int(fs)/2 + i*int(fs)
		signal[k] = amp
		locs = append(locs, k)
	}
	return signal, locs
}

// syntheticECG builds a noiseless pseudo-ECG from Gaussian P/QRS/T bumps,
// one beat per second with the R wave centered mid-cycle. Returns the signal
// and the true R locations.
func syntheticECG(seconds int, fs float64) ([]float64, []int) {
	type bump struct {
		offsetSec float64
		amp       float64
		sigmaSec  float64
	}
	bumps := []bump{
		{-0.14, 0.08, 0.030},  // P
		{-0.02, -0.12, 0.010}, // Q
		{0, 1.0, 0.008},       // R
		{0.03, -0.25, 0.012},  // S
		{0.28, 0.25, 0.060},   // T
	}

	signal := make([]float64, seconds*int(fs))
	locs := make([]int, 0, seconds)
	for beat := 0; beat < seconds; beat++ {
		center := int(fs)/2 + beat*int(fs)
		locs = append(locs, center)
		for _, b := range bumps {
			mu := float64(center) + b.offsetSec*fs
			sigma := b.sigmaSec * fs
			for i := int(mu - 5*sigma); i <= int(mu+5*sigma); i++ {
				if i < 0 || i >= len(signal) {
					continue
				}
				z := (float64(i) - mu) / sigma
				signal[i] += b.amp * math.Exp(-0.5*z*z)
			}
		}
	}
	return signal, locs
}

func TestDetectInvalidParameters(t *testing.T) {
	signal, _ := impulseTrain(4, 256, []float64{1, 1, 1, 1})

	for _, v := range []struct {
		name   string
		signal []float64
		fs     float64
		thr    float64
		rp     float64
	}{
		{"zero fs", signal, 0, 0.8, 0.25},
		{"negative fs", signal, -256, 0.8, 0.25},
		{"zero threshold", signal, 256, 0, 0.25},
		{"negative threshold", signal, 256, -0.8, 0.25},
		{"empty signal", nil, 256, 0.8, 0.25},
		{"signal shorter than window", make([]float64, 7), 256, 0.8, 0.25},
	} {
		if _, err := Detect(v.signal, v.fs, v.thr, v.rp); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("%s: expected ErrInvalidParameter, got %v", v.name, err)
		}
	}

	// One sample more than the integration window is valid input.
	if _, err := Detect(make([]float64, 8), 256, 0.8, 0.25); err != nil {
		t.Fatalf("8 samples at 256 Hz should be accepted, got %v", err)
	}
}

func TestDetectFlatLine(t *testing.T) {
	for _, level := range []float64{0, 3.3, -120} {
		signal := make([]float64, 2560)
		for i := range signal {
			signal[i] = level
		}

		peaks, err := Detect(signal, 256, 0.8, 0.25)
		if err != nil {
			t.Fatalf("flat line at %g: unexpected error %v", level, err)
		}
		if len(peaks) != 0 {
			t.Fatalf("flat line at %g: expected no peaks, got %v", level, peaks)
		}
	}
}

func TestDetectImpulseTrain(t *testing.T) {
	amps := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	signal, want := impulseTrain(10, 256, amps)

	peaks, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peaks) != len(want) {
		t.Fatalf("expected %d peaks, got %d: %v", len(want), len(peaks), peaks)
	}
	for i, p := range peaks {
		if d := p - want[i]; d < -2 || d > 2 {
			t.Fatalf("peak %d at %d, want within 2 samples of %d", i, p, want[i])
		}
	}
}

func TestDetectDeterminismAndMonotonicity(t *testing.T) {
	signal, want := syntheticECG(30, 256)

	first, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different outputs:\n%v\n%v", first, second)
	}

	for i := 1; i < len(first); i++ {
		if first[i] <= first[i-1] {
			t.Fatalf("peak indices not strictly increasing at %d: %v", i, first)
		}
	}

	if len(first) != len(want) {
		t.Fatalf("expected %d beats, got %d: %v", len(want), len(first), first)
	}
	for i, p := range first {
		if d := p - want[i]; d < -3 || d > 3 {
			t.Fatalf("beat %d detected at %d, want within 3 samples of %d", i, p, want[i])
		}
	}
}

func TestDetectRefractoryInvariant(t *testing.T) {
	const fs, rp = 256.0, 0.25

	signal, _ := syntheticECG(30, fs)
	peaks, err := Detect(signal, fs, 0.8, rp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	minGap := int(rp * fs)
	for i := 1; i < len(peaks); i++ {
		if peaks[i]-peaks[i-1] < minGap {
			t.Fatalf("peaks %d and %d are %d samples apart, refractory demands %d", peaks[i-1], peaks[i], peaks[i]-peaks[i-1], minGap)
		}
	}
}

func TestDetectRefractoryConsolidation(t *testing.T) {
	// Pairs of impulses 25 samples apart (98 ms, inside the 0.25 s
	// refractory period). The weaker of the pair must be pruned, whichever
	// side it falls on; on equal amplitude the later one wins.
	for _, v := range []struct {
		name          string
		first, second float64
		wantOffset    int // retained peak's offset from the pair's first impulse
	}{
		{"weaker second", 1.0, 0.95, 0},
		{"weaker first", 0.95, 1.0, 25},
		{"equal amplitudes", 1.0, 1.0, 25},
	} {
		signal := make([]float64, 10*256)
		want := make([]int, 0, 10)
		for i := 0; i < 10; i++ {
			k := 128 + i*256
			signal[k] = v.first
			signal[k+25] = v.second
			want = append(want, k+v.wantOffset)
		}

		peaks, err := Detect(signal, 256, 0.8, 0.25)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", v.name, err)
		}
		if !reflect.DeepEqual(peaks, want) {
			t.Fatalf("%s: expected %v, got %v", v.name, want, peaks)
		}
	}
}

func TestDetectScaleInvariance(t *testing.T) {
	amps := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	signal, _ := impulseTrain(8, 256, amps)

	base, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, scale := range []float64{0.001, 573.25} {
		scaled := make([]float64, len(signal))
		for i, s := range signal {
			scaled[i] = s * scale
		}

		peaks, err := Detect(scaled, 256, 0.8, 0.25)
		if err != nil {
			t.Fatalf("scale %g: unexpected error: %v", scale, err)
		}
		if !reflect.DeepEqual(peaks, base) {
			t.Fatalf("scale %g changed peak locations: %v vs %v", scale, peaks, base)
		}
	}
}

func TestDetectNegativePolarity(t *testing.T) {
	signal, _ := syntheticECG(20, 256)

	upright, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inverted := make([]float64, len(signal))
	for i, s := range signal {
		inverted[i] = -s
	}
	flipped, err := Detect(inverted, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(upright, flipped) {
		t.Fatalf("inverting the lead moved the peaks: %v vs %v", upright, flipped)
	}
}

func TestDetectSearchBackRecoversMissedBeat(t *testing.T) {
	// Impulse 5's energy (0.72 after differentiation, squaring, and
	// integration) sits below the primary level (1.6) but above the
	// lowered search-back level (0.4), and the gap it leaves between its
	// neighbors exceeds 1.5x the median interval.
	amps := []float64{1, 1, 1, 1, 1, 0.6, 1, 1, 1, 1}
	signal, want := impulseTrain(10, 256, amps)

	peaks, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peaks) != len(want) {
		t.Fatalf("expected %d peaks including the attenuated beat, got %d: %v", len(want), len(peaks), peaks)
	}
	if d := peaks[5] - want[5]; d < -2 || d > 2 {
		t.Fatalf("attenuated beat found at %d, want within 2 samples of %d", peaks[5], want[5])
	}

	// Attenuated below even the lowered level, the beat stays lost.
	amps[5] = 0.05
	signal, _ = impulseTrain(10, 256, amps)
	peaks, err = Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peaks) != len(want)-1 {
		t.Fatalf("expected %d peaks with beat 5 lost, got %d: %v", len(want)-1, len(peaks), peaks)
	}
}

func TestDetectMissingDataBlock(t *testing.T) {
	amps := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	signal, want := impulseTrain(10, 256, amps)

	// Overwrite one second of the recording, swallowing impulse 5.
	blockStart, blockEnd := 1280, 1536
	for i := blockStart; i < blockEnd; i++ {
		signal[i] = pecg.MissingSample
	}

	peaks, err := Detect(signal, 256, 0.8, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range peaks {
		if p >= blockStart && p < blockEnd {
			t.Fatalf("reported a peak at %d inside the missing block [%d,%d)", p, blockStart, blockEnd)
		}
		if pecg.IsMissing(signal[p]) {
			t.Fatalf("peak %d points at a missing sample", p)
		}
	}

	// Every surviving true impulse is still found.
	for i, k := range want {
		if k >= blockStart && k < blockEnd {
			continue
		}
		found := false
		for _, p := range peaks {
			if d := p - k; d >= -2 && d <= 2 {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("impulse %d at %d lost after inserting the missing block: %v", i, k, peaks)
		}
	}
}

func TestDetectDefault(t *testing.T) {
	signal, want := syntheticECG(10, 256)

	peaks, err := DetectDefault(signal, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(peaks) != len(want) {
		t.Fatalf("expected %d beats, got %d", len(want), len(peaks))
	}
}
