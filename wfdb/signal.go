package wfdb

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/aim-lab/pecg"
	"github.com/carbocation/pfx"
)

// ReadRecord loads the format-16 record stored as name.hea and its .dat
// file under dir, converting every channel to physical units. Digital
// sentinel samples are carried through as physical sentinel values
// instead of being converted, so gaps keep their place in the sample
// grid.
func ReadRecord(dir, name string) (*Record, error) {
	f, err := os.Open(filepath.Join(dir, name+".hea"))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	h, err := parseHeader(f)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s.hea: %w", name, err))
	}

	data, err := os.ReadFile(filepath.Join(dir, h.datFile))
	if err != nil {
		return nil, pfx.Err(err)
	}

	nsig := len(h.signals)
	frameBytes := 2 * nsig
	if len(data)%frameBytes != 0 {
		return nil, pfx.Err(fmt.Errorf("%s: %d bytes is not a whole number of %d-signal frames", h.datFile, len(data), nsig))
	}
	nSamp := len(data) / frameBytes
	if h.nSamp > 0 && h.nSamp != nSamp {
		return nil, pfx.Err(fmt.Errorf("record %s: header promises %d samples but %s holds %d", name, h.nSamp, h.datFile, nSamp))
	}

	rec := &Record{Name: h.name, Fs: h.fs, Signals: h.signals}
	for i := range rec.Signals {
		rec.Signals[i].Samples = make([]float64, nSamp)
	}
	for t := 0; t < nSamp; t++ {
		for i := range rec.Signals {
			d := int16(binary.LittleEndian.Uint16(data[(t*nsig+i)*2:]))
			rec.Signals[i].Samples[t] = digitalToPhysical(d, rec.Signals[i].Gain, rec.Signals[i].Baseline)
		}
	}

	return rec, nil
}

// WriteRecord stores rec as name.hea and name.dat under dir in format 16.
// Samples flagged missing are written as the digital sentinel; all others
// are quantized through the channel's gain and baseline.
func WriteRecord(dir string, rec *Record) error {
	if rec.Name == "" {
		return pfx.Err(fmt.Errorf("record has no name"))
	}
	if len(rec.Signals) == 0 {
		return pfx.Err(fmt.Errorf("record %s has no signals", rec.Name))
	}
	nSamp := len(rec.Signals[0].Samples)
	for _, sig := range rec.Signals {
		if len(sig.Samples) != nSamp {
			return pfx.Err(fmt.Errorf("record %s: signal %s has %d samples, other signals have %d", rec.Name, sig.Name, len(sig.Samples), nSamp))
		}
	}

	nsig := len(rec.Signals)
	data := make([]byte, 2*nsig*nSamp)
	inits := make([]int16, nsig)
	sums := make([]int16, nsig)
	for i, sig := range rec.Signals {
		gain := sig.Gain
		if gain == 0 {
			gain = DefaultGain
		}
		for t, v := range sig.Samples {
			d := physicalToDigital(v, gain, sig.Baseline)
			if t == 0 {
				inits[i] = d
			}
			sums[i] += d
			binary.LittleEndian.PutUint16(data[(t*nsig+i)*2:], uint16(d))
		}
	}

	datFile := rec.Name + ".dat"
	hea := formatHeader(rec, datFile, inits, sums, nSamp)
	if err := os.WriteFile(filepath.Join(dir, rec.Name+".hea"), []byte(hea), 0644); err != nil {
		return pfx.Err(err)
	}
	if err := os.WriteFile(filepath.Join(dir, datFile), data, 0644); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func digitalToPhysical(d int16, gain float64, baseline int) float64 {
	if d == DigitalMissing {
		return pecg.MissingSample
	}
	if gain == 0 {
		gain = DefaultGain
	}

	return (float64(d) - float64(baseline)) / gain
}

func physicalToDigital(v float64, gain float64, baseline int) int16 {
	if pecg.IsMissing(v) {
		return DigitalMissing
	}

	d := math.Round(v*gain) + float64(baseline)
	// The most negative digital value is reserved for missing samples.
	if d < -32767 {
		return -32767
	}
	if d > 32767 {
		return 32767
	}

	return int16(d)
}
