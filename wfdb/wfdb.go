// Package wfdb reads and writes a small subset of the PhysioNet WFDB
// record format: single-segment records in format 16 (little-endian
// 16-bit two's complement) with every signal interleaved into one .dat
// file. This is the subset ECG acquisition pipelines exchange with the
// classic WFDB tools, and it is all the delineation binaries consume.
package wfdb

import (
	"fmt"
)

// DigitalMissing is the digital value format-16 records use to flag a
// missing sample.
const DigitalMissing = -32768

// DefaultGain is the WFDB default ADC gain in adu per physical unit,
// applied when a header leaves the gain at zero.
const DefaultGain = 200.0

// Signal is one channel of a record. Samples hold physical units after
// gain and baseline removal, except that missing samples stay at the
// sentinel value so their indices line up with the rest of the channel.
type Signal struct {
	Name     string
	Units    string
	Gain     float64
	Baseline int
	Samples  []float64
}

// Record is a single-segment multichannel recording.
type Record struct {
	Name    string
	Fs      float64
	Signals []Signal
}

// Signal returns the samples of the named channel.
func (r *Record) Signal(name string) ([]float64, error) {
	for i := range r.Signals {
		if r.Signals[i].Name == name {
			return r.Signals[i].Samples, nil
		}
	}

	return nil, fmt.Errorf("wfdb: record %s has no signal named %q", r.Name, name)
}
