package fiducial

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/aim-lab/pecg/wfdb"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// recordName is the WFDB record name used for the temp-dir exchange with
// the delineation and detection executables.
const recordName = "ecg"

// Wavedet adapts the MATLAB-compiled wavedet delineator. The zero value
// is not usable; Bin must point at the installed executable.
type Wavedet struct {
	// Bin is the path to the delineator executable.
	Bin string
}

// Delineate runs the delineator over one lead and returns its per-beat
// landmark table. The exchange happens in a scratch directory: the lead
// goes in as a WFDB record plus a peak-per-line text file, and the
// landmarks come back as a CSV with one row per beat.
func (w Wavedet) Delineate(signal []float64, fs float64, peaks []int) ([]*Beat, error) {
	if w.Bin == "" {
		return nil, pfx.Err(fmt.Errorf("wavedet: no executable configured"))
	}
	if len(peaks) == 0 {
		return nil, pfx.Err(fmt.Errorf("wavedet: no peaks to delineate around"))
	}

	dir, err := os.MkdirTemp("", "wavedet")
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer os.RemoveAll(dir)

	if err := writeTempRecord(dir, signal, fs); err != nil {
		return nil, err
	}
	if err := writePeaksFile(filepath.Join(dir, "peaks.txt"), peaks); err != nil {
		return nil, err
	}

	cmd := exec.Command(w.Bin, recordName, "peaks.txt", "fiducials.csv")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, pfx.Err(fmt.Errorf("wavedet: %v: %s", err, out))
	}

	data, err := os.ReadFile(filepath.Join(dir, "fiducials.csv"))
	if err != nil {
		return nil, pfx.Err(err)
	}

	beats := []*Beat{}
	if err := gocsv.UnmarshalBytes(data, &beats); err != nil {
		return nil, pfx.Err(fmt.Errorf("wavedet output: %w", err))
	}

	return beats, nil
}

func writeTempRecord(dir string, signal []float64, fs float64) error {
	rec := &wfdb.Record{
		Name: recordName,
		Fs:   fs,
		Signals: []wfdb.Signal{
			{Name: "ecg", Units: "mV", Gain: wfdb.DefaultGain, Samples: signal},
		},
	}

	return wfdb.WriteRecord(dir, rec)
}
