// Package recording loads one multi-lead ECG from any of the on-disk formats
// the command line tools accept: a WFDB format-16 record, a GE CardioSoft XML
// export, or a column of delimited text. All three arrive as the same
// in-memory shape so the tools don't care where a signal came from.
package recording

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aim-lab/pecg"
	"github.com/aim-lab/pecg/cardiosoft"
	"github.com/aim-lab/pecg/wfdb"
)

// Supported input formats.
const (
	FormatWFDB = "wfdb"
	FormatXML  = "xml"
	FormatCSV  = "csv"
)

// Lead is one channel of a recording.
type Lead struct {
	Name    string
	Samples []float64
}

// Recording is one multi-lead ECG sampled at a single frequency.
type Recording struct {
	Name  string
	Fs    float64
	Leads []Lead
}

// Lead returns the named channel, or the first channel when name is empty.
func (r *Recording) Lead(name string) (Lead, error) {
	if name == "" && len(r.Leads) > 0 {
		return r.Leads[0], nil
	}

	available := make([]string, 0, len(r.Leads))
	for _, l := range r.Leads {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
		available = append(available, l.Name)
	}

	return Lead{}, fmt.Errorf("no lead named %q (recording has %v)", name, available)
}

// DetectFormat infers the input format from the file name. WFDB records are
// named by their .hea header and CardioSoft exports by .xml (possibly with a
// compression suffix); anything else is treated as delimited text.
func DetectFormat(path string) string {
	base := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasSuffix(base, ".hea"):
		return FormatWFDB
	case strings.Contains(base, ".xml"):
		return FormatXML
	}

	return FormatCSV
}

// Load reads the recording at path. When format is empty it is inferred from
// the file name. column and fs apply only to delimited text inputs: text
// carries no sampling frequency of its own, so fs is required there.
func Load(path, format, column string, fs float64) (*Recording, error) {
	if format == "" {
		format = DetectFormat(path)
	}

	switch format {
	case FormatWFDB:
		return loadWFDB(path)
	case FormatXML:
		return loadCardioSoft(path)
	case FormatCSV:
		return loadCSV(path, column, fs)
	}

	return nil, fmt.Errorf("unknown format %q (want %s, %s, or %s)", format, FormatWFDB, FormatXML, FormatCSV)
}

func loadWFDB(path string) (*Recording, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".hea")

	rec, err := wfdb.ReadRecord(filepath.Dir(path), name)
	if err != nil {
		return nil, err
	}

	out := &Recording{Name: rec.Name, Fs: rec.Fs}
	for _, sig := range rec.Signals {
		out.Leads = append(out.Leads, Lead{Name: sig.Name, Samples: sig.Samples})
	}

	return out, nil
}

func loadCardioSoft(path string) (*Recording, error) {
	r, err := pecg.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := cardiosoft.Parse(r)
	if err != nil {
		return nil, err
	}

	out := &Recording{Name: trimExt(filepath.Base(path)), Fs: doc.Fs}
	for _, lead := range doc.Strip {
		out.Leads = append(out.Leads, Lead{Name: lead.Name, Samples: lead.Samples})
	}

	return out, nil
}

func loadCSV(path, column string, fs float64) (*Recording, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("delimited text input %s needs a positive sampling frequency", path)
	}

	r, err := pecg.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	signal, err := pecg.ReadSignalCSV(r, column)
	if err != nil {
		return nil, err
	}

	name := column
	if name == "" {
		name = "signal"
	}

	return &Recording{
		Name:  trimExt(filepath.Base(path)),
		Fs:    fs,
		Leads: []Lead{{Name: name, Samples: signal}},
	}, nil
}

// trimExt strips every extension so compressed names like ecg.csv.gz reduce
// to the bare record name.
func trimExt(base string) string {
	for {
		ext := filepath.Ext(base)
		if ext == "" {
			return base
		}
		base = strings.TrimSuffix(base, ext)
	}
}
