package wfdb

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aim-lab/pecg"
)

func TestRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()

	// Gain 256 keeps every value exactly representable through the
	// digital conversion, so the comparison below can be exact.
	rec := &Record{
		Name: "rt",
		Fs:   256,
		Signals: []Signal{
			{
				Name:    "I",
				Units:   "mV",
				Gain:    256,
				Samples: []float64{0, 0.5, -1.25, pecg.MissingSample, 0.00390625},
			},
			{
				Name:    "lead II",
				Units:   "mV",
				Gain:    256,
				Samples: []float64{1, -1, 0.125, 2.5, -0.5},
			},
		},
	}

	if err := WriteRecord(dir, rec); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	got, err := ReadRecord(dir, "rt")
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}

	if got.Name != rec.Name || got.Fs != rec.Fs {
		t.Fatalf("read back name %q fs %g, want %q %g", got.Name, got.Fs, rec.Name, rec.Fs)
	}
	if len(got.Signals) != len(rec.Signals) {
		t.Fatalf("read back %d signals, want %d", len(got.Signals), len(rec.Signals))
	}
	for i := range rec.Signals {
		if got.Signals[i].Name != rec.Signals[i].Name {
			t.Fatalf("signal %d name %q, want %q", i, got.Signals[i].Name, rec.Signals[i].Name)
		}
		if got.Signals[i].Gain != rec.Signals[i].Gain {
			t.Fatalf("signal %d gain %g, want %g", i, got.Signals[i].Gain, rec.Signals[i].Gain)
		}
		if !reflect.DeepEqual(got.Signals[i].Samples, rec.Signals[i].Samples) {
			t.Fatalf("signal %d samples %v, want %v", i, got.Signals[i].Samples, rec.Signals[i].Samples)
		}
	}

	if !pecg.IsMissing(got.Signals[0].Samples[3]) {
		t.Fatalf("the missing sample came back as %g", got.Signals[0].Samples[3])
	}

	// The sentinel must also be on disk as the reserved digital value. The
	// missing sample sits in frame 3, signal 0.
	data, err := os.ReadFile(filepath.Join(dir, "rt.dat"))
	if err != nil {
		t.Fatalf("reading rt.dat: %v", err)
	}
	if d := int16(binary.LittleEndian.Uint16(data[3*2*2:])); d != DigitalMissing {
		t.Fatalf("missing sample stored as digital %d, want %d", d, DigitalMissing)
	}

	hea, err := os.ReadFile(filepath.Join(dir, "rt.hea"))
	if err != nil {
		t.Fatalf("reading rt.hea: %v", err)
	}
	if first := strings.SplitN(string(hea), "\n", 2)[0]; first != "rt 2 256 5" {
		t.Fatalf("record line %q, want %q", first, "rt 2 256 5")
	}
}

func TestParseHeader(t *testing.T) {
	const hea = `# comment lines and blanks are ignored
rt 2 360/360 650000

rt.dat 16 200(24)/mV 16 0 995 -22131 0 MLII lead
rt.dat 16 100.5/uV 16 0 1011 20052 0 V5
`

	h, err := parseHeader(strings.NewReader(hea))
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}

	if h.name != "rt" || h.fs != 360 || h.nSamp != 650000 || h.datFile != "rt.dat" {
		t.Fatalf("parsed record line wrong: %+v", h)
	}
	if len(h.signals) != 2 {
		t.Fatalf("parsed %d signals, want 2", len(h.signals))
	}
	if s := h.signals[0]; s.Gain != 200 || s.Baseline != 24 || s.Units != "mV" || s.Name != "MLII lead" {
		t.Fatalf("signal 0 parsed as %+v", s)
	}
	if s := h.signals[1]; s.Gain != 100.5 || s.Baseline != 0 || s.Units != "uV" || s.Name != "V5" {
		t.Fatalf("signal 1 parsed as %+v", s)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	for _, v := range []struct {
		name string
		hea  string
	}{
		{"empty", ""},
		{"short record line", "rt 2\n"},
		{"bad sampling frequency", "rt 1 fast 10\nrt.dat 16 200/mV\n"},
		{"signal count mismatch", "rt 2 256 10\nrt.dat 16 200/mV\n"},
		{"unsupported format", "rt 1 256 10\nrt.dat 212 200/mV\n"},
		{"split dat files", "rt 2 256 10\na.dat 16 200/mV\nb.dat 16 200/mV\n"},
	} {
		if _, err := parseHeader(strings.NewReader(v.hea)); err == nil {
			t.Fatalf("%s: expected an error", v.name)
		}
	}
}

func TestParseGainSpec(t *testing.T) {
	for _, v := range []struct {
		spec     string
		gain     float64
		baseline int
		units    string
	}{
		{"200", 200, 0, "mV"},
		{"200.5(12)/uV", 200.5, 12, "uV"},
		{"1000/mmHg", 1000, 0, "mmHg"},
		{"0", DefaultGain, 0, "mV"},
	} {
		gain, baseline, units, err := parseGainSpec(v.spec)
		if err != nil {
			t.Fatalf("parseGainSpec(%q): %v", v.spec, err)
		}
		if gain != v.gain || baseline != v.baseline || units != v.units {
			t.Fatalf("parseGainSpec(%q) = %g %d %q, want %g %d %q", v.spec, gain, baseline, units, v.gain, v.baseline, v.units)
		}
	}

	for _, spec := range []string{"abc", "200(x)/mV"} {
		if _, _, _, err := parseGainSpec(spec); err == nil {
			t.Fatalf("parseGainSpec(%q): expected an error", spec)
		}
	}
}

func TestSignalAccessor(t *testing.T) {
	rec := &Record{
		Name: "acc",
		Fs:   500,
		Signals: []Signal{
			{Name: "I", Samples: []float64{1, 2, 3}},
			{Name: "II", Samples: []float64{4, 5, 6}},
		},
	}

	got, err := rec.Signal("II")
	if err != nil {
		t.Fatalf("Signal(II): %v", err)
	}
	if !reflect.DeepEqual(got, []float64{4, 5, 6}) {
		t.Fatalf("Signal(II) = %v", got)
	}

	if _, err := rec.Signal("V5"); err == nil {
		t.Fatalf("Signal(V5) should fail on a two-lead record")
	}
}

func TestWriteRecordClampsToDigitalRange(t *testing.T) {
	dir := t.TempDir()

	rec := &Record{
		Name: "clamp",
		Fs:   128,
		Signals: []Signal{
			{Name: "I", Gain: 256, Samples: []float64{1e9, -1e9, 0}},
		},
	}
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	got, err := ReadRecord(dir, "clamp")
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}

	samples := got.Signals[0].Samples
	if want := 32767.0 / 256; samples[0] != want {
		t.Fatalf("overflowing sample read back as %g, want %g", samples[0], want)
	}
	if want := -32767.0 / 256; samples[1] != want {
		t.Fatalf("underflowing sample read back as %g, want %g", samples[1], want)
	}
	// Clamping must never manufacture the missing sentinel.
	if pecg.IsMissing(samples[1]) {
		t.Fatalf("underflowing sample was turned into the missing sentinel")
	}
}

func TestWriteRecordValidation(t *testing.T) {
	dir := t.TempDir()

	for _, v := range []struct {
		name string
		rec  *Record
	}{
		{"unnamed", &Record{Fs: 256, Signals: []Signal{{Name: "I", Samples: []float64{1}}}}},
		{"no signals", &Record{Name: "x", Fs: 256}},
		{"ragged lengths", &Record{Name: "x", Fs: 256, Signals: []Signal{
			{Name: "I", Samples: []float64{1, 2}},
			{Name: "II", Samples: []float64{1}},
		}}},
	} {
		if err := WriteRecord(dir, v.rec); err == nil {
			t.Fatalf("%s: expected an error", v.name)
		}
	}
}
