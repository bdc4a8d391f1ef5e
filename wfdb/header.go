package wfdb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// headerInfo is the parsed .hea content before any samples are attached.
type headerInfo struct {
	name    string
	fs      float64
	nSamp   int
	datFile string
	signals []Signal
}

func parseHeader(r io.Reader) (*headerInfo, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty header")
	}

	h := &headerInfo{}

	// Record line: name nsignals fs[/counter] [nsamples]
	fields := strings.Fields(lines[0])
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed record line %q", lines[0])
	}
	h.name = fields[0]
	nsig, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("malformed signal count in %q: %w", lines[0], err)
	}
	fs, err := strconv.ParseFloat(strings.SplitN(fields[2], "/", 2)[0], 64)
	if err != nil {
		return nil, fmt.Errorf("malformed sampling frequency in %q: %w", lines[0], err)
	}
	if fs <= 0 {
		return nil, fmt.Errorf("sampling frequency %g must be positive", fs)
	}
	h.fs = fs
	if len(fields) > 3 {
		if h.nSamp, err = strconv.Atoi(fields[3]); err != nil {
			return nil, fmt.Errorf("malformed sample count in %q: %w", lines[0], err)
		}
	}

	if len(lines)-1 != nsig {
		return nil, fmt.Errorf("header promises %d signals but lists %d", nsig, len(lines)-1)
	}

	for i, line := range lines[1:] {
		datFile, sig, err := parseSignalLine(line)
		if err != nil {
			return nil, err
		}
		if sig.Name == "" {
			sig.Name = fmt.Sprintf("sig%d", i)
		}
		if h.datFile == "" {
			h.datFile = datFile
		} else if h.datFile != datFile {
			return nil, fmt.Errorf("signals split across %s and %s, expected one .dat file", h.datFile, datFile)
		}
		h.signals = append(h.signals, sig)
	}

	return h, nil
}

// parseSignalLine handles one signal specification:
// file format gain(baseline)/units [adcres adczero initval checksum blocksize description]
func parseSignalLine(line string) (string, Signal, error) {
	var sig Signal

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", sig, fmt.Errorf("malformed signal line %q", line)
	}
	if fields[1] != "16" {
		return "", sig, fmt.Errorf("signal format %q not supported, only format 16", fields[1])
	}

	gain, baseline, units, err := parseGainSpec(fields[2])
	if err != nil {
		return "", sig, fmt.Errorf("signal line %q: %w", line, err)
	}
	sig.Gain = gain
	sig.Baseline = baseline
	sig.Units = units

	// The description runs from the ninth field to the end of the line and
	// may contain spaces.
	if len(fields) > 8 {
		sig.Name = strings.Join(fields[8:], " ")
	}

	return fields[0], sig, nil
}

// parseGainSpec splits the gain field gain(baseline)/units. Baseline and
// units are optional; a zero gain falls back to the WFDB default.
func parseGainSpec(spec string) (float64, int, string, error) {
	units := "mV"
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		units = spec[i+1:]
		spec = spec[:i]
	}

	baseline := 0
	if i := strings.IndexByte(spec, '('); i >= 0 {
		j := strings.IndexByte(spec, ')')
		if j < i {
			return 0, 0, "", fmt.Errorf("malformed baseline in gain %q", spec)
		}
		b, err := strconv.Atoi(spec[i+1 : j])
		if err != nil {
			return 0, 0, "", fmt.Errorf("malformed baseline in gain %q: %w", spec, err)
		}
		baseline = b
		spec = spec[:i]
	}

	gain, err := strconv.ParseFloat(spec, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("malformed gain %q: %w", spec, err)
	}
	if gain == 0 {
		gain = DefaultGain
	}

	return gain, baseline, units, nil
}

func formatHeader(rec *Record, datFile string, inits, sums []int16, nSamp int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d %s %d\n", rec.Name, len(rec.Signals), formatFloat(rec.Fs), nSamp)
	for i, sig := range rec.Signals {
		gain := sig.Gain
		if gain == 0 {
			gain = DefaultGain
		}
		units := sig.Units
		if units == "" {
			units = "mV"
		}
		name := sig.Name
		if name == "" {
			name = fmt.Sprintf("sig%d", i)
		}
		fmt.Fprintf(&b, "%s 16 %s(%d)/%s 16 0 %d %d 0 %s\n",
			datFile, formatFloat(gain), sig.Baseline, units, inits[i], sums[i], name)
	}

	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
