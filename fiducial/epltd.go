package fiducial

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// Epltd adapts the compiled Pan-Tompkins detector distributed with the
// PhysioNet tools. It is an alternative peak source for callers who want
// the reference detector instead of the built-in one.
type Epltd struct {
	// Bin is the path to the detector executable.
	Bin string
}

// Detect runs the detector over one lead and returns R-peak sample
// indices. The lead is exchanged as a WFDB record in a scratch directory;
// peaks come back one index per line.
func (e Epltd) Detect(signal []float64, fs float64) ([]int, error) {
	if e.Bin == "" {
		return nil, pfx.Err(fmt.Errorf("epltd: no executable configured"))
	}

	dir, err := os.MkdirTemp("", "epltd")
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer os.RemoveAll(dir)

	if err := writeTempRecord(dir, signal, fs); err != nil {
		return nil, err
	}

	cmd := exec.Command(e.Bin, recordName, "peaks.txt")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, pfx.Err(fmt.Errorf("epltd: %v: %s", err, out))
	}

	return readPeaksFile(filepath.Join(dir, "peaks.txt"))
}

func writePeaksFile(path string, peaks []int) error {
	var b strings.Builder
	for _, p := range peaks {
		fmt.Fprintf(&b, "%d\n", p)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func readPeaksFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	peaks := []int{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := strconv.Atoi(line)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("peak list %s: %w", path, err))
		}
		peaks = append(peaks, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return peaks, nil
}
