// ecgdelineate locates per-beat wave landmarks on one lead of a recording.
// R-peaks come from the built-in energy detector (or from an external epltd
// binary), and the landmark table comes from the external wavedet delineator.
// Output is one CSV row per beat.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/aim-lab/pecg"
	"github.com/aim-lab/pecg/buildinfo"
	"github.com/aim-lab/pecg/fiducial"
	"github.com/aim-lab/pecg/qrs"
	"github.com/aim-lab/pecg/recording"
)

func main() {
	var file, format, column, leadName string
	var wavedetBin, epltdBin, out string
	var fs, threshold, refractory float64

	flag.StringVar(&file, "file", "", "Input recording: WFDB .hea, CardioSoft .xml, or delimited text (optionally compressed).")
	flag.StringVar(&format, "format", "", "Input format ('wfdb', 'xml', or 'csv'). Inferred from the file name when empty.")
	flag.StringVar(&column, "column", "", "For text inputs, the header name of the signal column.")
	flag.Float64Var(&fs, "fs", 0, "For text inputs, the sampling frequency in Hz.")
	flag.StringVar(&leadName, "lead", "", "Lead to delineate. Defaults to the first lead of the recording.")
	flag.StringVar(&wavedetBin, "wavedet", "", "Path to the wavedet delineator executable.")
	flag.StringVar(&epltdBin, "epltd", "", "Path to the epltd peak detector executable. When empty, peaks come from the built-in energy detector.")
	flag.Float64Var(&threshold, "threshold", qrs.DefaultThreshold, "Built-in detector threshold coefficient.")
	flag.Float64Var(&refractory, "refractory", qrs.DefaultRefractorySec, "Built-in detector refractory period in seconds.")
	flag.StringVar(&out, "out", "", "Output CSV path. Defaults to stdout.")
	flag.Parse()

	buildinfo.PrintToStderr()

	if file == "" || wavedetBin == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(file, format, column, leadName, wavedetBin, epltdBin, out, fs, threshold, refractory); err != nil {
		log.Fatalln(err)
	}
}

func run(file, format, column, leadName, wavedetBin, epltdBin, out string, fs, threshold, refractory float64) error {
	rec, err := recording.Load(pecg.ExpandHome(file), format, column, fs)
	if err != nil {
		return err
	}

	lead, err := rec.Lead(leadName)
	if err != nil {
		return err
	}

	peaks, err := detectPeaks(lead.Samples, rec.Fs, epltdBin, threshold, refractory)
	if err != nil {
		return err
	}
	if len(peaks) == 0 {
		return fmt.Errorf("no QRS peaks found in lead %s of %s", lead.Name, rec.Name)
	}

	beats, err := fiducial.Wavedet{Bin: pecg.ExpandHome(wavedetBin)}.Delineate(lead.Samples, rec.Fs, peaks)
	if err != nil {
		return err
	}

	log.Printf("%s lead %s: %d peaks, %d delineated beats", rec.Name, lead.Name, len(peaks), len(beats))

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}

	if err := gocsv.Marshal(beats, w); err != nil {
		closeOut()
		return err
	}

	return closeOut()
}

func detectPeaks(signal []float64, fs float64, epltdBin string, threshold, refractory float64) ([]int, error) {
	if epltdBin != "" {
		return fiducial.Epltd{Bin: pecg.ExpandHome(epltdBin)}.Detect(signal, fs)
	}

	return qrs.Detect(signal, fs, threshold, refractory)
}

// openOutput returns a buffered writer on the named file, or on stdout when
// path is empty, plus a flush-and-close function.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}

	f, err := os.Create(pecg.ExpandHome(path))
	if err != nil {
		return nil, nil, err
	}

	w := bufio.NewWriter(f)
	return w, func() error {
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}
