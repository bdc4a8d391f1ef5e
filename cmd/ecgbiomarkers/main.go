// ecgbiomarkers computes interval and wave biomarkers for one lead of a
// recording from a per-beat fiducial table (the output of ecgdelineate).
// By default it emits one CSV row per beat; -summary emits one row per
// biomarker with per-lead statistics over the beats instead.
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
	"github.com/aim-lab/pecg/biomarkers"
	"github.com/aim-lab/pecg/buildinfo"
	"github.com/aim-lab/pecg/fiducial"
	"github.com/aim-lab/pecg/recording"
)

type beatRow struct {
	Beat int `csv:"beat"`
	biomarkers.Intervals
	biomarkers.Waves
}

func main() {
	var file, format, column, leadName, fiducials, out string
	var fs float64
	var summary bool

	flag.StringVar(&file, "file", "", "Input recording: WFDB .hea, CardioSoft .xml, or delimited text (optionally compressed).")
	flag.StringVar(&format, "format", "", "Input format ('wfdb', 'xml', or 'csv'). Inferred from the file name when empty.")
	flag.StringVar(&column, "column", "", "For text inputs, the header name of the signal column.")
	flag.Float64Var(&fs, "fs", 0, "For text inputs, the sampling frequency in Hz.")
	flag.StringVar(&leadName, "lead", "", "Lead the fiducials were delineated on. Defaults to the first lead.")
	flag.StringVar(&fiducials, "fiducials", "", "Per-beat fiducial CSV produced by ecgdelineate.")
	flag.BoolVar(&summary, "summary", false, "Emit per-biomarker summary statistics instead of per-beat values?")
	flag.StringVar(&out, "out", "", "Output CSV path. Defaults to stdout.")
	flag.Parse()

	buildinfo.PrintToStderr()

	if file == "" || fiducials == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(file, format, column, leadName, fiducials, out, fs, summary); err != nil {
		log.Fatalln(err)
	}
}

func run(file, format, column, leadName, fiducials, out string, fs float64, summary bool) error {
	rec, err := recording.Load(pecg.ExpandHome(file), format, column, fs)
	if err != nil {
		return err
	}

	lead, err := rec.Lead(leadName)
	if err != nil {
		return err
	}

	beats, err := readFiducials(fiducials)
	if err != nil {
		return err
	}
	if len(beats) == 0 {
		return fmt.Errorf("%s contains no beats", fiducials)
	}

	intervals, err := biomarkers.ComputeIntervals(beats, rec.Fs)
	if err != nil {
		return err
	}

	waves, err := biomarkers.ComputeWaves(lead.Samples, beats, rec.Fs)
	if err != nil {
		return err
	}

	log.Printf("%s lead %s: biomarkers for %d beats", rec.Name, lead.Name, len(beats))

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}

	if summary {
		err = gocsv.Marshal(biomarkers.SummarizeAll(intervals, waves), w)
	} else {
		rows := make([]*beatRow, 0, len(beats))
		for i := range beats {
			rows = append(rows, &beatRow{Beat: i, Intervals: intervals[i], Waves: waves[i]})
		}
		err = gocsv.Marshal(rows, w)
	}
	if err != nil {
		closeOut()
		return err
	}

	return closeOut()
}

func readFiducials(path string) ([]*fiducial.Beat, error) {
	r, err := pecg.OpenDecompressed(pecg.ExpandHome(path))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var beats []*fiducial.Beat
	if err := gocsv.UnmarshalBytes(data, &beats); err != nil {
		return nil, err
	}

	return beats, nil
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
