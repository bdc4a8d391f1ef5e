// ecgdetect runs the energy QRS detector over every lead of a recording and
// emits one lead,peak,time_sec row per detected R-peak to stdout. Per-lead
// heart rate summaries go to stderr.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/runningvariance"
	"github.com/montanaflynn/stats"

	"github.com/aim-lab/pecg"
	"github.com/aim-lab/pecg/buildinfo"
	"github.com/aim-lab/pecg/qrs"
	"github.com/aim-lab/pecg/recording"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

type detection struct {
	lead  string
	fs    float64
	peaks []int
}

func main() {
	defer STDOUT.Flush()

	var file, format, column string
	var fs, threshold, refractory float64
	var printHist bool

	flag.StringVar(&file, "file", "", "Input recording: WFDB .hea, CardioSoft .xml, or delimited text (optionally compressed).")
	flag.StringVar(&format, "format", "", "Input format ('wfdb', 'xml', or 'csv'). Inferred from the file name when empty.")
	flag.StringVar(&column, "column", "", "For text inputs, the header name of the signal column. Leave empty for single-column files.")
	flag.Float64Var(&fs, "fs", 0, "For text inputs, the sampling frequency in Hz.")
	flag.Float64Var(&threshold, "threshold", qrs.DefaultThreshold, "Detection threshold coefficient.")
	flag.Float64Var(&refractory, "refractory", qrs.DefaultRefractorySec, "Refractory period in seconds.")
	flag.BoolVar(&printHist, "hist", false, "Print a per-lead RR interval histogram to stderr?")
	flag.Parse()

	buildinfo.PrintToStderr()

	if file == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(file, format, column, fs, threshold, refractory, printHist); err != nil {
		log.Fatalln(err)
	}
}

func run(file, format, column string, fs, threshold, refractory float64, printHist bool) error {
	rec, err := recording.Load(pecg.ExpandHome(file), format, column, fs)
	if err != nil {
		return err
	}

	log.Printf("%s: %d lead(s) at %g Hz", rec.Name, len(rec.Leads), rec.Fs)

	concurrency := runtime.NumCPU()

	detections := make([]detection, 0, len(rec.Leads))
	results := make(chan detection, concurrency)
	doneListening := make(chan struct{})
	go func() {
		defer func() { doneListening <- struct{}{} }()
		// Serialize results so rows from different leads don't interleave on
		// os.Stdout, which is not goroutine safe.
		for res := range results {
			for _, p := range res.peaks {
				fmt.Fprintf(STDOUT, "%s,%d,%.6f\n", res.lead, p, float64(p)/res.fs)
			}
			detections = append(detections, res)
		}
	}()

	fmt.Fprintln(STDOUT, "lead,peak,time_sec")

	semaphore := make(chan struct{}, concurrency)

	for _, lead := range rec.Leads {

		// Will block after `concurrency` simultaneous goroutines are running
		semaphore <- struct{}{}

		go func(lead recording.Lead) {

			// Be sure to permit unblocking once we finish
			defer func() { <-semaphore }()

			peaks, err := qrs.Detect(lead.Samples, rec.Fs, threshold, refractory)
			if err != nil {
				log.Println(lead.Name, err)
				return
			}

			results <- detection{lead: lead.Name, fs: rec.Fs, peaks: peaks}
		}(lead)
	}

	// Make sure every worker has finished before closing the results channel,
	// otherwise we'd lose the last `concurrency` leads.
	for i := 0; i < cap(semaphore); i++ {
		semaphore <- struct{}{}
	}

	close(results)
	<-doneListening

	if len(detections) == 0 && len(rec.Leads) > 0 {
		return fmt.Errorf("all %d lead(s) failed", len(rec.Leads))
	}

	for _, d := range detections {
		if err := summarize(d, printHist); err != nil {
			return err
		}
	}

	return nil
}

// summarize logs the peak count, the median RR interval, and the running
// heart rate statistics for one lead, optionally with an RR histogram.
func summarize(d detection, printHist bool) error {
	rr := rrIntervals(d.peaks, d.fs)
	if len(rr) == 0 {
		log.Printf("%s: %d peak(s), too few for RR intervals", d.lead, len(d.peaks))
		return nil
	}

	medianRR, err := stats.Median(rr)
	if err != nil {
		return err
	}

	hr := runningvariance.NewRunningStat()
	for _, v := range rr {
		hr.Push(60.0 / v)
	}

	log.Printf("%s: %d peaks, median RR %.3f s, heart rate %.1f bpm (sd %.1f)",
		d.lead, len(d.peaks), medianRR, hr.Mean(), hr.StandardDeviation())

	if printHist {
		fmt.Fprintf(os.Stderr, "RR intervals (s), lead %s:\n", d.lead)
		if err := histogram.Fprint(os.Stderr, histogram.Hist(10, rr), histogram.Linear(40)); err != nil {
			return err
		}
	}

	return nil
}

func rrIntervals(peaks []int, fs float64) []float64 {
	rr := make([]float64, 0, len(peaks))
	for i := 1; i < len(peaks); i++ {
		rr = append(rr, float64(peaks[i]-peaks[i-1])/fs)
	}

	return rr
}
