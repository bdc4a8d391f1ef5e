// ecgplot renders one lead of a recording to a PNG, optionally through a
// first-order Butterworth display bandpass, with detected R-peaks overlaid
// as dots. The bandpass is cosmetic: detection always runs on raw samples.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/icza/gox/imagex/colorx"
	"github.com/jfcg/butter"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aim-lab/pecg"
	"github.com/aim-lab/pecg/buildinfo"
	"github.com/aim-lab/pecg/qrs"
	"github.com/aim-lab/pecg/recording"
)

// See https://www.ahajournals.org/doi/pdf/10.1161/CIRCULATIONAHA.106.180200
// for display filtering recommendations.
var (
	// LowPassHz is the frequency above which signals will be blocked
	// (i.e., 'pass' signals lower than this frequency, in cycles per second)
	LowPassHz float64

	// HighPassHz is the frequency below which signals will be blocked
	// (i.e., 'pass' signals higher than this frequency, in cycles per second)
	HighPassHz float64
)

func main() {
	var file, format, column, leadName, out, hexColor string
	var fs, yMin, yMax float64
	var widthPx, heightPx int
	var bandpass, overlayPeaks bool

	flag.StringVar(&file, "file", "", "Input recording: WFDB .hea, CardioSoft .xml, or delimited text (optionally compressed).")
	flag.StringVar(&format, "format", "", "Input format ('wfdb', 'xml', or 'csv'). Inferred from the file name when empty.")
	flag.StringVar(&column, "column", "", "For text inputs, the header name of the signal column.")
	flag.Float64Var(&fs, "fs", 0, "For text inputs, the sampling frequency in Hz.")
	flag.StringVar(&leadName, "lead", "", "Lead to plot. Defaults to the first lead of the recording.")
	flag.StringVar(&out, "out", "", "Output PNG path. Defaults to <record>_<lead>.png.")
	flag.IntVar(&widthPx, "width", 1200, "Output pixel width.")
	flag.IntVar(&heightPx, "height", 400, "Output pixel height.")
	flag.Float64Var(&yMin, "ymin", 0, "Fixed y-axis minimum. Auto-scaled when ymin equals ymax.")
	flag.Float64Var(&yMax, "ymax", 0, "Fixed y-axis maximum. Auto-scaled when ymin equals ymax.")
	flag.StringVar(&hexColor, "color", "#2f6bce", "Trace color as a hex triplet.")
	flag.BoolVar(&bandpass, "bandpass", false, "Apply the display bandpass before plotting?")
	flag.Float64Var(&LowPassHz, "low_pass_hz", 150.0, "Only permit frequencies below this many cycles per second")
	flag.Float64Var(&HighPassHz, "high_pass_hz", 0.05, "Only permit frequencies above this many cycles per second")
	flag.BoolVar(&overlayPeaks, "peaks", true, "Overlay detected R-peaks?")
	flag.Parse()

	buildinfo.PrintToStderr()

	if file == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(file, format, column, leadName, out, hexColor, fs, yMin, yMax, widthPx, heightPx, bandpass, overlayPeaks); err != nil {
		log.Fatalln(err)
	}
}

func run(file, format, column, leadName, out, hexColor string, fs, yMin, yMax float64, widthPx, heightPx int, bandpass, overlayPeaks bool) error {
	rec, err := recording.Load(pecg.ExpandHome(file), format, column, fs)
	if err != nil {
		return err
	}

	lead, err := rec.Lead(leadName)
	if err != nil {
		return err
	}
	if len(lead.Samples) < 2 {
		return fmt.Errorf("lead %s has only %d sample(s), nothing to plot", lead.Name, len(lead.Samples))
	}

	rgba, err := colorx.ParseHexColor(hexColor)
	if err != nil {
		return fmt.Errorf("bad -color %q: %v", hexColor, err)
	}
	stroke := drawing.Color{R: rgba.R, G: rgba.G, B: rgba.B, A: rgba.A}

	// Missing samples render at the baseline rather than poisoning the
	// display filter or the axis range.
	display := make([]float64, len(lead.Samples))
	for i, v := range lead.Samples {
		if pecg.IsMissing(v) {
			continue
		}
		display[i] = v
	}

	if bandpass {
		if display, err = bandPassFilter(display, rec.Fs, HighPassHz, LowPassHz); err != nil {
			return err
		}
	}

	seconds := make([]float64, len(display))
	for i := range seconds {
		seconds[i] = float64(i) / rec.Fs
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    lead.Name,
			XValues: seconds,
			YValues: display,
			Style:   chart.Style{StrokeColor: stroke, StrokeWidth: 1.0},
		},
	}

	if overlayPeaks {
		peaks, err := qrs.DetectDefault(lead.Samples, rec.Fs)
		if err != nil {
			return err
		}

		log.Printf("%s lead %s: %d peaks", rec.Name, lead.Name, len(peaks))

		// go-chart refuses series with fewer than two points.
		if len(peaks) >= 2 {
			px := make([]float64, len(peaks))
			py := make([]float64, len(peaks))
			for i, p := range peaks {
				px[i] = float64(p) / rec.Fs
				py[i] = display[p]
			}

			series = append(series, chart.ContinuousSeries{
				Name:    "R",
				XValues: px,
				YValues: py,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
					DotColor:    chart.ColorRed,
				},
			})
		}
	}

	var chartRange *chart.ContinuousRange
	if yMin != yMax {
		chartRange = &chart.ContinuousRange{Min: yMin, Max: yMax}
	}

	graph := chart.Chart{
		Width:  widthPx,
		Height: heightPx,
		XAxis: chart.XAxis{
			Name: "seconds",
		},
		YAxis: chart.YAxis{
			Name:  "mV",
			Range: chartRange,
		},
		Series: series,
	}

	// Render to a byte buffer
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return err
	}

	if out == "" {
		out = fmt.Sprintf("%s_%s.png", rec.Name, lead.Name)
	}

	outFile, err := os.Create(pecg.ExpandHome(out))
	if err != nil {
		return err
	}
	if _, err := buffer.WriteTo(outFile); err != nil {
		outFile.Close()
		return err
	}

	log.Println("wrote", out)

	return outFile.Close()
}

// bandPassFilter runs the samples through cascaded first-order Butterworth
// high- and low-pass sections, the standard cosmetic conditioning for a
// printed ECG trace.
func bandPassFilter(vals []float64, signalHz, highPassHz, lowPassHz float64) ([]float64, error) {
	wcBase := 2.0 * math.Pi / signalHz

	high := butter.NewHighPass1(highPassHz * wcBase)
	low := butter.NewLowPass1(lowPassHz * wcBase)

	if high == nil {
		return nil, fmt.Errorf("invalid high-pass filter (attempted wc=%f, but expect .0001 < wc && wc < 3.1415)", wcBase*highPassHz)
	}

	if low == nil {
		return nil, fmt.Errorf("invalid low-pass filter (attempted wc=%f, but expect .0001 < wc && wc < 3.1415)", wcBase*lowPassHz)
	}

	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = high.Next(low.Next(v))
	}

	return out, nil
}
