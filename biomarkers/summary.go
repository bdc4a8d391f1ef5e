package biomarkers

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Summary reduces one biomarker across the beats of a lead.
type Summary struct {
	Biomarker string  `csv:"biomarker"`
	N         int     `csv:"n"`
	Mean      float64 `csv:"mean"`
	Median    float64 `csv:"median"`
	Std       float64 `csv:"std"`
	Min       float64 `csv:"min"`
	Max       float64 `csv:"max"`
	Q25       float64 `csv:"q25"`
	Q75       float64 `csv:"q75"`
}

// Summarize reduces one biomarker's per-beat values, dropping beats where
// it could not be measured. With no measurable beats every statistic is
// NaN and N is zero.
func Summarize(name string, values []float64) Summary {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}

	s := Summary{
		Biomarker: name,
		N:         len(clean),
		Mean:      math.NaN(),
		Median:    math.NaN(),
		Std:       math.NaN(),
		Min:       math.NaN(),
		Max:       math.NaN(),
		Q25:       math.NaN(),
		Q75:       math.NaN(),
	}
	if len(clean) == 0 {
		return s
	}

	sort.Float64s(clean)
	s.Mean = stat.Mean(clean, nil)
	s.Min = clean[0]
	s.Max = clean[len(clean)-1]
	if m, err := stats.Median(clean); err == nil {
		s.Median = m
	}
	if len(clean) == 1 {
		s.Q25, s.Q75 = clean[0], clean[0]
		return s
	}
	s.Std = stat.StdDev(clean, nil)
	// Quartiles by the median-of-halves rule, the middle value excluded
	// from both halves when the count is odd.
	if q, err := stats.Quartile(clean); err == nil {
		s.Q25, s.Q75 = q.Q1, q.Q3
	}

	return s
}

// SummarizeAll reduces full interval and wave tables in a fixed column
// order, ready to write out as a summary table.
func SummarizeAll(intervals []Intervals, waves []Waves) []Summary {
	out := make([]Summary, 0, len(intervalColumns)+len(waveColumns))
	for _, c := range intervalColumns {
		col := make([]float64, len(intervals))
		for i, v := range intervals {
			col[i] = c.get(v)
		}
		out = append(out, Summarize(c.name, col))
	}
	for _, c := range waveColumns {
		col := make([]float64, len(waves))
		for i, v := range waves {
			col[i] = c.get(v)
		}
		out = append(out, Summarize(c.name, col))
	}

	return out
}

var intervalColumns = []struct {
	name string
	get  func(Intervals) float64
}{
	{"RR_ms", func(v Intervals) float64 { return v.RR }},
	{"Pwave_ms", func(v Intervals) float64 { return v.Pwave }},
	{"PR_ms", func(v Intervals) float64 { return v.PR }},
	{"PRseg_ms", func(v Intervals) float64 { return v.PRSeg }},
	{"QRS_ms", func(v Intervals) float64 { return v.QRS }},
	{"QT_ms", func(v Intervals) float64 { return v.QT }},
	{"JT_ms", func(v Intervals) float64 { return v.JT }},
	{"Twave_ms", func(v Intervals) float64 { return v.Twave }},
	{"Tpe_ms", func(v Intervals) float64 { return v.Tpe }},
	{"TP_ms", func(v Intervals) float64 { return v.TP }},
	{"QTcB_ms", func(v Intervals) float64 { return v.QTcB }},
	{"QTcFrid_ms", func(v Intervals) float64 { return v.QTcFrid }},
	{"QTcFram_ms", func(v Intervals) float64 { return v.QTcFram }},
	{"QTcHod_ms", func(v Intervals) float64 { return v.QTcHod }},
}

var waveColumns = []struct {
	name string
	get  func(Waves) float64
}{
	{"Pamp", func(v Waves) float64 { return v.Pamp }},
	{"Qamp", func(v Waves) float64 { return v.Qamp }},
	{"Ramp", func(v Waves) float64 { return v.Ramp }},
	{"Samp", func(v Waves) float64 { return v.Samp }},
	{"Tamp", func(v Waves) float64 { return v.Tamp }},
	{"Jpoint", func(v Waves) float64 { return v.Jpoint }},
	{"Parea", func(v Waves) float64 { return v.Parea }},
	{"QRSarea", func(v Waves) float64 { return v.QRSarea }},
	{"Tarea", func(v Waves) float64 { return v.Tarea }},
}
