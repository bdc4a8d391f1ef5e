// Package cardiosoft reads the resting-ECG XML export written by GE
// CardioSoft machines. Only the waveform payload, the acquisition
// settings, and the device's own measurements survive the trip; the
// export's demographic and ordering sections are not this package's
// business.
package cardiosoft

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"golang.org/x/net/html/charset"
)

// Lead is one channel of the export, converted to millivolts.
type Lead struct {
	Name    string
	Samples []float64
}

// Measurements are the device's own global measurements in the units it
// reports, milliseconds for intervals and beats per minute for the
// ventricular rate. Values the device left blank are NaN.
type Measurements struct {
	VentricularRate float64
	PQInterval      float64
	PDuration       float64
	QRSDuration     float64
	QTInterval      float64
	QTCInterval     float64
	RRInterval      float64
}

// Recording is a parsed export.
type Recording struct {
	Device          string
	SoftwareVersion string
	Recorded        time.Time
	Diagnoses       []string

	// Strip is the full-disclosure rhythm strip, sampled at Fs Hz.
	Fs    float64
	Strip []Lead

	// Median holds the device's representative beat per lead, sampled at
	// MedianFs Hz. Not every export carries one.
	MedianFs float64
	Median   []Lead

	Measurements Measurements
}

// Lead returns the named channel of the rhythm strip.
func (r *Recording) Lead(name string) ([]float64, error) {
	for i := range r.Strip {
		if r.Strip[i].Name == name {
			return r.Strip[i].Samples, nil
		}
	}

	return nil, fmt.Errorf("cardiosoft: recording has no lead named %q", name)
}

// cardiologyXML mirrors just the slice of the CardioSoft schema this
// package consumes.
type cardiologyXML struct {
	XMLName             xml.Name `xml:"CardiologyXML"`
	ObservationDateTime struct {
		Hour   string `xml:"Hour"`
		Minute string `xml:"Minute"`
		Second string `xml:"Second"`
		Day    string `xml:"Day"`
		Month  string `xml:"Month"`
		Year   string `xml:"Year"`
	} `xml:"ObservationDateTime"`
	ClinicalInfo struct {
		DeviceInfo struct {
			Desc        string `xml:"Desc"`
			SoftwareVer string `xml:"SoftwareVer"`
		} `xml:"DeviceInfo"`
	} `xml:"ClinicalInfo"`
	Interpretation struct {
		Diagnosis struct {
			DiagnosisText []string `xml:"DiagnosisText"`
		} `xml:"Diagnosis"`
	} `xml:"Interpretation"`
	RestingECGMeasurements struct {
		VentricularRate measurement `xml:"VentricularRate"`
		PQInterval      measurement `xml:"PQInterval"`
		PDuration       measurement `xml:"PDuration"`
		QRSDuration     measurement `xml:"QRSDuration"`
		QTInterval      measurement `xml:"QTInterval"`
		QTCInterval     measurement `xml:"QTCInterval"`
		RRInterval      measurement `xml:"RRInterval"`
		MedianSamples   samples     `xml:"MedianSamples"`
	} `xml:"RestingECGMeasurements"`
	StripData samples `xml:"StripData"`
}

type measurement struct {
	Text  string `xml:",chardata"`
	Units string `xml:"units,attr"`
}

type samples struct {
	SampleRate   measurement `xml:"SampleRate"`
	Resolution   measurement `xml:"Resolution"`
	WaveformData []struct {
		Text string `xml:",chardata"`
		Lead string `xml:"lead,attr"`
	} `xml:"WaveformData"`
}

// Parse decodes a CardioSoft export. The files declare ISO-8859-1 rather
// than UTF-8, so the decoder needs a charset-aware reader.
func Parse(r io.Reader) (*Recording, error) {
	var doc cardiologyXML
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&doc); err != nil {
		return nil, pfx.Err(err)
	}

	m := doc.RestingECGMeasurements
	rec := &Recording{
		Device:          doc.ClinicalInfo.DeviceInfo.Desc,
		SoftwareVersion: doc.ClinicalInfo.DeviceInfo.SoftwareVer,
		Recorded:        observationTime(doc),
		Diagnoses:       doc.Interpretation.Diagnosis.DiagnosisText,
		Measurements: Measurements{
			VentricularRate: measurementValue(m.VentricularRate),
			PQInterval:      measurementValue(m.PQInterval),
			PDuration:       measurementValue(m.PDuration),
			QRSDuration:     measurementValue(m.QRSDuration),
			QTInterval:      measurementValue(m.QTInterval),
			QTCInterval:     measurementValue(m.QTCInterval),
			RRInterval:      measurementValue(m.RRInterval),
		},
	}

	var err error
	if rec.Fs, rec.Strip, err = convertSamples(doc.StripData); err != nil {
		return nil, pfx.Err(fmt.Errorf("strip data: %w", err))
	}
	if len(rec.Strip) == 0 {
		return nil, pfx.Err(fmt.Errorf("export carries no rhythm strip"))
	}
	if rec.MedianFs, rec.Median, err = convertSamples(m.MedianSamples); err != nil {
		return nil, pfx.Err(fmt.Errorf("median samples: %w", err))
	}

	return rec, nil
}

func convertSamples(s samples) (float64, []Lead, error) {
	if len(s.WaveformData) == 0 {
		return 0, nil, nil
	}

	fs, err := strconv.ParseFloat(strings.TrimSpace(s.SampleRate.Text), 64)
	if err != nil {
		return 0, nil, fmt.Errorf("sample rate %q: %w", s.SampleRate.Text, err)
	}

	correction := voltageCorrection(s.Resolution.Text, s.Resolution.Units)

	leads := make([]Lead, 0, len(s.WaveformData))
	for _, w := range s.WaveformData {
		vals, err := splitWaveform(w.Text)
		if err != nil {
			return 0, nil, fmt.Errorf("lead %s: %w", w.Lead, err)
		}
		for i := range vals {
			vals[i] *= correction
		}
		leads = append(leads, Lead{Name: w.Lead, Samples: vals})
	}

	return fs, leads, nil
}

// splitWaveform parses the comma-separated sample text, which arrives
// sprinkled with newlines and tabs.
func splitWaveform(text string) ([]float64, error) {
	txt := strings.TrimSpace(text)
	txt = strings.ReplaceAll(txt, "\n", "")
	txt = strings.ReplaceAll(txt, "\t", "")

	fields := strings.Split(txt, ",")
	vals := make([]float64, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("sample %d is not numeric: %q", i, field)
		}
		vals[i] = float64(n)
	}

	return vals, nil
}

// voltageCorrection converts digital amplitudes to millivolts when the
// export declares its resolution in microvolts per least significant bit.
func voltageCorrection(value, units string) float64 {
	if units == "uVperLsb" {
		if vc, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return 0.001 * vc
		}
	}

	return 1
}

func measurementValue(m measurement) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(m.Text), 64)
	if err != nil {
		return math.NaN()
	}

	return v
}

func observationTime(doc cardiologyXML) time.Time {
	o := doc.ObservationDateTime
	year, err := strconv.Atoi(strings.TrimSpace(o.Year))
	if err != nil {
		return time.Time{}
	}

	atoi := func(s string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(s))
		return n
	}

	return time.Date(year, time.Month(atoi(o.Month)), atoi(o.Day),
		atoi(o.Hour), atoi(o.Minute), atoi(o.Second), 0, time.UTC)
}
