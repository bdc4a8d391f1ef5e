// Package fiducial models per-beat ECG landmarks and adapts the external
// delineation programs that place them. The landmark vocabulary follows
// the wavedet delineator: wave onsets, peaks, and offsets for the P wave,
// the QRS complex, and the T wave, plus wavedet's T-morphology classes.
package fiducial

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NotFound marks a landmark the delineator could not place in a beat.
const NotFound = -1

// Index is a landmark's sample position within the lead it was measured
// on. It round-trips through CSV the way delineators emit positions:
// numeric, possibly fractional, with NaN or an empty cell meaning the
// landmark was not found.
type Index int

// Found reports whether the landmark was placed.
func (i Index) Found() bool { return i != NotFound }

func (i *Index) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*i = NotFound
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("landmark index %q: %w", s, err)
	}
	if math.IsNaN(f) || f < 0 {
		*i = NotFound
		return nil
	}

	*i = Index(math.Round(f))
	return nil
}

func (i Index) MarshalCSV() (string, error) {
	if i == NotFound {
		return "NaN", nil
	}

	return strconv.Itoa(int(i)), nil
}

// Beat holds the landmark positions of one cardiac cycle. The CSV column
// names are the delineator's own. The three Ttipo fields carry wavedet's
// T-wave morphology classes rather than sample positions.
type Beat struct {
	Pon      Index `csv:"Pon"`
	P        Index `csv:"P"`
	Poff     Index `csv:"Poff"`
	QRSon    Index `csv:"QRSon"`
	Q        Index `csv:"Q"`
	R        Index `csv:"qrs"`
	S        Index `csv:"S"`
	QRSoff   Index `csv:"QRSoff"`
	Ton      Index `csv:"Ton"`
	T        Index `csv:"T"`
	Toff     Index `csv:"Toff"`
	Ttipo    Index `csv:"Ttipo"`
	Ttipoon  Index `csv:"Ttipoon"`
	Ttipooff Index `csv:"Ttipooff"`
}
