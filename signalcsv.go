package pecg

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit
// the values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// ReadSignalCSV reads one lead's amplitude samples from delimited text. The
// delimiter is auto-detected. If column is empty, the file must have exactly
// one column of numbers (an optional non-numeric first line is treated as a
// header and skipped). Otherwise the first line must be a header naming the
// requested column. Blank fields and fields that read "nan" become the
// missing-sample sentinel so that indices stay aligned.
func ReadSignalCSV(r io.Reader, column string) ([]float64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	delim := DetermineDelimiter(bytes.NewReader(raw))

	csvReader := csv.NewReader(bytes.NewReader(raw))
	csvReader.Comma = delim
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(rows) == 0 {
		return nil, pfx.Err(fmt.Errorf("no rows in signal file"))
	}

	colIdx := 0
	start := 0
	if column != "" {
		colIdx = -1
		for i, name := range rows[0] {
			if strings.EqualFold(strings.TrimSpace(name), column) {
				colIdx = i
				break
			}
		}
		if colIdx < 0 {
			return nil, pfx.Err(fmt.Errorf("column %q not found in header %v", column, rows[0]))
		}
		start = 1
	} else if len(rows[0]) > 0 {
		// Single-column mode: skip a non-numeric header line if present.
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][0]), 64); err != nil {
			start = 1
		}
	}

	signal := make([]float64, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		if colIdx >= len(rows[i]) {
			return nil, pfx.Err(fmt.Errorf("row %d has %d fields, need column %d", i+1, len(rows[i]), colIdx+1))
		}

		field := strings.TrimSpace(rows[i][colIdx])
		if field == "" || strings.EqualFold(field, "nan") {
			signal = append(signal, MissingSample)
			continue
		}

		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("row %d: %q is not numeric: %v", i+1, field, err))
		}
		signal = append(signal, v)
	}

	return signal, nil
}
