// Package pecg provides shared conventions and input helpers for the ECG
// fiducial-point and biomarker tools in this repository.
package pecg

// MissingSample is the reserved amplitude that marks a physiologically
// invalid sample, following the WFDB format-16 convention (the digital
// value -32768). Missing samples are kept in place so that sample indices
// stay aligned with the recording; consumers exclude them from statistics
// instead of removing them.
const MissingSample = -32768

// IsMissing reports whether v is the missing-sample sentinel.
func IsMissing(v float64) bool {
	return v == MissingSample
}
