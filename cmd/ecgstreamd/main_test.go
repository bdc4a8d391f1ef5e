package main

import (
	"encoding/binary"
	"math"
	"reflect"
	"testing"
)

func frame(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}

	return out
}

func TestDecodeFrame(t *testing.T) {
	got := decodeFrame(frame(0, 1.5, -0.25))
	want := []float64{0, 1.5, -0.25}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeFrame = %v, want %v", got, want)
	}

	// A trailing partial value is dropped.
	got = decodeFrame(append(frame(2), 0xff, 0xff))
	if !reflect.DeepEqual(got, []float64{2}) {
		t.Fatalf("decodeFrame with partial tail = %v, want [2]", got)
	}

	if got := decodeFrame(nil); len(got) != 0 {
		t.Fatalf("decodeFrame(nil) = %v, want empty", got)
	}
}

func TestWindowPush(t *testing.T) {
	w := &window{}

	w.push([]float64{1, 2, 3}, 4)
	w.push([]float64{4, 5}, 4)

	// Only the most recent max samples survive.
	got := w.snapshot()
	want := []float64{2, 3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("window = %v, want %v", got, want)
	}

	// Snapshots are copies: mutating one must not reach the buffer.
	got[0] = -100
	if again := w.snapshot(); !reflect.DeepEqual(again, want) {
		t.Fatalf("window after snapshot mutation = %v, want %v", again, want)
	}

	// A batch larger than the window keeps its tail.
	w.push([]float64{10, 11, 12, 13, 14, 15}, 4)
	if got := w.snapshot(); !reflect.DeepEqual(got, []float64{12, 13, 14, 15}) {
		t.Fatalf("window after oversized batch = %v", got)
	}
}
