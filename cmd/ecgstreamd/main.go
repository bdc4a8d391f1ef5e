// ecgstreamd is a long-running NATS worker. It subscribes to subjects that
// carry raw ECG samples as float32 little-endian frames, keeps a sliding
// window per subject, and periodically runs the energy QRS detector on each
// window, publishing heart rate updates as JSON.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aim-lab/pecg/buildinfo"
	"github.com/aim-lab/pecg/qrs"
)

// hrUpdate is the payload published after each analysis pass over a window.
type hrUpdate struct {
	Subject   string  `json:"subject"`
	Ts        int64   `json:"ts"`
	HR        float64 `json:"hr"`
	Beats     int     `json:"beats"`
	WindowSec float64 `json:"window_sec"`
}

// window is one subject's sliding sample buffer. NATS delivers frames on its
// own goroutine while the analysis ticker reads, hence the lock.
type window struct {
	mu      sync.Mutex
	samples []float64
}

func (w *window) push(batch []float64, max int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, batch...)
	if over := len(w.samples) - max; over > 0 {
		w.samples = append(w.samples[:0], w.samples[over:]...)
	}
}

func (w *window) snapshot() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]float64, len(w.samples))
	copy(out, w.samples)

	return out
}

func main() {
	var natsURL, in, out string
	var fs, windowSec, threshold, refractory float64
	var every time.Duration

	flag.StringVar(&natsURL, "nats", nats.DefaultURL, "NATS server URL.")
	flag.StringVar(&in, "in", "ecg.wave.>", "Subject(s) carrying float32 little-endian sample frames.")
	flag.StringVar(&out, "out", "ecg.hr", "Subject to publish heart rate updates to.")
	flag.Float64Var(&fs, "fs", 250, "Sampling frequency of the incoming frames in Hz.")
	flag.Float64Var(&windowSec, "window", 10, "Sliding analysis window in seconds.")
	flag.DurationVar(&every, "every", 2*time.Second, "Interval between analysis passes.")
	flag.Float64Var(&threshold, "threshold", qrs.DefaultThreshold, "Detection threshold coefficient.")
	flag.Float64Var(&refractory, "refractory", qrs.DefaultRefractorySec, "Refractory period in seconds.")
	flag.Parse()

	buildinfo.PrintToStderr()

	if err := run(natsURL, in, out, fs, windowSec, threshold, refractory, every); err != nil {
		log.Fatalln(err)
	}
}

func run(natsURL, in, out string, fs, windowSec, threshold, refractory float64, every time.Duration) error {
	if fs <= 0 || windowSec <= 0 {
		return fmt.Errorf("fs (%g) and window (%g) must be positive", fs, windowSec)
	}

	nc, err := nats.Connect(
		natsURL,
		nats.Name("ecgstreamd"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return err
	}
	defer nc.Drain()

	maxSamples := int(windowSec * fs)

	var mu sync.Mutex
	windows := make(map[string]*window)

	_, err = nc.Subscribe(in, func(msg *nats.Msg) {
		batch := decodeFrame(msg.Data)
		if len(batch) == 0 {
			return
		}

		mu.Lock()
		w, ok := windows[msg.Subject]
		if !ok {
			w = &window{}
			windows[msg.Subject] = w
			log.Println("new subject:", msg.Subject)
		}
		mu.Unlock()

		w.push(batch, maxSamples)
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		cancel()
	}()

	log.Printf("listening on %s, publishing to %s", in, out)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("shutting down")
			return nil

		case <-ticker.C:
			mu.Lock()
			current := make(map[string]*window, len(windows))
			for subj, w := range windows {
				current[subj] = w
			}
			mu.Unlock()

			for subj, w := range current {
				if err := analyze(nc, out, subj, w.snapshot(), fs, threshold, refractory); err != nil {
					log.Println(subj, err)
				}
			}
		}
	}
}

// analyze runs detection over one subject's window and publishes the heart
// rate. Windows shorter than two seconds are left to fill up first.
func analyze(nc *nats.Conn, out, subject string, samples []float64, fs, threshold, refractory float64) error {
	if float64(len(samples)) < 2*fs {
		return nil
	}

	peaks, err := qrs.Detect(samples, fs, threshold, refractory)
	if err != nil {
		return err
	}
	if len(peaks) < 2 {
		return nil
	}

	span := float64(peaks[len(peaks)-1]-peaks[0]) / fs

	update := hrUpdate{
		Subject:   subject,
		Ts:        time.Now().UnixMilli(),
		HR:        60.0 * float64(len(peaks)-1) / span,
		Beats:     len(peaks),
		WindowSec: float64(len(samples)) / fs,
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	return nc.Publish(out, payload)
}

// decodeFrame unpacks a float32 little-endian sample frame. A trailing
// partial value is dropped.
func decodeFrame(data []byte) []float64 {
	n := len(data) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = float64(math.Float32frombits(bits))
	}

	return out
}
