package imu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/banshee-data/imu.tracker/internal/monitoring"
	"github.com/banshee-data/imu.tracker/internal/serialmux"
)

var (
	// ErrNotSample is returned by ParseLine for banner, comment and empty lines.
	ErrNotSample = errors.New("not a sample line")
	// ErrMalformedLine is returned for lines that look like samples but do not parse.
	ErrMalformedLine = errors.New("malformed sample line")
)

type jsonSample struct {
	Gyr []float64 `json:"gyr"`
	Acc []float64 `json:"acc"`
}

// ParseLine decodes one serial line, either six comma or space separated
// values (gx,gy,gz,ax,ay,az) or a JSON object {"gyr":[x,y,z],"acc":[x,y,z]}.
// Lines carrying nan or inf, as printed by the firmware on sensor faults, are
// malformed.
func ParseLine(line string) (Reading, error) {
	r, err := parseLine(line)
	if err == nil && !r.Finite() {
		return Reading{}, fmt.Errorf("%w: non-finite value in %q", ErrMalformedLine, line)
	}
	return r, err
}

func parseLine(line string) (Reading, error) {
	switch serialmux.ClassifyLine(line) {
	case serialmux.LineSample:
		fields := splitFields(line)
		if len(fields) != 6 {
			return Reading{}, fmt.Errorf("%w: want 6 values, got %d", ErrMalformedLine, len(fields))
		}
		var v [6]float64
		for i, f := range fields {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Reading{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
			}
			v[i] = x
		}
		return readingFrom(v[:]), nil

	case serialmux.LineJSON:
		var js jsonSample
		if err := json.Unmarshal([]byte(line), &js); err != nil {
			return Reading{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		if js.Gyr == nil && js.Acc == nil {
			// status object from the firmware
			return Reading{}, ErrNotSample
		}
		if len(js.Gyr) != 3 || len(js.Acc) != 3 {
			return Reading{}, fmt.Errorf("%w: gyr and acc need 3 values, got %d and %d", ErrMalformedLine, len(js.Gyr), len(js.Acc))
		}
		return readingFrom(append(js.Gyr, js.Acc...)), nil

	case serialmux.LineComment, serialmux.LineEmpty:
		return Reading{}, ErrNotSample

	default:
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
}

// SerialStats counts what a SerialReader has seen.
type SerialStats struct {
	Parsed      int64 `json:"parsed"`
	Failed      int64 `json:"failed"`
	Skipped     int64 `json:"skipped"`
	Overwritten int64 `json:"overwritten"` // samples replaced before Read consumed them
}

// SerialReader turns serial lines into readings. Run consumes a serialmux
// subscription on its own goroutine; Read hands the latest complete sample to
// the tick loop. A sample is returned by Read at most once.
type SerialReader struct {
	mux   serialmux.SerialMuxInterface
	subID string
	lines chan string

	mu     sync.Mutex
	latest Reading
	fresh  bool
	stats  SerialStats
}

// NewSerialReader subscribes to mux straight away so no line is missed
// between construction and Run.
func NewSerialReader(mux serialmux.SerialMuxInterface) *SerialReader {
	id, lines := mux.Subscribe()
	return &SerialReader{mux: mux, subID: id, lines: lines}
}

// Run parses lines until ctx is cancelled or the mux closes the
// subscription, then unsubscribes. Call it once.
func (r *SerialReader) Run(ctx context.Context) error {
	defer r.mux.Unsubscribe(r.subID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-r.lines:
			if !ok {
				return nil
			}
			r.handle(line)
		}
	}
}

func (r *SerialReader) handle(line string) {
	reading, err := ParseLine(line)

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case errors.Is(err, ErrNotSample):
		r.stats.Skipped++
		monitoring.Debugf("serial: %s", line)
	case err != nil:
		r.stats.Failed++
		monitoring.Debugf("serial: %v", err)
	default:
		r.stats.Parsed++
		if r.fresh {
			r.stats.Overwritten++
		}
		r.latest = reading
		r.fresh = true
	}
}

// Read returns the latest unread sample.
func (r *SerialReader) Read() (Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.fresh {
		return Reading{}, false
	}
	r.fresh = false
	return r.latest, true
}

// Stats returns parse counters.
func (r *SerialReader) Stats() SerialStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
