package imu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NominalDT is the fixed time step, in seconds, between recorded samples.
const NominalDT = 0.002

// ErrBadRecording is returned for recordings that are empty, malformed or not
// a whole number of six-value samples.
var ErrBadRecording = errors.New("bad recording")

// Recording is a flat interleaved [gx,gy,gz,ax,ay,az]... buffer read through a
// cursor that wraps back to the first sample after the last.
type Recording struct {
	data   []float64
	cursor int
}

// NewRecording wraps data, which must hold a positive multiple of six values.
// The slice is copied.
func NewRecording(data []float64) (*Recording, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrBadRecording)
	}
	if len(data)%6 != 0 {
		return nil, fmt.Errorf("%w: %d values is not a multiple of 6", ErrBadRecording, len(data))
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Recording{data: buf}, nil
}

// LoadRecording parses a text recording. Values may be separated by commas or
// whitespace and split across lines in any way; blank lines and lines starting
// with '#' are ignored.
func LoadRecording(r io.Reader) (*Recording, error) {
	var data []float64
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, f := range splitFields(line) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d: %q is not a finite number", ErrBadRecording, lineNo, f)
			}
			data = append(data, v)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	return NewRecording(data)
}

// WriteTo writes the recording one sample per line as comma separated values,
// in the format LoadRecording reads.
func (r *Recording) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for i := 0; i < len(r.data); i += 6 {
		vals := make([]string, 6)
		for j := range vals {
			vals[j] = strconv.FormatFloat(r.data[i+j], 'g', -1, 64)
		}
		m, err := bw.WriteString(strings.Join(vals, ",") + "\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Next returns the sample under the cursor and advances it, wrapping at the end.
func (r *Recording) Next() Reading {
	s := readingFrom(r.data[r.cursor : r.cursor+6])
	r.cursor = (r.cursor + 6) % len(r.data)
	return s
}

// Len returns the number of samples.
func (r *Recording) Len() int {
	return len(r.data) / 6
}

// Position returns the index of the sample Next will return.
func (r *Recording) Position() int {
	return r.cursor / 6
}

// Rewind moves the cursor back to the first sample.
func (r *Recording) Rewind() {
	r.cursor = 0
}

// Samples returns a copy of the interleaved buffer.
func (r *Recording) Samples() []float64 {
	out := make([]float64, len(r.data))
	copy(out, r.data)
	return out
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t' || c == ';'
	})
}
