package serialmux

import (
	"strconv"
	"strings"
)

// Line classes emitted by IMU firmware.
const (
	LineSample  = "sample"  // six comma separated numbers: gx,gy,gz,ax,ay,az
	LineJSON    = "json"    // {"gyr":[...],"acc":[...]} or a status object
	LineComment = "comment" // banner and calibration printouts starting with '#'
	LineEmpty   = "empty"
	LineUnknown = "unknown"
)

// ClassifyLine inspects a raw serial line and returns its class. It only looks
// at the shape of the line; decoding is left to the consumer.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineEmpty
	case strings.HasPrefix(line, "#"):
		return LineComment
	case strings.HasPrefix(line, "{"):
		return LineJSON
	}

	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 6 {
		return LineUnknown
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			return LineUnknown
		}
	}
	return LineSample
}
