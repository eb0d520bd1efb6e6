// Package imu provides the sample sources that feed the tracker: live boards
// over serial, prerecorded playback buffers and a synthetic stationary device.
package imu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Reading is one complete six-axis sample. Gyr is angular rate in degrees per
// second; Acc is specific force, reading gravity as +y when level.
type Reading struct {
	Gyr r3.Vec `json:"gyr"`
	Acc r3.Vec `json:"acc"`
}

// Reader is a non-blocking sample-ready probe. Read returns false when no new
// sample is available; it never returns a partially updated Reading.
type Reader interface {
	Read() (Reading, bool)
}

// Values returns the reading in interleaved gx,gy,gz,ax,ay,az order.
func (r Reading) Values() [6]float64 {
	return [6]float64{r.Gyr.X, r.Gyr.Y, r.Gyr.Z, r.Acc.X, r.Acc.Y, r.Acc.Z}
}

func readingFrom(v []float64) Reading {
	return Reading{
		Gyr: r3.Vec{X: v[0], Y: v[1], Z: v[2]},
		Acc: r3.Vec{X: v[3], Y: v[4], Z: v[5]},
	}
}

// Finite reports whether every axis holds a finite value.
func (r Reading) Finite() bool {
	for _, v := range r.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (r Reading) String() string {
	return fmt.Sprintf("gyr(%.5f %.5f %.5f) acc(%.3f %.3f %.3f)",
		r.Gyr.X, r.Gyr.Y, r.Gyr.Z, r.Acc.X, r.Acc.Y, r.Acc.Z)
}
