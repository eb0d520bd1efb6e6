package tracker

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/monitoring"
)

// Calibration is the per-axis mean and population variance of a stationary
// sample run. Only the gyro mean is applied, as the live gyro bias; the
// accelerometer mean carries gravity and is reported only.
type Calibration struct {
	Samples int       `json:"samples"`
	GyrBias r3.Vec    `json:"gyr_bias"`
	GyrVar  r3.Vec    `json:"gyr_var"`
	AccBias r3.Vec    `json:"acc_bias"`
	AccVar  r3.Vec    `json:"acc_var"`
	Time    time.Time `json:"time"`
}

func (c Calibration) String() string {
	return fmt.Sprintf("GYR_BIAS: %.5f %.5f %.5f GYR_VAR: %.5f %.5f %.5f ACC_BIAS: %.3f %.3f %.3f ACC_VAR: %.3f %.3f %.3f",
		c.GyrBias.X, c.GyrBias.Y, c.GyrBias.Z,
		c.GyrVar.X, c.GyrVar.Y, c.GyrVar.Z,
		c.AccBias.X, c.AccBias.Y, c.AccBias.Z,
		c.AccVar.X, c.AccVar.Y, c.AccVar.Z)
}

// axisSamples holds one calibration run, one slice per sensor axis in
// gx,gy,gz,ax,ay,az order.
type axisSamples [6][]float64

func (s *axisSamples) add(r imu.Reading) {
	for i, v := range r.Values() {
		s[i] = append(s[i], v)
	}
}

func (s *axisSamples) meanVariance(axis int) (float64, float64) {
	return stat.PopMeanVariance(s[axis], nil)
}

// CalibrateBias collects CalibrationSamples consecutive raw samples from the
// source while the device is at rest and installs their gyro mean as the bias.
//
// It blocks until the quota is met, ctx is done, or CalibrationTimeout elapses
// on the tracker clock; on failure the returned error wraps
// ErrCalibrationTimeout or is ctx.Err(), and bias and estimates are left as
// they were. Samples are consumed on every path, so the timing is always
// re-armed and the next tick integrates nothing.
func (t *Tracker) CalibrateBias(ctx context.Context) (Calibration, error) {
	prev := t.state
	t.state = StateCalibrating
	defer func() {
		t.state = prev
		t.havePrev = false
	}()

	n := t.cfg.CalibrationSamples
	var samples axisSamples
	for i := range samples {
		samples[i] = make([]float64, 0, n)
	}

	start := t.clock.Now()
	collected := 0
	for collected < n {
		if err := ctx.Err(); err != nil {
			return Calibration{}, err
		}
		if t.clock.Since(start) > t.cfg.CalibrationTimeout {
			return Calibration{}, fmt.Errorf("%w: %d of %d samples after %s",
				ErrCalibrationTimeout, collected, n, t.cfg.CalibrationTimeout)
		}

		var r imu.Reading
		if t.src.Simulated() {
			r = t.src.Playback.Next()
		} else {
			var ok bool
			if r, ok = t.src.Live.Read(); !ok {
				t.clock.Sleep(t.cfg.CalibrationPoll)
				continue
			}
		}
		samples.add(r)
		collected++
	}

	c := Calibration{Samples: n, Time: t.clock.Now()}
	var mean, variance [6]float64
	for axis := range samples {
		mean[axis], variance[axis] = samples.meanVariance(axis)
	}
	c.GyrBias = r3.Vec{X: mean[0], Y: mean[1], Z: mean[2]}
	c.AccBias = r3.Vec{X: mean[3], Y: mean[4], Z: mean[5]}
	c.GyrVar = r3.Vec{X: variance[0], Y: variance[1], Z: variance[2]}
	c.AccVar = r3.Vec{X: variance[3], Y: variance[4], Z: variance[5]}

	t.gyroBias = c.GyrBias
	t.calibration = &c

	monitoring.Logf("calibration over %d samples in %s: %s", n, t.clock.Since(start).Round(time.Millisecond), c)
	return c, nil
}
