// Package tracker sequences the orientation estimators. A Tracker owns the
// latest sensor readings, timing, gyro bias and every estimate, and advances
// them one sample at a time; a Runner drives it from a fixed-rate loop and
// publishes snapshots to a Hub for concurrent readers.
package tracker

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/orientation"
	"github.com/banshee-data/imu.tracker/internal/quaternion"
	"github.com/banshee-data/imu.tracker/internal/timeutil"
)

// State is the tracker lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateCalibrating
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCalibrating:
		return "calibrating"
	case StateTracking:
		return "tracking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the fixed tracker parameters.
type Config struct {
	Alpha              float64       // complementary filter blend, 1 trusts the gyro only
	CalibrationSamples int           // samples averaged by CalibrateBias
	CalibrationTimeout time.Duration // bound on CalibrateBias, measured on the tracker clock
	CalibrationPoll    time.Duration // sleep between not-ready polls while calibrating
	SimulatedDT        float64       // seconds between playback samples
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:              0.9,
		CalibrationSamples: 1000,
		CalibrationTimeout: 10 * time.Second,
		CalibrationPoll:    100 * time.Microsecond,
		SimulatedDT:        imu.NominalDT,
	}
}

// Source selects where samples come from. Exactly one field should be set;
// Playback wins if both are.
type Source struct {
	Live     imu.Reader     // polled once per tick, bias corrected
	Playback *imu.Recording // replayed with a fixed dt
}

// Simulated reports whether samples come from a playback recording.
func (s Source) Simulated() bool {
	return s.Playback != nil
}

// Tracker is the stateful orientation sequencer. It is not safe for
// concurrent use; only the goroutine driving Tick may touch it.
type Tracker struct {
	cfg    Config
	src    Source
	clock  timeutil.Clock
	micros *timeutil.MicroClock

	state State
	ticks uint64

	gyr, acc   r3.Vec
	deltaT     float64
	prevMicros int64
	havePrev   bool

	gyroBias    r3.Vec
	calibration *Calibration

	flatlandRollGyr  float64
	flatlandRollAcc  float64
	flatlandRollComp float64
	quaternionGyr    quaternion.Quaternion
	accPitch         float64
	accRoll          float64
	quaternionComp   quaternion.Quaternion
}

// New validates cfg, zeroes all dynamic state and returns a tracker in
// StateTracking. A nil clock uses the real clock.
func New(cfg Config, src Source, clock timeutil.Clock) (*Tracker, error) {
	if math.IsNaN(cfg.Alpha) || cfg.Alpha < 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAlpha, cfg.Alpha)
	}
	if src.Live == nil && src.Playback == nil {
		return nil, ErrNoSamples
	}
	def := DefaultConfig()
	if cfg.CalibrationSamples <= 0 {
		cfg.CalibrationSamples = def.CalibrationSamples
	}
	if cfg.CalibrationTimeout <= 0 {
		cfg.CalibrationTimeout = def.CalibrationTimeout
	}
	if cfg.CalibrationPoll <= 0 {
		cfg.CalibrationPoll = def.CalibrationPoll
	}
	if cfg.SimulatedDT <= 0 {
		cfg.SimulatedDT = def.SimulatedDT
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	t := &Tracker{
		cfg:    cfg,
		src:    src,
		clock:  clock,
		micros: timeutil.NewMicroClock(clock),
	}
	t.ResetOrientation()
	t.state = StateTracking
	return t, nil
}

// SetGyroBias installs a previously measured gyro bias, in deg/s.
func (t *Tracker) SetGyroBias(bias r3.Vec) {
	t.gyroBias = bias
}

// ResetOrientation zeroes every derived estimate and returns both quaternions
// to identity. Bias and calibration are kept. The next live sample integrates
// over dt = 0.
func (t *Tracker) ResetOrientation() {
	t.flatlandRollGyr = 0
	t.flatlandRollAcc = 0
	t.flatlandRollComp = 0
	t.quaternionGyr = quaternion.Identity()
	t.accPitch = 0
	t.accRoll = 0
	t.quaternionComp = quaternion.Identity()
	t.havePrev = false
}

// Tick acquires one sample and advances every estimator once. It returns
// false, with no state changed, when a live source has no new sample.
func (t *Tracker) Tick() bool {
	if t.src.Simulated() {
		r := t.src.Playback.Next()
		t.gyr = r.Gyr
		t.acc = r.Acc
		t.deltaT = t.cfg.SimulatedDT
	} else {
		r, ok := t.src.Live.Read()
		if !ok {
			return false
		}
		now := t.micros.Micros()
		if t.havePrev {
			t.deltaT = float64(now-t.prevMicros) / 1e6
		} else {
			t.deltaT = 0
		}
		t.prevMicros = now
		t.havePrev = true
		t.gyr = r3.Sub(r.Gyr, t.gyroBias)
		t.acc = r.Acc
	}

	t.updateOrientation()
	t.ticks++
	return true
}

func (t *Tracker) updateOrientation() {
	t.flatlandRollGyr = orientation.FlatlandRollGyr(t.flatlandRollGyr, t.gyr, t.deltaT)
	t.flatlandRollAcc = orientation.FlatlandRollAcc(t.acc)
	t.flatlandRollComp = orientation.FlatlandRollComp(t.flatlandRollComp, t.gyr, t.flatlandRollAcc, t.deltaT, t.cfg.Alpha)
	t.quaternionGyr = orientation.UpdateQuaternionGyr(t.quaternionGyr, t.gyr, t.deltaT)
	t.accPitch = orientation.AccPitch(t.acc)
	t.accRoll = orientation.AccRoll(t.acc)
	t.quaternionComp = orientation.UpdateQuaternionComp(t.quaternionComp, t.gyr, t.acc, t.deltaT, t.cfg.Alpha)
}

// Accessors return the latest value of each reading and estimate.
func (t *Tracker) Gyr() r3.Vec                           { return t.gyr }
func (t *Tracker) Acc() r3.Vec                           { return t.acc }
func (t *Tracker) DeltaT() float64                       { return t.deltaT }
func (t *Tracker) FlatlandRollGyr() float64              { return t.flatlandRollGyr }
func (t *Tracker) FlatlandRollAcc() float64              { return t.flatlandRollAcc }
func (t *Tracker) FlatlandRollComp() float64             { return t.flatlandRollComp }
func (t *Tracker) QuaternionGyr() quaternion.Quaternion  { return t.quaternionGyr }
func (t *Tracker) QuaternionComp() quaternion.Quaternion { return t.quaternionComp }
func (t *Tracker) AccPitch() float64                     { return t.accPitch }
func (t *Tracker) AccRoll() float64                      { return t.accRoll }
func (t *Tracker) GyroBias() r3.Vec                      { return t.gyroBias }
func (t *Tracker) State() State                          { return t.state }
func (t *Tracker) Alpha() float64                        { return t.cfg.Alpha }
func (t *Tracker) Ticks() uint64                         { return t.ticks }
func (t *Tracker) Simulated() bool                       { return t.src.Simulated() }

// Calibration returns the last successful calibration, if any.
func (t *Tracker) Calibration() (Calibration, bool) {
	if t.calibration == nil {
		return Calibration{}, false
	}
	return *t.calibration, true
}

// Euler is a pitch/yaw/roll triple in degrees.
type Euler struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

func eulerOf(q quaternion.Quaternion) Euler {
	p, y, r := q.EulerAngles()
	return Euler{Pitch: p, Yaw: y, Roll: r}
}

// Snapshot is a copy of every tracker output at one tick.
type Snapshot struct {
	Tick             uint64                `json:"tick"`
	Time             time.Time             `json:"time"`
	State            string                `json:"state"`
	Simulated        bool                  `json:"simulated"`
	Alpha            float64               `json:"alpha"`
	DeltaT           float64               `json:"dt"`
	Gyr              r3.Vec                `json:"gyr"`
	Acc              r3.Vec                `json:"acc"`
	GyroBias         r3.Vec                `json:"gyro_bias"`
	FlatlandRollGyr  float64               `json:"flatland_roll_gyr"`
	FlatlandRollAcc  float64               `json:"flatland_roll_acc"`
	FlatlandRollComp float64               `json:"flatland_roll_comp"`
	AccPitch         float64               `json:"acc_pitch"`
	AccRoll          float64               `json:"acc_roll"`
	QuaternionGyr    quaternion.Quaternion `json:"quaternion_gyr"`
	QuaternionComp   quaternion.Quaternion `json:"quaternion_comp"`
	EulerGyr         Euler                 `json:"euler_gyr"`
	EulerComp        Euler                 `json:"euler_comp"`
}

// Snapshot copies the current outputs, stamped with the tracker clock.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Tick:             t.ticks,
		Time:             t.clock.Now(),
		State:            t.state.String(),
		Simulated:        t.src.Simulated(),
		Alpha:            t.cfg.Alpha,
		DeltaT:           t.deltaT,
		Gyr:              t.gyr,
		Acc:              t.acc,
		GyroBias:         t.gyroBias,
		FlatlandRollGyr:  t.flatlandRollGyr,
		FlatlandRollAcc:  t.flatlandRollAcc,
		FlatlandRollComp: t.flatlandRollComp,
		AccPitch:         t.accPitch,
		AccRoll:          t.accRoll,
		QuaternionGyr:    t.quaternionGyr,
		QuaternionComp:   t.quaternionComp,
		EulerGyr:         eulerOf(t.quaternionGyr),
		EulerComp:        eulerOf(t.quaternionComp),
	}
}
