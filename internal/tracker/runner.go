package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/imu.tracker/internal/monitoring"
	"github.com/banshee-data/imu.tracker/internal/timeutil"
)

// Recorder persists tracker output. Implementations are called from the tick
// loop goroutine and should return quickly.
type Recorder interface {
	RecordSnapshot(Snapshot) error
	RecordCalibration(Calibration) error
}

// RunnerConfig controls the tick loop.
type RunnerConfig struct {
	TickInterval time.Duration
	// RecordEvery hands every Nth processed snapshot to the Recorder. Zero
	// disables snapshot recording; calibrations are always recorded.
	RecordEvery int
}

type command struct {
	fn    func() error
	reply chan error
}

// Runner owns the goroutine that drives a Tracker. Commands that mutate the
// tracker are marshalled onto that goroutine so the tracker itself needs no
// locking.
type Runner struct {
	tracker  *Tracker
	hub      *Hub
	clock    timeutil.Clock
	cfg      RunnerConfig
	recorder Recorder

	cmds      chan command
	running   atomic.Bool
	processed atomic.Uint64
	idle      atomic.Uint64
}

// NewRunner creates a runner. recorder may be nil.
func NewRunner(t *Tracker, hub *Hub, clock timeutil.Clock, cfg RunnerConfig, recorder Recorder) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Millisecond
	}
	return &Runner{
		tracker:  t,
		hub:      hub,
		clock:    clock,
		cfg:      cfg,
		recorder: recorder,
		cmds:     make(chan command),
	}
}

// Run polls the tracker once per tick interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.running.Store(true)
	defer r.running.Store(false)

	monitoring.Logf("tick loop started: interval=%s alpha=%.3f simulated=%t",
		r.cfg.TickInterval, r.tracker.Alpha(), r.tracker.Simulated())

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("tick loop stopped after %d samples", r.processed.Load())
			return ctx.Err()
		case cmd := <-r.cmds:
			cmd.reply <- cmd.fn()
		case <-ticker.C():
			r.step()
		}
	}
}

func (r *Runner) step() {
	if !r.tracker.Tick() {
		r.idle.Add(1)
		return
	}
	n := r.processed.Add(1)
	snap := r.tracker.Snapshot()
	r.hub.Publish(snap)

	if r.recorder == nil || r.cfg.RecordEvery <= 0 || n%uint64(r.cfg.RecordEvery) != 0 {
		return
	}
	if err := r.recorder.RecordSnapshot(snap); err != nil {
		monitoring.Logf("failed to record snapshot %d: %v", snap.Tick, err)
	}
}

// Processed returns the number of ticks that consumed a sample.
func (r *Runner) Processed() uint64 { return r.processed.Load() }

// Idle returns the number of ticks that found no sample ready.
func (r *Runner) Idle() uint64 { return r.idle.Load() }

// Running reports whether Run is active.
func (r *Runner) Running() bool { return r.running.Load() }

func (r *Runner) do(ctx context.Context, fn func() error) error {
	if !r.running.Load() {
		return ErrNotRunning
	}
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset resets the tracker orientation on the loop goroutine and publishes
// the zeroed snapshot.
func (r *Runner) Reset(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.tracker.ResetOrientation()
		r.hub.Publish(r.tracker.Snapshot())
		monitoring.Logf("orientation reset at tick %d", r.tracker.Ticks())
		return nil
	})
}

// Calibrate runs CalibrateBias on the loop goroutine. Ticking pauses until it
// returns. A successful calibration is handed to the Recorder.
func (r *Runner) Calibrate(ctx context.Context) (Calibration, error) {
	var c Calibration
	err := r.do(ctx, func() error {
		var err error
		c, err = r.tracker.CalibrateBias(ctx)
		if err != nil {
			return err
		}
		if r.recorder != nil {
			if err := r.recorder.RecordCalibration(c); err != nil {
				monitoring.Logf("failed to record calibration: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		return Calibration{}, err
	}
	return c, nil
}
