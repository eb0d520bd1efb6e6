package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/quaternion"
	"github.com/banshee-data/imu.tracker/internal/timeutil"
)

type fakeRecorder struct {
	mu           sync.Mutex
	snapshots    []Snapshot
	calibrations []Calibration
	err          error
}

func (f *fakeRecorder) RecordSnapshot(s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
	return f.err
}

func (f *fakeRecorder) RecordCalibration(c Calibration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calibrations = append(f.calibrations, c)
	return f.err
}

func (f *fakeRecorder) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots), len(f.calibrations)
}

const tickInterval = 2 * time.Millisecond

func startRunner(t *testing.T, rec *fakeRecorder, recordEvery int) (*Runner, *Hub, *timeutil.MockClock) {
	t.Helper()
	playback, err := imu.NewRecording([]float64{
		0, 0, 90, 0, 9.81, 0,
		0, 0, 90, 0, 9.81, 0,
	})
	require.NoError(t, err)

	clock := timeutil.NewMockClock(epoch)
	tr, err := New(Config{Alpha: 0.98, CalibrationSamples: 2}, Source{Playback: playback}, clock)
	require.NoError(t, err)

	hub := NewHub(100)
	var recorder Recorder
	if rec != nil {
		recorder = rec
	}
	r := NewRunner(tr, hub, clock, RunnerConfig{TickInterval: tickInterval, RecordEvery: recordEvery}, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	return r, hub, clock
}

// advance fires n ticks, waiting for each to be processed.
func advance(t *testing.T, r *Runner, clock *timeutil.MockClock, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		want := r.Processed() + 1
		clock.Advance(tickInterval)
		require.Eventually(t, func() bool { return r.Processed() >= want }, time.Second, time.Millisecond)
	}
}

func TestRunner_PublishesAndRecords(t *testing.T) {
	rec := &fakeRecorder{}
	r, hub, clock := startRunner(t, rec, 3)

	advance(t, r, clock, 7)

	latest, ok := hub.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(7), latest.Tick)
	assert.Equal(t, 7, hub.Len())
	assert.InDelta(t, 7*90*0.002, latest.FlatlandRollGyr, 1e-9)

	snaps, _ := rec.counts()
	assert.Equal(t, 2, snaps, "ticks 3 and 6 are recorded")
}

func TestRunner_RecorderErrorsDoNotStopLoop(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	r, hub, clock := startRunner(t, rec, 1)

	advance(t, r, clock, 3)
	latest, _ := hub.Latest()
	assert.Equal(t, uint64(3), latest.Tick)
}

func TestRunner_Reset(t *testing.T) {
	r, hub, clock := startRunner(t, nil, 0)
	advance(t, r, clock, 5)

	require.NoError(t, r.Reset(context.Background()))
	latest, _ := hub.Latest()
	assert.Zero(t, latest.FlatlandRollGyr)
	assert.Equal(t, quaternion.Identity(), latest.QuaternionGyr)
	assert.Equal(t, uint64(5), latest.Tick, "reset publishes without consuming a sample")
}

func TestRunner_Calibrate(t *testing.T) {
	rec := &fakeRecorder{}
	r, _, _ := startRunner(t, rec, 0)

	c, err := r.Calibrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Samples)
	assert.InDelta(t, 90, c.GyrBias.Z, 1e-12)

	_, cals := rec.counts()
	assert.Equal(t, 1, cals)
}

func TestRunner_CommandsRequireRunningLoop(t *testing.T) {
	rec, err := imu.NewRecording([]float64{0, 0, 0, 0, 1, 0})
	require.NoError(t, err)
	tr, err := New(Config{Alpha: 0.5}, Source{Playback: rec}, nil)
	require.NoError(t, err)
	r := NewRunner(tr, NewHub(1), nil, RunnerConfig{}, nil)

	assert.ErrorIs(t, r.Reset(context.Background()), ErrNotRunning)
	_, err = r.Calibrate(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, r.Running())
}
