package plotting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/monitoring"
	"github.com/banshee-data/imu.tracker/internal/tracker"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// biasedRecording is a stationary, level device with a residual z gyro rate.
func biasedRecording(t *testing.T) *imu.Recording {
	t.Helper()
	rec, err := imu.NewRecording([]float64{0, 0, 1.0, 0, 9.81, 0})
	require.NoError(t, err)
	return rec
}

func TestReplay_GyroDriftsCompHolds(t *testing.T) {
	snaps, err := Replay(biasedRecording(t), 0.98, 5000)
	require.NoError(t, err)
	require.Len(t, snaps, 5000)

	last := snaps[len(snaps)-1]
	assert.Equal(t, uint64(5000), last.Tick)
	// 10 s at 1 deg/s
	assert.InDelta(t, 10.0, last.FlatlandRollGyr, 1e-6)
	assert.Less(t, last.FlatlandRollComp, 0.2)
	assert.Greater(t, last.QuaternionGyr.Angle(), 9.0)
	assert.Less(t, last.QuaternionComp.Angle(), 0.2)
}

func TestReplay_DefaultsToRecordingLength(t *testing.T) {
	rec, err := imu.NewRecording([]float64{
		0, 0, 1, 0, 9.81, 0,
		0, 0, 2, 0, 9.81, 0,
		0, 0, 3, 0, 9.81, 0,
	})
	require.NoError(t, err)
	snaps, err := Replay(rec, 0.5, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 3)

	_, err = Replay(rec, 2, 0)
	assert.ErrorIs(t, err, tracker.ErrInvalidAlpha)
}

func TestExtract_ElapsedAxis(t *testing.T) {
	snaps, err := Replay(biasedRecording(t), 0.9, 4)
	require.NoError(t, err)

	s := Extract(snaps)
	require.Len(t, s.RollGyr, 4)
	assert.InDelta(t, 0.002, s.RollGyr[0].X, 1e-12)
	assert.InDelta(t, 0.008, s.RollGyr[3].X, 1e-12)
	assert.InDelta(t, 0.008, s.RollGyr[3].Y, 1e-12)
	assert.Len(t, s.TiltComp, 4)
}

func TestSaveDriftPlots(t *testing.T) {
	snaps, err := Replay(biasedRecording(t), 0.98, 500)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "plots")
	files, err := SaveDriftPlots(snaps, dir, "bias")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "bias_roll.png"),
		filepath.Join(dir, "bias_tilt.png"),
	}, files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), f)
	}
}

func TestSaveDriftPlots_Empty(t *testing.T) {
	_, err := SaveDriftPlots(nil, t.TempDir(), "x")
	assert.ErrorIs(t, err, ErrNoData)
}
