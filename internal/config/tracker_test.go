package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/imu.tracker/internal/serialmux"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg, err := LoadTrackerConfig(filepath.Join("..", "..", DefaultConfigPath))
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultTrackerConfig(), cfg); diff != "" {
		t.Errorf("defaults file drifted from DefaultTrackerConfig (-want +got):\n%s", diff)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyTrackerConfig()

	assert.Equal(t, 0.9, cfg.GetAlpha())
	assert.False(t, cfg.GetSimulate())
	assert.Equal(t, "", cfg.GetRecording())
	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialPort())
	assert.Equal(t, serialmux.DefaultBaudRate, cfg.GetSerialOptions().BaudRate)
	assert.False(t, cfg.GetCalibrateOnStart())
	assert.Equal(t, 1000, cfg.GetCalibrationSamples())
	assert.Equal(t, 10*time.Second, cfg.GetCalibrationTimeout())
	assert.Equal(t, 2*time.Millisecond, cfg.GetTickInterval())
	assert.Equal(t, 0.002, cfg.GetSimulatedDT())
	assert.Equal(t, 2000, cfg.GetHistorySize())
	assert.Equal(t, 50, cfg.GetRecordEvery())
	assert.Equal(t, "imu_tracker.db", cfg.GetDBPath())
	assert.Equal(t, ":8080", cfg.GetListen())

	_, ok := cfg.GetGyroBias()
	assert.False(t, ok)
}

func TestLoadTrackerConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
  "alpha": 0.75,
  "simulate": true,
  "calibration_timeout": "250ms",
  "gyro_bias": [0.23206, -0.22437, 0.12708]
}`)

	cfg, err := LoadTrackerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.GetAlpha())
	assert.True(t, cfg.GetSimulate())
	assert.Equal(t, 250*time.Millisecond, cfg.GetCalibrationTimeout())
	assert.Equal(t, 1000, cfg.GetCalibrationSamples(), "unset fields keep defaults")

	bias, ok := cfg.GetGyroBias()
	require.True(t, ok)
	assert.Equal(t, [3]float64{0.23206, -0.22437, 0.12708}, bias)
}

func TestLoadTrackerConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{"alpha":`, "failed to parse"},
		{"alpha too high", "cfg.json", `{"alpha": 1.5}`, "alpha must be between 0 and 1"},
		{"alpha negative", "cfg.json", `{"alpha": -0.1}`, "alpha must be between 0 and 1"},
		{"zero samples", "cfg.json", `{"calibration_samples": 0}`, "calibration_samples must be positive"},
		{"bad timeout", "cfg.json", `{"calibration_timeout": "soon"}`, "invalid calibration_timeout"},
		{"negative tick", "cfg.json", `{"tick_interval": "-1ms"}`, "tick_interval must be positive"},
		{"zero dt", "cfg.json", `{"simulated_dt": 0}`, "simulated_dt must be positive"},
		{"short bias", "cfg.json", `{"gyro_bias": [1, 2]}`, "gyro_bias must have 3 components"},
		{"bad parity", "cfg.json", `{"serial": {"parity": "X"}}`, "invalid serial options"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTrackerConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should contain %q", err, tt.wantErr)
		})
	}
}

func TestLoadTrackerConfig_MissingFile(t *testing.T) {
	_, err := LoadTrackerConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetDuration_FallsBackOnGarbage(t *testing.T) {
	cfg := &TrackerConfig{TickInterval: ptrString("fast")}
	assert.Equal(t, 2*time.Millisecond, cfg.GetTickInterval())
}
