package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/imu.tracker/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical tracker defaults file.
const DefaultConfigPath = "config/tracker.defaults.json"

const (
	defaultAlpha              = 0.9
	defaultSerialPort         = "/dev/ttyACM0"
	defaultCalibrationSamples = 1000
	defaultCalibrationTimeout = 10 * time.Second
	defaultTickInterval       = 2 * time.Millisecond
	defaultSimulatedDT        = 0.002
	defaultRecordEvery        = 50
	defaultHistorySize        = 2000
	defaultDBPath             = "imu_tracker.db"
	defaultListen             = ":8080"
)

// TrackerConfig is the root configuration for the tracker daemon. Every field
// is a pointer so that a partial JSON file only overrides what it names; the
// Get* accessors supply defaults for the rest.
type TrackerConfig struct {
	// Filter
	Alpha *float64 `json:"alpha,omitempty"`

	// Sample source
	Simulate   *bool                  `json:"simulate,omitempty"`
	Recording  *string                `json:"recording,omitempty"` // interleaved gyr/acc text file
	SerialPort *string                `json:"serial_port,omitempty"`
	Serial     *serialmux.PortOptions `json:"serial,omitempty"`

	// Calibration
	CalibrateOnStart   *bool      `json:"calibrate_on_start,omitempty"`
	CalibrationSamples *int       `json:"calibration_samples,omitempty"`
	CalibrationTimeout *string    `json:"calibration_timeout,omitempty"` // duration string like "10s"
	GyroBias           *[]float64 `json:"gyro_bias,omitempty"`           // [x, y, z] deg/s

	// Loop
	TickInterval *string  `json:"tick_interval,omitempty"` // duration string like "2ms"
	SimulatedDT  *float64 `json:"simulated_dt,omitempty"`  // seconds
	HistorySize  *int     `json:"history_size,omitempty"`

	// Persistence and serving
	RecordEvery *int    `json:"record_every,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
	Listen      *string `json:"listen,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrackerConfig returns a TrackerConfig with all fields unset.
func EmptyTrackerConfig() *TrackerConfig {
	return &TrackerConfig{}
}

// DefaultTrackerConfig returns a TrackerConfig with every field populated from
// the built-in defaults.
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		Alpha:              ptrFloat64(defaultAlpha),
		Simulate:           ptrBool(false),
		Recording:          ptrString(""),
		SerialPort:         ptrString(defaultSerialPort),
		Serial:             &serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"},
		CalibrateOnStart:   ptrBool(false),
		CalibrationSamples: ptrInt(defaultCalibrationSamples),
		CalibrationTimeout: ptrString(defaultCalibrationTimeout.String()),
		TickInterval:       ptrString(defaultTickInterval.String()),
		SimulatedDT:        ptrFloat64(defaultSimulatedDT),
		HistorySize:        ptrInt(defaultHistorySize),
		RecordEvery:        ptrInt(defaultRecordEvery),
		DBPath:             ptrString(defaultDBPath),
		Listen:             ptrString(defaultListen),
	}
}

// LoadTrackerConfig loads a TrackerConfig from a JSON file. The file must have
// a .json extension and be under 1MB. Fields omitted from the file fall back
// to their defaults through the Get* accessors.
func LoadTrackerConfig(path string) (*TrackerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TrackerConfig) Validate() error {
	if c.Alpha != nil {
		if *c.Alpha < 0 || *c.Alpha > 1 {
			return fmt.Errorf("alpha must be between 0 and 1, got %f", *c.Alpha)
		}
	}

	if c.CalibrationSamples != nil && *c.CalibrationSamples <= 0 {
		return fmt.Errorf("calibration_samples must be positive, got %d", *c.CalibrationSamples)
	}

	for name, v := range map[string]*string{
		"calibration_timeout": c.CalibrationTimeout,
		"tick_interval":       c.TickInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.SimulatedDT != nil && *c.SimulatedDT <= 0 {
		return fmt.Errorf("simulated_dt must be positive, got %f", *c.SimulatedDT)
	}

	if c.GyroBias != nil && len(*c.GyroBias) != 3 {
		return fmt.Errorf("gyro_bias must have 3 components, got %d", len(*c.GyroBias))
	}

	if c.RecordEvery != nil && *c.RecordEvery < 0 {
		return fmt.Errorf("record_every must be non-negative, got %d", *c.RecordEvery)
	}

	if c.HistorySize != nil && *c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", *c.HistorySize)
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}

	return nil
}

// GetAlpha returns the complementary filter blend coefficient or the default.
func (c *TrackerConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return defaultAlpha
	}
	return *c.Alpha
}

// GetSimulate reports whether samples come from a recording instead of hardware.
func (c *TrackerConfig) GetSimulate() bool {
	if c.Simulate == nil {
		return false
	}
	return *c.Simulate
}

// GetRecording returns the recording file path, empty for the built-in one.
func (c *TrackerConfig) GetRecording() string {
	if c.Recording == nil {
		return ""
	}
	return *c.Recording
}

// GetSerialPort returns the serial device path or the default.
func (c *TrackerConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return defaultSerialPort
	}
	return *c.SerialPort
}

// GetSerialOptions returns the serial port options, defaulting to 115200 8N1.
func (c *TrackerConfig) GetSerialOptions() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate}
	}
	return *c.Serial
}

// GetCalibrateOnStart reports whether bias calibration runs before tracking.
func (c *TrackerConfig) GetCalibrateOnStart() bool {
	if c.CalibrateOnStart == nil {
		return false
	}
	return *c.CalibrateOnStart
}

// GetCalibrationSamples returns the calibration sample quota or the default.
func (c *TrackerConfig) GetCalibrationSamples() int {
	if c.CalibrationSamples == nil {
		return defaultCalibrationSamples
	}
	return *c.CalibrationSamples
}

// GetCalibrationTimeout parses and returns the calibration timeout.
func (c *TrackerConfig) GetCalibrationTimeout() time.Duration {
	return parseDurationOr(c.CalibrationTimeout, defaultCalibrationTimeout)
}

// GetTickInterval parses and returns the tick loop interval.
func (c *TrackerConfig) GetTickInterval() time.Duration {
	return parseDurationOr(c.TickInterval, defaultTickInterval)
}

// GetSimulatedDT returns the fixed playback time step in seconds.
func (c *TrackerConfig) GetSimulatedDT() float64 {
	if c.SimulatedDT == nil {
		return defaultSimulatedDT
	}
	return *c.SimulatedDT
}

// GetGyroBias returns the configured gyro bias and whether one was set.
func (c *TrackerConfig) GetGyroBias() ([3]float64, bool) {
	var bias [3]float64
	if c.GyroBias == nil || len(*c.GyroBias) != 3 {
		return bias, false
	}
	copy(bias[:], *c.GyroBias)
	return bias, true
}

// GetHistorySize returns the telemetry history ring size.
func (c *TrackerConfig) GetHistorySize() int {
	if c.HistorySize == nil {
		return defaultHistorySize
	}
	return *c.HistorySize
}

// GetRecordEvery returns how many processed ticks pass between persisted
// estimates. Zero disables recording.
func (c *TrackerConfig) GetRecordEvery() int {
	if c.RecordEvery == nil {
		return defaultRecordEvery
	}
	return *c.RecordEvery
}

// GetDBPath returns the SQLite database path.
func (c *TrackerConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return defaultDBPath
	}
	return *c.DBPath
}

// GetListen returns the HTTP listen address.
func (c *TrackerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return defaultListen
	}
	return *c.Listen
}

func parseDurationOr(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}
