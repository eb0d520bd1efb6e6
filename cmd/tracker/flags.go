package main

import (
	"flag"
	"fmt"

	"github.com/banshee-data/imu.tracker/internal/config"
)

// cliFlags are the command line overrides. Only flags given explicitly
// replace values from the config file.
type cliFlags struct {
	configPath    *string
	listen        *string
	port          *string
	simulate      *bool
	recording     *string
	replaySession *string
	dbPath        *string
	alpha         *float64
	calibrate     *bool
	recordEvery   *int
	devMode       *bool
	verbose       *bool
	version       *bool
}

func newFlags(fs *flag.FlagSet) *cliFlags {
	return &cliFlags{
		configPath:    fs.String("config", "", "Path to a JSON tracker config (defaults apply when empty)"),
		listen:        fs.String("listen", ":8080", "Listen address"),
		port:          fs.String("port", "/dev/ttyACM0", "Serial port of the IMU board (ignored in dev and simulate modes)"),
		simulate:      fs.Bool("simulate", false, "Play back a recording instead of reading hardware"),
		recording:     fs.String("recording", "", "Recording file for -simulate (synthetic when empty)"),
		replaySession: fs.String("replay-session", "", "Play back the samples of a stored session id"),
		dbPath:        fs.String("db", "imu_tracker.db", "SQLite database path"),
		alpha:         fs.Float64("alpha", 0.9, "Complementary filter weight of the gyro path, in [0,1]"),
		calibrate:     fs.Bool("calibrate", false, "Calibrate gyro bias before tracking"),
		recordEvery:   fs.Int("record-every", 50, "Persist every Nth estimate (0 disables)"),
		devMode:       fs.Bool("dev", false, "Run against a synthetic serial board"),
		verbose:       fs.Bool("verbose", false, "Log per-sample diagnostics"),
		version:       fs.Bool("version", false, "Print the build version and exit"),
	}
}

// loadConfig reads the config file named by -config, then applies any flags
// set on fs.
func (f *cliFlags) loadConfig(fs *flag.FlagSet) (*config.TrackerConfig, error) {
	cfg := config.EmptyTrackerConfig()
	if *f.configPath != "" {
		var err error
		if cfg, err = config.LoadTrackerConfig(*f.configPath); err != nil {
			return nil, err
		}
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (f *cliFlags) apply(fs *flag.FlagSet, cfg *config.TrackerConfig) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "listen":
			cfg.Listen = f.listen
		case "port":
			cfg.SerialPort = f.port
		case "simulate":
			cfg.Simulate = f.simulate
		case "recording":
			cfg.Recording = f.recording
		case "db":
			cfg.DBPath = f.dbPath
		case "alpha":
			cfg.Alpha = f.alpha
		case "calibrate":
			cfg.CalibrateOnStart = f.calibrate
		case "record-every":
			cfg.RecordEvery = f.recordEvery
		}
	})
	// a recording file implies playback
	if *f.recording != "" {
		simulate := true
		cfg.Simulate = &simulate
	}
}
