package main

import (
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/imu.tracker/internal/config"
	"github.com/banshee-data/imu.tracker/internal/db"
	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/serialmux"
	"github.com/banshee-data/imu.tracker/internal/tracker"
)

// syntheticSamples is the length of the built-in playback recording: 20 s at
// the nominal sample interval.
const syntheticSamples = 10000

// sampleSource is the wiring behind the tracker's source. mux and reader are
// set only for serial boards, real or synthetic.
type sampleSource struct {
	name   string
	src    tracker.Source
	mux    serialmux.SerialMuxInterface
	reader *imu.SerialReader
}

func (s *sampleSource) live() bool {
	return s.reader != nil
}

func loadRecordingFile(path string) (*imu.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return imu.LoadRecording(f)
}

// openSource picks the sample source: a stored session, a recording file or
// the synthetic recording, a synthetic board in dev mode, or the real board.
func openSource(cfg *config.TrackerConfig, replaySession string, devMode bool, database *db.DB) (*sampleSource, error) {
	switch {
	case replaySession != "":
		data, err := database.SessionRecording(replaySession)
		if err != nil {
			return nil, err
		}
		rec, err := imu.NewRecording(data)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", replaySession, err)
		}
		return &sampleSource{name: "session:" + replaySession, src: tracker.Source{Playback: rec}}, nil

	case cfg.GetSimulate():
		if path := cfg.GetRecording(); path != "" {
			rec, err := loadRecordingFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load recording: %w", err)
			}
			return &sampleSource{name: "recording:" + path, src: tracker.Source{Playback: rec}}, nil
		}
		rec, err := imu.NewSynthetic(imu.DefaultSyntheticConfig()).Record(syntheticSamples)
		if err != nil {
			return nil, err
		}
		return &sampleSource{name: "synthetic", src: tracker.Source{Playback: rec}}, nil

	case devMode:
		interval := time.Duration(cfg.GetSimulatedDT() * float64(time.Second))
		port := imu.NewSyntheticPort(imu.NewSynthetic(imu.DefaultSyntheticConfig()), interval)
		mux := serialmux.NewSerialMux(port)
		reader := imu.NewSerialReader(mux)
		return &sampleSource{name: "synthetic-serial", src: tracker.Source{Live: reader}, mux: mux, reader: reader}, nil

	default:
		path := cfg.GetSerialPort()
		mux, err := serialmux.NewRealSerialMux(path, cfg.GetSerialOptions())
		if err != nil {
			return nil, err
		}
		reader := imu.NewSerialReader(mux)
		return &sampleSource{name: "serial:" + path, src: tracker.Source{Live: reader}, mux: mux, reader: reader}, nil
	}
}
