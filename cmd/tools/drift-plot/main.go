// Command drift-plot compares gyro-only and complementary orientation
// estimates over a recording and writes the comparison as PNG plots.
//
// Samples come from one of: a recording file replayed through a simulated
// tracker, a stored session replayed the same way, or the live history of a
// running tracker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/imu.tracker/internal/db"
	"github.com/banshee-data/imu.tracker/internal/fsutil"
	"github.com/banshee-data/imu.tracker/internal/httputil"
	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/plotting"
	"github.com/banshee-data/imu.tracker/internal/tracker"
)

// Config holds the drift-plot options.
type Config struct {
	Recording string
	DBPath    string
	Session   string
	URL       string
	Alpha     float64
	Ticks     int
	History   int
	OutputDir string
	Prefix    string
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Recording, "recording", "", "Recording file to replay")
	flag.StringVar(&cfg.DBPath, "db", "imu_tracker.db", "SQLite database holding -session")
	flag.StringVar(&cfg.Session, "session", "", "Stored session id to replay")
	flag.StringVar(&cfg.URL, "url", "", "Base URL of a running tracker, e.g. http://localhost:8080")
	flag.Float64Var(&cfg.Alpha, "alpha", 0.98, "Complementary filter weight used for replays")
	flag.IntVar(&cfg.Ticks, "ticks", 0, "Ticks to replay (0 replays the recording once)")
	flag.IntVar(&cfg.History, "history", 2000, "Snapshots to fetch from -url")
	flag.StringVar(&cfg.OutputDir, "out", "plots", "Output directory")
	flag.StringVar(&cfg.Prefix, "prefix", "", "Output file name prefix (derived from the input when empty)")
	flag.Parse()
	return cfg
}

// outputPrefix returns the file name prefix for the plots of cfg.
func (cfg Config) outputPrefix() string {
	if cfg.Prefix != "" {
		return fsutil.SanitizeFilename(cfg.Prefix)
	}
	return fsutil.SourcePrefix(cfg.Recording, cfg.Session, cfg.URL)
}

var errNoInput = errors.New("one of -recording, -session or -url is required")

// loadSnapshots produces the snapshots to plot from whichever input cfg names.
func loadSnapshots(ctx context.Context, cfg Config, client httputil.HTTPClient) ([]tracker.Snapshot, error) {
	switch {
	case cfg.Recording != "":
		f, err := os.Open(cfg.Recording)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rec, err := imu.LoadRecording(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Recording, err)
		}
		return plotting.Replay(rec, cfg.Alpha, cfg.Ticks)

	case cfg.Session != "":
		database, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		defer database.Close()
		data, err := database.SessionRecording(cfg.Session)
		if err != nil {
			return nil, err
		}
		rec, err := imu.NewRecording(data)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", cfg.Session, err)
		}
		return plotting.Replay(rec, cfg.Alpha, cfg.Ticks)

	case cfg.URL != "":
		var snaps []tracker.Snapshot
		url := fmt.Sprintf("%s/api/history?n=%d", strings.TrimRight(cfg.URL, "/"), cfg.History)
		if err := httputil.GetJSON(ctx, client, url, &snaps); err != nil {
			return nil, err
		}
		return snaps, nil
	}
	return nil, errNoInput
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snaps, err := loadSnapshots(ctx, cfg, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		log.Fatalf("Failed to load samples: %v", err)
	}

	files, err := plotting.SaveDriftPlots(snaps, cfg.OutputDir, cfg.outputPrefix())
	if err != nil {
		log.Fatalf("Failed to write plots: %v", err)
	}

	last := snaps[len(snaps)-1]
	log.Printf("%d snapshots: flatland roll gyro=%.3f comp=%.3f deg, quaternion angle gyro=%.3f comp=%.3f deg",
		len(snaps), last.FlatlandRollGyr, last.FlatlandRollComp,
		last.QuaternionGyr.Angle(), last.QuaternionComp.Angle())
	for _, f := range files {
		log.Printf("wrote %s", f)
	}
}
