// Package plotting renders offline drift comparisons of the gyro-only and
// complementary estimates.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/imu.tracker/internal/imu"
	"github.com/banshee-data/imu.tracker/internal/tracker"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no snapshots to plot")

var (
	gyroColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	accColor  = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	compColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// Replay runs rec through a simulated tracker with the given alpha and
// returns one snapshot per sample. ticks <= 0 replays the recording once.
func Replay(rec *imu.Recording, alpha float64, ticks int) ([]tracker.Snapshot, error) {
	t, err := tracker.New(tracker.Config{Alpha: alpha}, tracker.Source{Playback: rec}, nil)
	if err != nil {
		return nil, err
	}
	if ticks <= 0 {
		ticks = rec.Len()
	}
	snaps := make([]tracker.Snapshot, 0, ticks)
	for i := 0; i < ticks; i++ {
		t.Tick()
		snaps = append(snaps, t.Snapshot())
	}
	return snaps, nil
}

// Series are the plot lines extracted from a run, keyed by elapsed seconds.
type Series struct {
	RollGyr, RollAcc, RollComp plotter.XYs
	// TiltGyr and TiltComp are the rotation angles of the quaternion estimates
	// away from the starting orientation.
	TiltGyr, TiltComp plotter.XYs
}

// Extract builds plot series from snapshots, accumulating dt for the x axis.
func Extract(snaps []tracker.Snapshot) Series {
	var s Series
	elapsed := 0.0
	for _, snap := range snaps {
		elapsed += snap.DeltaT
		s.RollGyr = append(s.RollGyr, plotter.XY{X: elapsed, Y: snap.FlatlandRollGyr})
		s.RollAcc = append(s.RollAcc, plotter.XY{X: elapsed, Y: snap.FlatlandRollAcc})
		s.RollComp = append(s.RollComp, plotter.XY{X: elapsed, Y: snap.FlatlandRollComp})
		s.TiltGyr = append(s.TiltGyr, plotter.XY{X: elapsed, Y: snap.QuaternionGyr.Angle()})
		s.TiltComp = append(s.TiltComp, plotter.XY{X: elapsed, Y: snap.QuaternionComp.Angle()})
	}
	return s
}

type line struct {
	label string
	xys   plotter.XYs
	color color.Color
}

func newPlot(title, ylabel string, lines []line) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = ylabel

	for _, l := range lines {
		pl, err := plotter.NewLine(l.xys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.label, err)
		}
		pl.Color = l.color
		pl.Width = vg.Points(1)
		p.Add(pl)
		p.Legend.Add(l.label, pl)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

// SaveDriftPlots writes roll and tilt comparison PNGs into outDir, named
// with prefix, and returns the files written.
func SaveDriftPlots(snaps []tracker.Snapshot, outDir, prefix string) ([]string, error) {
	if len(snaps) == 0 {
		return nil, ErrNoData
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	s := Extract(snaps)
	alpha := snaps[len(snaps)-1].Alpha

	roll, err := newPlot(fmt.Sprintf("Flatland roll (alpha=%.3f)", alpha), "Roll (deg)", []line{
		{"gyro", s.RollGyr, gyroColor},
		{"accelerometer", s.RollAcc, accColor},
		{"complementary", s.RollComp, compColor},
	})
	if err != nil {
		return nil, err
	}
	tilt, err := newPlot(fmt.Sprintf("Quaternion rotation from start (alpha=%.3f)", alpha), "Angle (deg)", []line{
		{"gyro", s.TiltGyr, gyroColor},
		{"complementary", s.TiltComp, compColor},
	})
	if err != nil {
		return nil, err
	}

	var written []string
	for _, out := range []struct {
		name string
		p    *plot.Plot
	}{{"roll", roll}, {"tilt", tilt}} {
		file := filepath.Join(outDir, fmt.Sprintf("%s_%s.png", prefix, out.name))
		if err := out.p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return written, fmt.Errorf("failed to save %s plot: %w", out.name, err)
		}
		written = append(written, file)
	}
	return written, nil
}
