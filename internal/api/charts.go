package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/imu.tracker/internal/httputil"
	"github.com/banshee-data/imu.tracker/internal/tracker"
)

// rollSeries splits a history into the x axis and the three flatland roll
// estimates.
func rollSeries(history []tracker.Snapshot) (x []uint64, gyr, acc, comp []opts.LineData) {
	x = make([]uint64, len(history))
	gyr = make([]opts.LineData, len(history))
	acc = make([]opts.LineData, len(history))
	comp = make([]opts.LineData, len(history))
	for i, s := range history {
		x[i] = s.Tick
		gyr[i] = opts.LineData{Value: s.FlatlandRollGyr}
		acc[i] = opts.LineData{Value: s.FlatlandRollAcc}
		comp[i] = opts.LineData{Value: s.FlatlandRollComp}
	}
	return x, gyr, acc, comp
}

// rollChart renders the flatland roll history as an HTML line chart.
func (s *Server) rollChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	n, err := httputil.QueryInt(r, "n", defaultHistory, s.hub.Cap())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	history := s.hub.History(n)
	x, gyr, acc, comp := rollSeries(history)

	subtitle := "no samples yet"
	if len(history) > 0 {
		last := history[len(history)-1]
		subtitle = fmt.Sprintf("ticks %d-%d alpha=%.3f", history[0].Tick, last.Tick, last.Alpha)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "IMU Roll", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Flatland roll", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "roll (deg)", NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x).
		AddSeries("gyro", gyr).
		AddSeries("accelerometer", acc).
		AddSeries("complementary", comp).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
