package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/oakline-data/activity.report/internal/har"
)

// handleReport renders an HTML activity report for one track using
// go-echarts: activity share bars plus the normalized pose-height and
// speed series over the retained window. Debugging and review aid, not
// part of the machine API.
//
// Query params:
//   - track_id (required)
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := trackIDParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	sum, err := s.engine.Summary(id)
	var points []har.HistoryPoint
	if err == nil {
		points, err = s.engine.History(id)
	}
	s.mu.Unlock()

	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	page := components.NewPage()
	page.AddCharts(activityShareChart(sum), featureSeriesChart(points))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render report: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func activityShareChart(sum har.Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Activity Report"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Track %d activity share", sum.TrackID),
			Subtitle: fmt.Sprintf("identity=%s activity=%s frames=%d duration=%.1fs falls=%v",
				sum.Identity, sum.CurrentActivity, sum.TotalFrames, sum.DurationSeconds, sum.FallDetected),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "% of frames", Max: 100}),
	)

	bar.SetXAxis([]string{"stationary", "moving", "sitting"}).
		AddSeries("share", []opts.BarData{
			{Value: sum.PercentStationary},
			{Value: sum.PercentMoving},
			{Value: sum.PercentSitting},
		})
	return bar
}

func featureSeriesChart(points []har.HistoryPoint) *charts.Line {
	timestamps := make([]string, 0, len(points))
	pose := make([]opts.LineData, 0, len(points))
	speed := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		timestamps = append(timestamps, fmt.Sprintf("%.2f", p.Timestamp))
		// Gaps stay gaps: echarts skips nil values, which is exactly
		// how an unavailable feature should read.
		if p.PoseHeightRatio != nil {
			pose = append(pose, opts.LineData{Value: *p.PoseHeightRatio})
		} else {
			pose = append(pose, opts.LineData{Value: nil})
		}
		if p.Speed != nil {
			speed = append(speed, opts.LineData{Value: *p.Speed})
		} else {
			speed = append(speed, opts.LineData{Value: nil})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Normalized features over retained window"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
	)
	line.SetXAxis(timestamps).
		AddSeries("pose_height_ratio", pose).
		AddSeries("speed", speed)
	return line
}
