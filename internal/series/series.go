// Package series projects sparse timestamped samples onto the fixed 24-slot
// hourly grid the dashboard charts render.
package series

import (
	"time"

	"crowd-dashboard/internal/model"
	"crowd-dashboard/internal/timeparse"
)

// MapHourly folds parallel label/value sequences into a 24-slot series.
// Slots nothing maps to stay nil, which renders as a gap rather than a zero.
// When two samples land in the same hour the later one wins; labels that
// fail to parse are dropped. Length mismatches truncate to the shorter side.
func MapHourly(labels []model.RawTimestamp, values []float64, loc *time.Location) model.BucketSeries {
	out := model.NewBucketSeries()

	n := len(labels)
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		hour, err := timeparse.HourOfDay(labels[i], loc)
		if err != nil {
			continue
		}
		out.Set(hour, values[i])
	}
	return out
}

// LiveMarker decides whether the occupancy chart shows its "LIVE" line and at
// which bucket. Shown only when the window is today's (locally) and the
// series holds at least one observation; the marker sits on the rightmost
// observed bucket, not the wall-clock hour.
func LiveMarker(window model.TimeWindow, s model.BucketSeries, loc *time.Location, now time.Time) model.LiveMarker {
	if loc == nil {
		loc = time.UTC
	}
	last := s.LastObserved()
	if last < 0 {
		return model.LiveMarker{HourIndex: -1}
	}

	start := time.UnixMilli(window.FromUTC).In(loc)
	local := now.In(loc)
	sy, sm, sd := start.Date()
	ny, nm, nd := local.Date()
	if sy != ny || sm != nm || sd != nd {
		return model.LiveMarker{HourIndex: -1}
	}
	return model.LiveMarker{Show: true, HourIndex: last}
}
