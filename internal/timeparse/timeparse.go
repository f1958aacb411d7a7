// Package timeparse reconciles the timestamp formats the upstream platform
// emits. The aggregate endpoints and the entry/exit endpoint disagree on
// representation, so this is the single point where all of them become a
// canonical instant.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"crowd-dashboard/internal/model"
)

var ErrUnparsable = errors.New("unparsable timestamp")

const slashLayout = "02/01/2006 15:04:05"

// Known zoneless layouts, tried in order. Zoneless strings are interpreted in
// the caller's location since the backend labels them "local".
var localLayouts = []string{
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Instant parses a raw backend timestamp into an instant, using loc for
// representations that carry no zone of their own. Failure means the caller
// must treat the sample as absent, never abort the series.
func Instant(raw model.RawTimestamp, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if !raw.IsText {
		if raw.Epoch == 0 {
			return time.Time{}, fmt.Errorf("%w: empty", ErrUnparsable)
		}
		return time.UnixMilli(raw.Epoch).In(loc), nil
	}
	return parseText(raw.Text, loc)
}

func parseText(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparsable)
	}

	// "DD/MM/YYYY HH:MM:SS", the entry feed's day-first form.
	if strings.Contains(s, "/") {
		if t, err := time.ParseInLocation(slashLayout, s, loc); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
}

// HourOfDay is Instant reduced to the local hour bucket index.
func HourOfDay(raw model.RawTimestamp, loc *time.Location) (int, error) {
	t, err := Instant(raw, loc)
	if err != nil {
		return 0, err
	}
	return t.Hour(), nil
}
