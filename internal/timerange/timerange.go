// Package timerange turns a calendar date into an unambiguous UTC
// millisecond window for "that day" at a given site.
package timerange

import (
	"time"

	"crowd-dashboard/internal/model"
)

const dayMillis = 24*60*60*1000 - 1 // 23:59:59.999 past midnight

// Resolver computes day windows in one location. Build one per site so each
// site's day boundary follows its own timezone rather than a process-wide
// constant.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, now: time.Now}
}

// ForSite resolves the site's IANA timezone name, falling back to a fixed
// offset when the name is missing or unknown in the zone database.
func ForSite(site *model.Site, fallbackOffsetMinutes int) *Resolver {
	if site != nil && site.Timezone != "" {
		if loc, err := time.LoadLocation(site.Timezone); err == nil {
			return New(loc)
		}
	}
	return New(time.FixedZone("fixed", fallbackOffsetMinutes*60))
}

// WithClock overrides the current-instant source. Tests use it to pin "now".
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// ResolveDay maps t's calendar date to its [FromUTC, ToUTC) window. For a
// past day the window is a fixed 24h span; for the current day ToUTC is
// clipped to now, so "today" is a half-open growing window.
func (r *Resolver) ResolveDay(t time.Time) model.TimeWindow {
	local := t.In(r.loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, r.loc)

	from := start.UnixMilli()
	to := from + dayMillis
	if nowMs := r.now().UnixMilli(); nowMs < to {
		to = nowMs
	}
	if to < from {
		// Dates in the future have not started yet; keep the window valid.
		to = from
	}
	return model.TimeWindow{FromUTC: from, ToUTC: to}
}

// Today resolves the current date's window.
func (r *Resolver) Today() model.TimeWindow {
	return r.ResolveDay(r.now())
}

// SameLocalDay reports whether the epoch-ms instant falls on the current
// local calendar date.
func (r *Resolver) SameLocalDay(ms int64) bool {
	a := time.UnixMilli(ms).In(r.loc)
	b := r.now().In(r.loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
