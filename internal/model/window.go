package model

import "time"

const dayMillis = 24 * 60 * 60 * 1000

// TimeWindow is a [FromUTC, ToUTC) range in epoch milliseconds. It scopes
// every aggregate query sent upstream.
type TimeWindow struct {
	FromUTC int64 `json:"fromUtc"`
	ToUTC   int64 `json:"toUtc"`
}

// Previous shifts the window back exactly 24 hours of real time. The length
// is preserved as-is rather than recomputing a calendar day, so offset
// anomalies in the source timezone cannot change the comparison span.
func (w TimeWindow) Previous() TimeWindow {
	return TimeWindow{
		FromUTC: w.FromUTC - dayMillis,
		ToUTC:   w.ToUTC - dayMillis,
	}
}

func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.ToUTC-w.FromUTC) * time.Millisecond
}

func (w TimeWindow) Contains(ts int64) bool {
	return ts >= w.FromUTC && ts < w.ToUTC
}
