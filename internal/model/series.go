package model

// HoursPerDay is the fixed slot count of a daily bucket series.
const HoursPerDay = 24

// BucketSeries holds one value per hour of day. A nil slot means "no sample
// observed for that hour", which is distinct from an explicit zero.
// Marshals as a 24-element JSON array with null gaps.
type BucketSeries []*float64

func NewBucketSeries() BucketSeries {
	return make(BucketSeries, HoursPerDay)
}

// Set stores a value at the given hour, ignoring out-of-range indexes.
func (s BucketSeries) Set(hour int, value float64) {
	if hour < 0 || hour >= len(s) {
		return
	}
	v := value
	s[hour] = &v
}

// LastObserved returns the highest-indexed non-nil slot, or -1 when the
// series holds no data at all.
func (s BucketSeries) LastObserved() int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != nil {
			return i
		}
	}
	return -1
}

// LiveMarker tells the chart whether and where to draw the "LIVE" line. The
// index tracks the last observed data point, not the wall clock.
type LiveMarker struct {
	Show      bool `json:"show"`
	HourIndex int  `json:"hourIndex"`
}
