package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RawTimestamp carries a backend timestamp exactly as received. The aggregate
// endpoints emit ISO-8601 strings, the entry/exit endpoint has been seen
// emitting both "DD/MM/YYYY HH:MM:SS" strings and epoch milliseconds; the
// timeparse package reconciles all three.
type RawTimestamp struct {
	Text   string
	Epoch  int64
	IsText bool
}

func (r *RawTimestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = RawTimestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawTimestamp{Text: s, IsText: true}
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*r = RawTimestamp{Epoch: int64(n)}
	return nil
}

func (r RawTimestamp) MarshalJSON() ([]byte, error) {
	if r.IsText {
		return json.Marshal(r.Text)
	}
	return json.Marshal(r.Epoch)
}

func (r RawTimestamp) IsZero() bool {
	return !r.IsText && r.Epoch == 0
}

// TextTimestamp builds a string-typed RawTimestamp.
func TextTimestamp(s string) RawTimestamp {
	return RawTimestamp{Text: s, IsText: true}
}

// EpochTimestamp builds an epoch-millisecond RawTimestamp.
func EpochTimestamp(ms int64) RawTimestamp {
	return RawTimestamp{Epoch: ms}
}

// Upstream aggregate response shapes. Each arrives independently and any of
// them may be absent for a cycle when its call failed.

type DwellResponse struct {
	AvgDwellMinutes float64 `json:"avgDwellMinutes"`
}

type FootfallResponse struct {
	Footfall int64 `json:"footfall"`
}

type OccupancyBucket struct {
	Local RawTimestamp `json:"local"`
	Avg   float64      `json:"avg"`
}

type OccupancyResponse struct {
	Buckets []OccupancyBucket `json:"buckets"`
}

type DemographicsBucket struct {
	Local  RawTimestamp `json:"local"`
	Male   float64      `json:"male"`
	Female float64      `json:"female"`
}

type DemographicsResponse struct {
	Buckets []DemographicsBucket `json:"buckets"`
}

// AggregateResults bundles the four aggregate responses for one window. A nil
// member means that upstream call failed; the metrics engine degrades the
// corresponding field instead of failing the snapshot.
type AggregateResults struct {
	Dwell        *DwellResponse
	Footfall     *FootfallResponse
	Occupancy    *OccupancyResponse
	Demographics *DemographicsResponse
}

// MetricSnapshot is the headline metric set for one fetch cycle. Change
// fields are signed whole-percent deltas against the previous 24h window and
// are defined as 0 whenever the previous value is zero or absent.
type MetricSnapshot struct {
	LiveOccupancy   int64 `json:"liveOccupancy"`
	TodayFootfall   int64 `json:"todayFootfall"`
	AvgDwellSeconds int64 `json:"avgDwellTime"`
	OccupancyChange int64 `json:"occupancyChange"`
	FootfallChange  int64 `json:"footfallChange"`
	DwellTimeChange int64 `json:"dwellTimeChange"`
}

// DemographicsSummary is the pie value per gender: the arithmetic mean of
// that gender's per-bucket series.
type DemographicsSummary struct {
	Male   float64 `json:"male"`
	Female float64 `json:"female"`
}

type DemographicsSeries struct {
	Male   BucketSeries `json:"male"`
	Female BucketSeries `json:"female"`
}

// DashboardOverview is everything one dashboard render needs, computed
// wholesale per fetch cycle and replaced, never patched field-by-field.
type DashboardOverview struct {
	SiteID       string              `json:"siteId"`
	Window       TimeWindow          `json:"window"`
	Metrics      MetricSnapshot      `json:"metrics"`
	Occupancy    BucketSeries        `json:"occupancy"`
	Demographics DemographicsSummary `json:"demographics"`
	GenderSeries DemographicsSeries  `json:"genderSeries"`
	Live         LiveMarker          `json:"live"`
}

// EntryExitRecord is one person's visit as reported by the entry/exit query.
type EntryExitRecord struct {
	PersonID     string   `json:"personId"`
	PersonName   string   `json:"personName"`
	Gender       string   `json:"gender"`
	EntryUTC     int64    `json:"entryUtc"`
	ExitUTC      *int64   `json:"exitUtc,omitempty"`
	DwellMinutes *float64 `json:"dwellMinutes,omitempty"`
	ZoneID       string   `json:"zoneId,omitempty"`
	ZoneName     string   `json:"zoneName,omitempty"`
	Severity     string   `json:"severity,omitempty"`
}

type EntryExitResponse struct {
	Records    []EntryExitRecord `json:"records"`
	TotalPages int               `json:"totalPages"`
}
