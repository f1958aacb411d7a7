// Package alerts maps raw entry/exit records into the severity-classified,
// time-ordered feed the dashboard sidebar shows.
package alerts

import (
	"sort"
	"strings"
	"time"

	"crowd-dashboard/internal/model"
)

// Derive filters, classifies and orders entry records. Records without an
// entry instant are dropped; malformed input collections degrade to an empty
// feed. Output is sorted most-recent-first; ties keep their input order.
func Derive(records []model.EntryExitRecord, site *model.Site, loc *time.Location) []model.AlertRecord {
	if loc == nil {
		loc = time.UTC
	}

	out := make([]model.AlertRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		if rec.EntryUTC == 0 {
			continue
		}

		zone := rec.ZoneName
		if zone == "" {
			zone = "Unknown Zone"
		}
		name := rec.PersonName
		if name == "" {
			name = "Unknown"
		}

		out = append(out, model.AlertRecord{
			ID:        rec.PersonID,
			Name:      name,
			Zone:      zone,
			Severity:  classify(rec, site),
			Timestamp: FormatTimestamp(rec.EntryUTC, loc),
			EntryTime: rec.EntryUTC,
			Raw:       &records[i],
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EntryTime > out[j].EntryTime
	})
	return out
}

// classify trusts the server-supplied severity when present. When absent the
// record's zone is resolved against the site directory and its security
// level used; low is the final default.
func classify(rec model.EntryExitRecord, site *model.Site) model.Severity {
	switch strings.ToLower(rec.Severity) {
	case string(model.SeverityHigh):
		return model.SeverityHigh
	case string(model.SeverityMedium):
		return model.SeverityMedium
	case string(model.SeverityLow):
		return model.SeverityLow
	}

	key := rec.ZoneID
	if key == "" {
		key = rec.ZoneName
	}
	if key != "" {
		if zone, ok := site.ZoneByID(key); ok {
			switch zone.SecurityLevel {
			case model.SecurityHigh:
				return model.SeverityHigh
			case model.SecurityMedium:
				return model.SeverityMedium
			}
		}
	}
	return model.SeverityLow
}

// FormatTimestamp renders an entry instant the way the alert cards expect:
// "March 03 2025" and 24h "10:12", in the site's location.
func FormatTimestamp(ms int64, loc *time.Location) model.AlertTimestamp {
	t := time.UnixMilli(ms).In(loc)
	return model.AlertTimestamp{
		Date: t.Format("January 02 2006"),
		Time: t.Format("15:04"),
	}
}
