package model

type SecurityLevel string

const (
	SecurityHigh   SecurityLevel = "high"
	SecurityMedium SecurityLevel = "medium"
	SecurityLow    SecurityLevel = "low"
)

type Zone struct {
	ZoneID        string        `json:"zoneId"`
	Name          string        `json:"name"`
	SecurityLevel SecurityLevel `json:"securityLevel"`
}

type Site struct {
	SiteID   string `json:"siteId"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Zones    []Zone `json:"zones"`
}

// ZoneByID looks a zone up by its id, then by name. Entry records are not
// consistent about which of the two they carry.
func (s *Site) ZoneByID(id string) (Zone, bool) {
	if s == nil {
		return Zone{}, false
	}
	for _, z := range s.Zones {
		if z.ZoneID == id {
			return z, true
		}
	}
	for _, z := range s.Zones {
		if z.Name == id {
			return z, true
		}
	}
	return Zone{}, false
}

// FallbackSite is served when the site directory is unavailable or empty, so
// the dashboard stays renderable without it.
func FallbackSite() Site {
	return Site{
		SiteID:   "SITE-AE-DXB-001",
		Name:     "Dubai Mall",
		Timezone: "Asia/Dubai",
		Country:  "UAE",
		City:     "Dubai",
		Zones: []Zone{
			{ZoneID: "Z-AE-DXB-001-H", Name: "Luxury Retail Wing", SecurityLevel: SecurityHigh},
			{ZoneID: "Z-AE-DXB-001-M", Name: "Food Court Area", SecurityLevel: SecurityMedium},
			{ZoneID: "Z-AE-DXB-001-L", Name: "General Shopping Zone", SecurityLevel: SecurityLow},
		},
	}
}
