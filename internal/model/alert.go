package model

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// AlertTimestamp is the pre-formatted display form of an alert's entry
// instant, e.g. {"March 03 2025", "10:12"}.
type AlertTimestamp struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// AlertRecord is a derived, read-only view of an entry event. Raw keeps a
// non-owning passthrough of the source record for debugging; it is not part
// of the wire shape.
type AlertRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Zone      string         `json:"zone"`
	Severity  Severity       `json:"severity"`
	Timestamp AlertTimestamp `json:"timestamp"`
	EntryTime int64          `json:"entryTime"`

	Raw *EntryExitRecord `json:"-"`
}

// User is the identity decoded from the upstream-issued token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
