package attendance

import "time"

// Status of a ledger entry.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Record is one append-only attendance ledger entry. Never mutated after
// creation.
type Record struct {
	ID         string    `json:"id"`
	Identity   string    `json:"identity"`
	OccurredAt time.Time `json:"occurred_at"`
	Date       string    `json:"date"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Person is a roster entry for an enrolled identity. PresentCount is the
// running total of accepted Present markings, maintained by the ledger via
// atomic increments.
type Person struct {
	Identity     string    `json:"identity"`
	Name         *string   `json:"name,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	PresentCount int       `json:"present_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordID derives the deterministic ledger key for a marking event. The
// timestamp is truncated to the minute so a retried or concurrently
// submitted write of the same logical event lands on the same key and is
// collapsed by the conditional insert instead of creating a second row.
func RecordID(identity string, ts time.Time) string {
	return identity + "_" + ts.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

// AbsentRecordID derives the deterministic ledger key for a sweep entry.
// It depends only on the identity and the calendar date, so re-running the
// sweep for a date lands on the same key and cannot create a second Absent
// row.
func AbsentRecordID(identity, date string) string {
	return identity + absentSuffix(date)
}

func absentSuffix(date string) string {
	return "_" + date + "_absent"
}

// NewPresentRecord builds the Present entry for an accepted marking.
func NewPresentRecord(identity string, ts time.Time) Record {
	ts = ts.UTC()
	return Record{
		ID:         RecordID(identity, ts),
		Identity:   identity,
		OccurredAt: ts,
		Date:       ts.Format("2006-01-02"),
		Status:     StatusPresent,
	}
}
