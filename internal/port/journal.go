package port

import "time"

// FetchRecord is one completed download call as recorded in the journal.
type FetchRecord struct {
	ID          int64
	URL         string
	Destination string
	Description string
	Status      string // "ok" or "failed"
	Attempts    int    // attempt budget configured for the call
	Bytes       int64
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Journal persists the outcome of download calls.
type Journal interface {
	// Record inserts one journal row and fills in its ID
	Record(rec *FetchRecord) error

	// Recent returns the most recent n records, newest first
	Recent(n int) ([]*FetchRecord, error)

	// Close releases the underlying store
	Close() error
}
