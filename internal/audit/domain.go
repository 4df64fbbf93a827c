// internal/audit/domain.go
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit log.
const (
	ActionRegistered     = "registered"
	ActionTitleAdded     = "title_added"
	ActionRestocked      = "restocked"
	ActionBorrowed       = "borrowed"
	ActionReturned       = "returned"
	ActionIntegrityAlarm = "integrity_alarm"
)

// Entry is one append-only audit record. AccountID is null for actions taken
// without an authenticated actor.
type Entry struct {
	ID          int64          `json:"id"`
	AccountID   uuid.NullUUID  `json:"account_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Filter narrows List.
type Filter struct {
	AccountID uuid.NullUUID
	Action    string
	Limit     int
}

type entryRow struct {
	ID          int64         `db:"id"`
	AccountID   uuid.NullUUID `db:"account_id"`
	OccurredAt  time.Time     `db:"occurred_at"`
	Action      string        `db:"action"`
	Description string        `db:"description"`
	Metadata    []byte        `db:"metadata"`
}

// For returns a NullUUID naming id.
func For(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
