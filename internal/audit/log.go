// internal/audit/log.go

// Package audit is the append-only record of state-changing actions. Entries
// are written inside the caller's transaction so an action and its audit
// record commit or roll back together.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/requestctx"
	"librarydesk/internal/store"
)

const table = "audit_log"

const defaultListLimit = 100

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Log appends and lists audit entries.
type Log struct {
	store  *store.Store
	tracer trace.Tracer
	now    func() time.Time
}

// NewLog creates an audit log over s. A nil clock means time.Now.
func NewLog(s *store.Store, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{
		store:  s,
		tracer: otel.Tracer("librarydesk/audit"),
		now:    now,
	}
}

// Append writes entry using q, which is normally the caller's open transaction.
func (l *Log) Append(ctx context.Context, q store.Querier, entry Entry) error {
	ctx, span := l.tracer.Start(ctx, "audit.append",
		trace.WithAttributes(attribute.String("audit.action", entry.Action)),
	)
	defer span.End()

	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = l.now().UTC()
	}

	var metadata any
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = string(raw)
	}

	var accountID any
	if entry.AccountID.Valid {
		accountID = entry.AccountID.UUID
	}

	_, err := store.Exec(ctx, q, l.store.Builder().Insert(table).Rows(goqu.Record{
		"account_id":  accountID,
		"occurred_at": entry.OccurredAt,
		"action":      entry.Action,
		"description": entry.Description,
		"metadata":    metadata,
	}).Prepared(true))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Alarm records entry in its own transaction. It is used for integrity
// failures whose originating transaction has already been rolled back.
func (l *Log) Alarm(ctx context.Context, entry Entry) error {
	entry.Action = ActionIntegrityAlarm
	return l.store.WithTx(ctx, "audit.alarm", func(tx *store.Tx) error {
		return l.Append(ctx, tx, entry)
	})
}

// List returns entries newest first.
func (l *Log) List(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx, span := l.tracer.Start(ctx, "audit.list")
	defer span.End()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	ds := l.store.Builder().From(table).
		Select("id", "account_id", "occurred_at", "action", "description", "metadata").
		Order(goqu.C("id").Desc()).
		Limit(uint(limit))
	if filter.AccountID.Valid {
		ds = ds.Where(goqu.C("account_id").Eq(filter.AccountID.UUID))
	}
	if filter.Action != "" {
		ds = ds.Where(goqu.C("action").Eq(filter.Action))
	}

	var rows []entryRow
	if err := store.Select(ctx, l.store.DB(), &rows, ds.Prepared(true)); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := Entry{
			ID:          row.ID,
			AccountID:   row.AccountID,
			OccurredAt:  row.OccurredAt,
			Action:      row.Action,
			Description: row.Description,
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata %d: %w", row.ID, err)
			}
		}
		entries = append(entries, entry)
	}

	span.SetAttributes(attribute.Int("audit.entries", len(entries)))
	return entries, nil
}

// Actor returns the acting account from ctx, or a null id.
func Actor(ctx context.Context) uuid.NullUUID {
	id, ok := requestctx.ActorFromContext(ctx)
	if !ok {
		return uuid.NullUUID{}
	}
	return For(id)
}
