package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const journalSchema = `
	CREATE TABLE IF NOT EXISTS escrow_journal (
		id         BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		offer_id   BIGINT NOT NULL DEFAULT 0,
		account    TEXT NOT NULL,
		amount     BIGINT NOT NULL DEFAULT 0,
		status     TEXT NOT NULL,
		details    JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`

// PostgresJournal appends audit events to the escrow_journal table. Rows
// are never updated or deleted.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Migrate creates the journal table if it is missing.
func (j *PostgresJournal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, journalSchema)
	return err
}

func (j *PostgresJournal) Record(ctx context.Context, event AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return err
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO escrow_journal (event_type, offer_id, account, amount, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.EventType, int64(event.OfferID), event.Account, event.Amount, event.Status, details, event.Timestamp)
	return err
}

// History returns the journal of one offer in insertion order.
func (j *PostgresJournal) History(ctx context.Context, offerID uint64) ([]AuditEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT event_type, account, amount, status, details, created_at
		FROM escrow_journal
		WHERE offer_id = $1
		ORDER BY id`, int64(offerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			e       AuditEvent
			details []byte
			created time.Time
		)
		if err := rows.Scan(&e.EventType, &e.Account, &e.Amount, &e.Status, &details, &created); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, err
			}
		}
		e.OfferID = offerID
		e.Timestamp = created
		events = append(events, e)
	}
	return events, rows.Err()
}
