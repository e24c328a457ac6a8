// Package postgres persists audit records in the audit_records table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"boxoffice/internal/audit"
	id "boxoffice/pkg/domain"
)

// Store writes through the pool only and never joins a transaction carried
// in ctx. Records outlive the caller's rollback.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	query := `
		INSERT INTO audit_records (
			id, action, severity, actor_account_id, target_account_id,
			resource_type, resource_id, event_id, details,
			client_ip, user_agent, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Action),
		string(rec.Severity),
		uuid.UUID(rec.Actor),
		nullAccount(rec.Target),
		nullString(rec.ResourceType),
		nullString(rec.ResourceID),
		nullEvent(rec.EventID),
		rec.Details,
		rec.ClientIP,
		rec.UserAgent,
		rec.RequestID,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		args = append(args, pq.Array(actions))
		where = append(where, fmt.Sprintf("action = ANY($%d)", len(args)))
	}
	if filter.Actor != nil {
		args = append(args, uuid.UUID(*filter.Actor))
		where = append(where, fmt.Sprintf("actor_account_id = $%d", len(args)))
	}
	args = append(args, filter.NormalizedLimit())

	query := `
		SELECT id, action, severity, actor_account_id, target_account_id,
		       resource_type, resource_id, event_id, details,
		       client_ip, user_agent, request_id, created_at
		FROM audit_records`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf("\n\t\tORDER BY id DESC\n\t\tLIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (audit.Record, error) {
	var (
		rec          audit.Record
		action       string
		severity     string
		actor        uuid.UUID
		target       uuid.NullUUID
		resourceType sql.NullString
		resourceID   sql.NullString
		eventID      uuid.NullUUID
	)
	if err := rows.Scan(
		&rec.ID, &action, &severity, &actor, &target,
		&resourceType, &resourceID, &eventID, &rec.Details,
		&rec.ClientIP, &rec.UserAgent, &rec.RequestID, &rec.CreatedAt,
	); err != nil {
		return audit.Record{}, fmt.Errorf("scan audit record: %w", err)
	}
	rec.Action = audit.Action(action)
	rec.Severity = audit.Severity(severity)
	rec.Actor = id.AccountID(actor)
	if target.Valid {
		t := id.AccountID(target.UUID)
		rec.Target = &t
	}
	if eventID.Valid {
		e := id.EventID(eventID.UUID)
		rec.EventID = &e
	}
	rec.ResourceType = resourceType.String
	rec.ResourceID = resourceID.String
	return rec, nil
}

func nullAccount(v *id.AccountID) uuid.NullUUID {
	if v == nil || v.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func nullEvent(v *id.EventID) uuid.NullUUID {
	if v == nil || v.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
