package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"boxoffice/internal/event/models"
	"boxoffice/internal/platform/postgres"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, e *models.Event) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO events (id, name, organizer_id, starts_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(e.ID), e.Name, uuid.UUID(e.OrganizerID), e.StartsAt, e.CreatedAt)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return sentinel.ErrAlreadyUsed
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("organizer: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	var (
		e         models.Event
		rawID     uuid.UUID
		organizer uuid.UUID
		startsAt  sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, organizer_id, starts_at, created_at
		FROM events
		WHERE id = $1
	`, uuid.UUID(eventID)).Scan(&rawID, &e.Name, &organizer, &startsAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	e.ID = id.EventID(rawID)
	e.OrganizerID = id.AccountID(organizer)
	if startsAt.Valid {
		t := startsAt.Time
		e.StartsAt = &t
	}
	return &e, nil
}

// Grant inserts a staff grant; an existing grant is reported as not created.
func (s *PostgresStore) Grant(ctx context.Context, g models.StaffGrant) (bool, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO event_staff (event_id, account_id, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, account_id) DO NOTHING
	`, uuid.UUID(g.EventID), uuid.UUID(g.AccountID), g.GrantedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return false, fmt.Errorf("event or account: %w", sentinel.ErrNotFound)
		}
		return false, fmt.Errorf("grant staff: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grant staff rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) RevokeStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error) {
	result, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM event_staff WHERE event_id = $1 AND account_id = $2`,
		uuid.UUID(eventID), uuid.UUID(accountID))
	if err != nil {
		return false, fmt.Errorf("revoke staff: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke staff rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) IsStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM event_staff WHERE event_id = $1 AND account_id = $2)
	`, uuid.UUID(eventID), uuid.UUID(accountID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is staff: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListStaff(ctx context.Context, eventID id.EventID) ([]models.StaffGrant, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT event_id, account_id, granted_at
		FROM event_staff
		WHERE event_id = $1
		ORDER BY granted_at, account_id
	`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	out := make([]models.StaffGrant, 0)
	for rows.Next() {
		var (
			g         models.StaffGrant
			eventUUID uuid.UUID
			account   uuid.UUID
		)
		if err := rows.Scan(&eventUUID, &account, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan staff grant: %w", err)
		}
		g.EventID = id.EventID(eventUUID)
		g.AccountID = id.AccountID(account)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staff grants: %w", err)
	}
	return out, nil
}
