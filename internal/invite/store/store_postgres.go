package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	"boxoffice/internal/platform/postgres"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

const inviteColumns = `id, code, role_name, target_event_id, status, created_by_account_id,
	created_at, expires_at, redeemed_by_account_id, redeemed_at, revoked_at, revoked_reason`

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

func (s *PostgresStore) Create(ctx context.Context, c *models.InviteCode) error {
	var target uuid.NullUUID
	if c.TargetEventID != nil {
		target = uuid.NullUUID{UUID: uuid.UUID(*c.TargetEventID), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO invite_codes (id, code, role_name, target_event_id, status, created_by_account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(c.ID), c.Code, string(c.Role), target, string(c.Status), uuid.UUID(c.CreatedBy), c.CreatedAt, c.ExpiresAt)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return sentinel.ErrAlreadyUsed
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("target event: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("create invite code: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, codeID id.InviteCodeID) (*models.InviteCode, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invite_codes WHERE id = $1`, uuid.UUID(codeID))
	return scanOne(row)
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invite_codes WHERE code = $1`, code)
	return scanOne(row)
}

// ClaimPending is the redemption compare-and-set. Zero rows means the code is
// gone, already terminal, or lapsed; the caller reloads to tell which.
func (s *PostgresStore) ClaimPending(ctx context.Context, codeID id.InviteCodeID, redeemer id.AccountID, now time.Time) (*models.InviteCode, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE invite_codes
		SET status = 'REDEEMED', redeemed_by_account_id = $2, redeemed_at = $3
		WHERE id = $1 AND status = 'PENDING' AND expires_at >= $3
		RETURNING `+inviteColumns,
		uuid.UUID(codeID), uuid.UUID(redeemer), now)
	c, err := scanOne(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, sentinel.ErrInvalidState
	}
	return c, err
}

func (s *PostgresStore) MarkExpired(ctx context.Context, codeID id.InviteCodeID, now time.Time) (bool, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE invite_codes SET status = 'EXPIRED'
		WHERE id = $1 AND status = 'PENDING' AND expires_at < $2
	`, uuid.UUID(codeID), now)
	if err != nil {
		return false, fmt.Errorf("expire invite code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("expire invite code rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, codeID id.InviteCodeID, reason string, now time.Time) (*models.InviteCode, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE invite_codes
		SET status = 'REVOKED', revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+inviteColumns,
		uuid.UUID(codeID), now, nullString(reason))
	c, err := scanOne(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, sentinel.ErrInvalidState
	}
	return c, err
}

func (s *PostgresStore) MarkExpiredBefore(ctx context.Context, now time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE invite_codes SET status = 'EXPIRED'
		WHERE status = 'PENDING' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired invite codes: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ListByCreator(ctx context.Context, creator id.AccountID, page id.PageRequest) (id.Page[*models.InviteCode], error) {
	page = page.Normalize()
	result := id.Page[*models.InviteCode]{Items: []*models.InviteCode{}, Page: page.Page, Size: page.Size}

	exec := s.execer(ctx)
	if err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invite_codes WHERE created_by_account_id = $1`,
		uuid.UUID(creator)).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count invite codes: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+inviteColumns+`
		FROM invite_codes
		WHERE created_by_account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, uuid.UUID(creator), page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("list invite codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanInvite(rows)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, c)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate invite codes: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.InviteCode, error) {
	c, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

func scanInvite(row rowScanner) (*models.InviteCode, error) {
	var (
		c          models.InviteCode
		rawID      uuid.UUID
		role       string
		status     string
		target     uuid.NullUUID
		creator    uuid.UUID
		redeemedBy uuid.NullUUID
		redeemedAt sql.NullTime
		revokedAt  sql.NullTime
		reason     sql.NullString
	)
	if err := row.Scan(&rawID, &c.Code, &role, &target, &status, &creator,
		&c.CreatedAt, &c.ExpiresAt, &redeemedBy, &redeemedAt, &revokedAt, &reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan invite code: %w", err)
	}
	c.ID = id.InviteCodeID(rawID)
	c.Role = identity.Role(role)
	c.Status = models.Status(status)
	c.CreatedBy = id.AccountID(creator)
	if target.Valid {
		e := id.EventID(target.UUID)
		c.TargetEventID = &e
	}
	if redeemedBy.Valid {
		a := id.AccountID(redeemedBy.UUID)
		c.RedeemedBy = &a
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		c.RedeemedAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		c.RevokedAt = &t
	}
	c.RevokedReason = reason.String
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
