package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"boxoffice/internal/account/models"
	"boxoffice/internal/platform/postgres"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

// PostgresStore persists accounts in the accounts table. It joins the
// transaction carried in ctx when there is one.
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

const accountColumns = `id, email, display_name, approval_status, approved_at,
		       approved_by_account_id, rejection_reason, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	a, err := scanAccount(s.execer(ctx).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("account exists by email: %w", err)
	}
	return exists, nil
}

// Save upserts a by id. A unique violation on email yields
// sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Save(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, display_name, approval_status, approved_at,
			approved_by_account_id, rejection_reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			approval_status = EXCLUDED.approval_status,
			approved_at = EXCLUDED.approved_at,
			approved_by_account_id = EXCLUDED.approved_by_account_id,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, rowArgs(a)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// Insert adds a new account and never overwrites one. An existing id yields
// sentinel.ErrConflict; a taken email sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Insert(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, display_name, approval_status, approved_at,
			approved_by_account_id, rejection_reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, rowArgs(a)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// TransitionStatus writes the approval fields of a only while the stored
// status is still from. Zero matched rows yield sentinel.ErrInvalidState.
func (s *PostgresStore) TransitionStatus(ctx context.Context, a *models.Account, from models.ApprovalStatus) error {
	query := `
		UPDATE accounts SET
			approval_status = $2,
			approved_at = $3,
			approved_by_account_id = $4,
			rejection_reason = $5,
			updated_at = $6
		WHERE id = $1 AND approval_status IS NOT DISTINCT FROM $7
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		nullStatus(a.Status),
		a.ApprovedAt,
		nullAccountID(a.ApprovedBy),
		sql.NullString{String: a.RejectionReason, Valid: a.RejectionReason != ""},
		a.UpdatedAt,
		nullStatus(from),
	)
	if err != nil {
		return fmt.Errorf("transition account status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition account status: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func rowArgs(a *models.Account) []any {
	return []any{
		uuid.UUID(a.ID),
		a.Email,
		a.DisplayName,
		nullStatus(a.Status),
		a.ApprovedAt,
		nullAccountID(a.ApprovedBy),
		sql.NullString{String: a.RejectionReason, Valid: a.RejectionReason != ""},
		a.CreatedAt,
		a.UpdatedAt,
	}
}

func nullStatus(st models.ApprovalStatus) sql.NullString {
	return sql.NullString{String: string(st), Valid: st != models.ApprovalStatusUnset}
}

func nullAccountID(accountID *id.AccountID) uuid.NullUUID {
	if accountID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*accountID), Valid: true}
}

func (s *PostgresStore) Delete(ctx context.Context, accountID id.AccountID) error {
	_, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByApprovalStatus(ctx context.Context, status models.ApprovalStatus, page id.PageRequest) (id.Page[*models.Account], error) {
	page = page.Normalize()
	result := id.Page[*models.Account]{Page: page.Page, Size: page.Size, Items: []*models.Account{}}

	exec := s.execer(ctx)
	if err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE approval_status = $1`, string(status),
	).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count accounts by status: %w", err)
	}

	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE approval_status = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`
	rows, err := exec.QueryContext(ctx, query, string(status), page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("find accounts by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return result, fmt.Errorf("scan account: %w", err)
		}
		result.Items = append(result.Items, a)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate accounts: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var (
		a          models.Account
		accountID  uuid.UUID
		status     sql.NullString
		approvedAt sql.NullTime
		approvedBy uuid.NullUUID
		reason     sql.NullString
	)
	if err := row.Scan(
		&accountID, &a.Email, &a.DisplayName, &status, &approvedAt,
		&approvedBy, &reason, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.ID = id.AccountID(accountID)
	a.Status = models.ApprovalStatus(status.String)
	if approvedAt.Valid {
		t := approvedAt.Time
		a.ApprovedAt = &t
	}
	if approvedBy.Valid {
		by := id.AccountID(approvedBy.UUID)
		a.ApprovedBy = &by
	}
	a.RejectionReason = reason.String
	return &a, nil
}
