package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hirewire/auth-service/internal/models"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
)

type PostgresRefreshTokenRepository struct {
	db *sql.DB
}

func NewPostgresRefreshTokenRepository(db *sql.DB) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db}
}

func (r *PostgresRefreshTokenRepository) Save(ctx context.Context, record *models.RefreshTokenRecord) error {
	if record == nil {
		return pkgerrors.ErrNilRecord
	}

	query := `
	INSERT INTO refresh_tokens (id, owner_identity, token_hash, issued_at, expires_at, revoked, created_by_ip, user_agent)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		record.ID,
		record.OwnerIdentity,
		record.TokenHash,
		record.IssuedAt,
		record.ExpiresAt,
		record.Revoked,
		record.CreatedByIP,
		record.UserAgent,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	query := `
	SELECT id, owner_identity, token_hash, issued_at, expires_at, revoked, replaced_by_token_id, created_by_ip, user_agent, created_at
	FROM refresh_tokens
	WHERE token_hash = $1
	`
	record, err := r.scanRecord(r.db.QueryRowContext(ctx, query, tokenHash))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUnknownToken
	case err != nil:
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return record, nil
}

func (r *PostgresRefreshTokenRepository) FindActiveByOwner(ctx context.Context, owner string) ([]*models.RefreshTokenRecord, error) {
	query := `
	SELECT id, owner_identity, token_hash, issued_at, expires_at, revoked, replaced_by_token_id, created_by_ip, user_agent, created_at
	FROM refresh_tokens
	WHERE owner_identity = $1 AND revoked = false AND expires_at > now()
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list active refresh tokens: %w", err)
	}
	defer rows.Close()

	var records []*models.RefreshTokenRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refresh token: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list active refresh tokens: %w", err)
	}
	return records, nil
}

// MarkRotated is the compare-and-set protecting against concurrent replay:
// the WHERE revoked = false clause lets exactly one caller flip the row.
func (r *PostgresRefreshTokenRepository) MarkRotated(ctx context.Context, id, replacedByID string) (bool, error) {
	query := `
	UPDATE refresh_tokens
	SET revoked = true, replaced_by_token_id = $2
	WHERE id = $1 AND revoked = false
	`
	res, err := r.db.ExecContext(ctx, query, id, replacedByID)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresRefreshTokenRepository) RevokeAllForOwner(ctx context.Context, owner string) (int64, error) {
	query := `
	UPDATE refresh_tokens
	SET revoked = true
	WHERE owner_identity = $1 AND revoked = false
	`
	res, err := r.db.ExecContext(ctx, query, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresRefreshTokenRepository) scanRecord(row rowScanner) (*models.RefreshTokenRecord, error) {
	var record models.RefreshTokenRecord
	var replacedBy sql.NullString
	err := row.Scan(
		&record.ID,
		&record.OwnerIdentity,
		&record.TokenHash,
		&record.IssuedAt,
		&record.ExpiresAt,
		&record.Revoked,
		&replacedBy,
		&record.CreatedByIP,
		&record.UserAgent,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if replacedBy.Valid {
		record.ReplacedByTokenID = &replacedBy.String
	}
	return &record, nil
}
