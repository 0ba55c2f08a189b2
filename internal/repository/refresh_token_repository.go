package repository

import (
	"context"

	"github.com/hirewire/auth-service/internal/models"
)

// RefreshTokenRepository persists refresh-token records. Rows are only ever
// inserted or flipped to revoked, never deleted: the revoked history is the
// forensic trail reuse detection walks.
type RefreshTokenRepository interface {
	Save(ctx context.Context, record *models.RefreshTokenRecord) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error)
	FindActiveByOwner(ctx context.Context, owner string) ([]*models.RefreshTokenRecord, error)

	// MarkRotated atomically revokes record id and points it at its
	// successor. It reports false when the record was already revoked, which
	// is how a lost rotation race surfaces.
	MarkRotated(ctx context.Context, id, replacedByID string) (bool, error)

	// RevokeAllForOwner revokes every active record for owner with no
	// replacement and returns how many rows were flipped.
	RevokeAllForOwner(ctx context.Context, owner string) (int64, error)
}
