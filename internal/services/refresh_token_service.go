package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hirewire/auth-service/internal/models"
	"github.com/hirewire/auth-service/internal/repository"
	"github.com/hirewire/auth-service/internal/token"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// RequestMeta is the client context recorded on refresh-token records and
// attached to security events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// RefreshTokenService owns the server-side refresh token lifecycle: issue,
// validate, rotate, revoke. One active chain per owner; every rotation
// revokes the token just used (strict rotation maximizes reuse-detection
// sensitivity at the cost of single-use refresh tokens).
type RefreshTokenService interface {
	Issue(ctx context.Context, owner string, meta RequestMeta) (*models.RefreshTokenRecord, string, error)
	// Validate returns the record together with the error for revoked and
	// expired tokens, so the caller can classify reuse.
	Validate(ctx context.Context, tokenValue string) (*models.RefreshTokenRecord, error)
	Rotate(ctx context.Context, old *models.RefreshTokenRecord, meta RequestMeta) (*models.RefreshTokenRecord, string, error)
	RevokeAll(ctx context.Context, owner string) error
}

type refreshTokenService struct {
	repo  repository.RefreshTokenRepository
	codec *token.Codec
	ttl   time.Duration
	now   func() time.Time
}

func NewRefreshTokenService(repo repository.RefreshTokenRepository, codec *token.Codec, ttl time.Duration) *refreshTokenService {
	return &refreshTokenService{
		repo:  repo,
		codec: codec,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *refreshTokenService) Issue(ctx context.Context, owner string, meta RequestMeta) (*models.RefreshTokenRecord, string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "RefreshTokens.Issue")
	defer span.End()

	// Eager single-active-chain policy: a fresh login closes every other
	// session the owner still has open.
	revoked, err := s.repo.RevokeAllForOwner(ctx, owner)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to revoke previous chain")
		return nil, "", fmt.Errorf("%w: failed to revoke previous refresh tokens", pkgerrors.ErrInternal)
	}
	if revoked > 0 {
		slog.Info("previous refresh tokens revoked on issue", "owner", owner, "count", revoked)
	}

	return s.mintAndSave(ctx, owner, meta)
}

func (s *refreshTokenService) Validate(ctx context.Context, tokenValue string) (*models.RefreshTokenRecord, error) {
	record, err := s.repo.FindByTokenHash(ctx, token.Hash(tokenValue))
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return record, pkgerrors.ErrRevokedToken
	}
	if record.Expired(s.now()) {
		return record, pkgerrors.ErrExpiredToken
	}
	return record, nil
}

func (s *refreshTokenService) Rotate(ctx context.Context, old *models.RefreshTokenRecord, meta RequestMeta) (*models.RefreshTokenRecord, string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "RefreshTokens.Rotate")
	defer span.End()

	if old == nil {
		return nil, "", pkgerrors.ErrNilRecord
	}

	// The compare-and-set runs before the successor exists: of two
	// concurrent callers presenting the same token, exactly one flips the
	// row and proceeds; the other sees it already revoked.
	newID := uuid.NewString()
	rotated, err := s.repo.MarkRotated(ctx, old.ID, newID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rotation update failed")
		return nil, "", fmt.Errorf("%w: failed to rotate refresh token", pkgerrors.ErrInternal)
	}
	if !rotated {
		span.SetStatus(codes.Error, "rotation lost to concurrent caller")
		return nil, "", pkgerrors.ErrRevokedToken
	}

	return s.mintAndSaveWithID(ctx, newID, old.OwnerIdentity, meta)
}

func (s *refreshTokenService) RevokeAll(ctx context.Context, owner string) error {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "RefreshTokens.RevokeAll")
	defer span.End()

	revoked, err := s.repo.RevokeAllForOwner(ctx, owner)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "revoke all failed")
		return fmt.Errorf("%w: failed to revoke refresh tokens", pkgerrors.ErrInternal)
	}
	slog.Info("refresh token chain revoked", "owner", owner, "count", revoked)
	return nil
}

func (s *refreshTokenService) mintAndSave(ctx context.Context, owner string, meta RequestMeta) (*models.RefreshTokenRecord, string, error) {
	return s.mintAndSaveWithID(ctx, uuid.NewString(), owner, meta)
}

func (s *refreshTokenService) mintAndSaveWithID(ctx context.Context, id, owner string, meta RequestMeta) (*models.RefreshTokenRecord, string, error) {
	now := s.now()
	// The record ID rides along as jti so consecutive tokens for one owner
	// never collide on hash, even when minted within the same second.
	signed, err := s.codec.Mint(owner, models.TokenTypeRefresh, s.ttl, map[string]interface{}{"jti": id})
	if err != nil {
		slog.Error("failed to mint refresh token", "owner", owner, "error", err)
		return nil, "", fmt.Errorf("%w: failed to mint refresh token", pkgerrors.ErrInternal)
	}

	record := &models.RefreshTokenRecord{
		ID:            id,
		OwnerIdentity: owner,
		TokenHash:     token.Hash(signed),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ttl),
		CreatedByIP:   meta.IP,
		UserAgent:     meta.UserAgent,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		slog.Error("failed to save refresh token", "owner", owner, "error", err)
		return nil, "", fmt.Errorf("%w: failed to save refresh token", pkgerrors.ErrInternal)
	}
	return record, signed, nil
}
