package service

import (
	"context"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/hirewire/auth-service/internal/infrastructure/observability"
	"github.com/hirewire/auth-service/internal/models"
	"github.com/hirewire/auth-service/internal/ratelimit"
	"github.com/hirewire/auth-service/internal/repository"
	"github.com/hirewire/auth-service/internal/security"
	"github.com/hirewire/auth-service/internal/token"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair is the wire-facing result of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

const bearerTokenType = "Bearer"

type AuthService interface {
	Register(ctx context.Context, email, password, role string, meta RequestMeta) (int64, error)
	Login(ctx context.Context, email, password string, meta RequestMeta) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string, meta RequestMeta) error
	// Authorize verifies an access token and returns its claims. It runs on
	// every authenticated API call: pure computation, no I/O, no rate
	// limiting, no side effects.
	Authorize(ctx context.Context, accessToken string) (*models.TokenClaims, error)
}

type authService struct {
	userRepo        repository.UserRepository
	refreshTokens   RefreshTokenService
	codec           *token.Codec
	accessTTL       time.Duration
	loginLimiter    ratelimit.Limiter
	registerLimiter ratelimit.Limiter
	refreshLimiter  ratelimit.Limiter
	events          security.Sink
}

func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokens RefreshTokenService,
	codec *token.Codec,
	accessTTL time.Duration,
	loginLimiter ratelimit.Limiter,
	registerLimiter ratelimit.Limiter,
	refreshLimiter ratelimit.Limiter,
	events security.Sink,
) *authService {
	return &authService{
		userRepo:        userRepo,
		refreshTokens:   refreshTokens,
		codec:           codec,
		accessTTL:       accessTTL,
		loginLimiter:    loginLimiter,
		registerLimiter: registerLimiter,
		refreshLimiter:  refreshLimiter,
		events:          events,
	}
}

func (s *authService) Register(ctx context.Context, email, password, role string, meta RequestMeta) (int64, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()
	defer s.observe("register", time.Now())

	if email == "" || password == "" {
		span.SetStatus(codes.Error, "empty email or password")
		return 0, pkgerrors.ErrInvalidInput
	}

	if err := s.admit(ctx, s.registerLimiter, "register", s.limiterKey(email, meta), meta); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "email", email, "error", err)
		return 0, pkgerrors.ErrInternal
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		observability.AuthAttempts.WithLabelValues("register", "failure").Inc()
		s.emit(security.EventRegisterFailure, email, meta, err.Error())
		if stderrors.Is(err, pkgerrors.ErrIdentityExists) {
			return 0, err
		}
		slog.Error("failed to create user", "email", email, "error", err)
		return 0, pkgerrors.ErrInternal
	}

	observability.AuthAttempts.WithLabelValues("register", "success").Inc()
	s.emit(security.EventRegisterSuccess, email, meta, "")
	slog.Info("user registered", "user_id", user.ID, "email", email)
	return user.ID, nil
}

func (s *authService) Login(ctx context.Context, email, password string, meta RequestMeta) (*TokenPair, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	defer s.observe("login", time.Now())

	if err := s.admit(ctx, s.loginLimiter, "login", s.limiterKey(email, meta), meta); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return nil, err
	}

	// A missing user and a wrong password fail identically so the response
	// never reveals whether the identity exists.
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		span.SetStatus(codes.Error, "unknown identity")
		observability.AuthAttempts.WithLabelValues("login", "failure").Inc()
		s.emit(security.EventLoginFailure, email, meta, "unknown identity")
		return nil, pkgerrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		span.SetStatus(codes.Error, "credential mismatch")
		observability.AuthAttempts.WithLabelValues("login", "failure").Inc()
		s.emit(security.EventLoginFailure, email, meta, "credential mismatch")
		return nil, pkgerrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user, meta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issuance failed")
		observability.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, err
	}

	observability.AuthAttempts.WithLabelValues("login", "success").Inc()
	s.emit(security.EventLoginSuccess, email, meta, "")
	slog.Info("user logged in", "email", email, "user_id", user.ID)
	return pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*TokenPair, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Refresh")
	defer span.End()
	defer s.observe("refresh", time.Now())

	if err := s.admit(ctx, s.refreshLimiter, "refresh", s.limiterKey("", meta), meta); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return nil, err
	}

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		span.SetStatus(codes.Error, "refresh token rejected by codec")
		observability.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		s.emit(security.EventRefreshFailure, "", meta, err.Error())
		return nil, err
	}
	if !claims.IsRefreshToken() {
		span.SetStatus(codes.Error, "access token presented on refresh path")
		observability.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		s.emit(security.EventRefreshFailure, claims.Subject, meta, "wrong token type")
		return nil, pkgerrors.ErrWrongTokenType
	}

	record, err := s.refreshTokens.Validate(ctx, refreshToken)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrRevokedToken) && record != nil && record.Superseded() {
			return nil, s.handleReuse(ctx, record.OwnerIdentity, meta)
		}
		span.SetStatus(codes.Error, "refresh token invalid")
		observability.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		s.emit(security.EventRefreshFailure, claims.Subject, meta, err.Error())
		return nil, err
	}

	newRecord, newSigned, err := s.refreshTokens.Rotate(ctx, record, meta)
	if err != nil {
		// A lost rotation race means someone else just used this token. That
		// is indistinguishable from theft-driven replay, so it gets the same
		// escalation as genuine reuse.
		if stderrors.Is(err, pkgerrors.ErrRevokedToken) {
			return nil, s.handleReuse(ctx, record.OwnerIdentity, meta)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "rotation failed")
		observability.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, newRecord.OwnerIdentity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "owner lookup failed")
		observability.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		return nil, pkgerrors.ErrInternal
	}

	accessToken, err := s.mintAccessToken(user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "access token minting failed")
		observability.AuthAttempts.WithLabelValues("refresh", "failure").Inc()
		return nil, err
	}

	observability.AuthAttempts.WithLabelValues("refresh", "success").Inc()
	s.emit(security.EventRefreshSuccess, user.Email, meta, "")
	slog.Info("refresh token rotated", "email", user.Email)
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newSigned,
		TokenType:    bearerTokenType,
	}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) error {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()
	defer s.observe("logout", time.Now())

	record, err := s.refreshTokens.Validate(ctx, refreshToken)
	if record == nil {
		span.SetStatus(codes.Error, "logout token unknown")
		s.emit(security.EventUnauthorizedAccess, "", meta, "logout with unknown token")
		return err
	}

	// Logout closes the entire chain, not just the presented token, so any
	// already-rotated copy still cached by another client dies with it. A
	// revoked or expired token still identifies the chain to close.
	if err := s.refreshTokens.RevokeAll(ctx, record.OwnerIdentity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain revocation failed")
		return err
	}

	observability.AuthAttempts.WithLabelValues("logout", "success").Inc()
	s.emit(security.EventLogout, record.OwnerIdentity, meta, "")
	slog.Info("user logged out", "email", record.OwnerIdentity)
	return nil
}

func (s *authService) Authorize(ctx context.Context, accessToken string) (*models.TokenClaims, error) {
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if !claims.IsAccessToken() {
		return nil, pkgerrors.ErrWrongTokenType
	}
	return claims, nil
}

// handleReuse is the one error path with a mandatory side effect: the chain
// revocation must complete before the failure is returned, otherwise the
// protection it implements does not exist.
func (s *authService) handleReuse(ctx context.Context, owner string, meta RequestMeta) error {
	if err := s.refreshTokens.RevokeAll(ctx, owner); err != nil {
		slog.Error("failed to revoke chain on reuse detection", "owner", owner, "error", err)
		return err
	}
	observability.TokenReuseDetections.Inc()
	observability.AuthAttempts.WithLabelValues("refresh", "reuse_detected").Inc()
	s.emit(security.EventTokenReuseDetected, owner, meta, "revoked refresh token replayed")
	slog.Warn("refresh token reuse detected, chain revoked", "owner", owner)
	return pkgerrors.ErrTokenReuseDetected
}

func (s *authService) issuePair(ctx context.Context, user *models.User, meta RequestMeta) (*TokenPair, error) {
	accessToken, err := s.mintAccessToken(user)
	if err != nil {
		return nil, err
	}
	_, refreshSigned, err := s.refreshTokens.Issue(ctx, user.Email, meta)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshSigned,
		TokenType:    bearerTokenType,
	}, nil
}

func (s *authService) mintAccessToken(user *models.User) (string, error) {
	accessToken, err := s.codec.Mint(user.Email, models.TokenTypeAccess, s.accessTTL, map[string]interface{}{
		"role": user.Role,
	})
	if err != nil {
		slog.Error("failed to mint access token", "email", user.Email, "error", err)
		return "", pkgerrors.ErrInternal
	}
	return accessToken, nil
}

// admit consults one operation's limiter and builds the retry hint when the
// request is rejected.
func (s *authService) admit(ctx context.Context, limiter ratelimit.Limiter, operation, key string, meta RequestMeta) error {
	if limiter.Consume(ctx, key) {
		return nil
	}
	observability.RateLimitRejections.WithLabelValues(operation).Inc()
	s.emit(security.EventRateLimitExceeded, key, meta, operation)
	slog.Warn("request rate limited", "operation", operation, "key", key)
	return &pkgerrors.RateLimitedError{
		Operation:  operation,
		RetryAfter: limiter.RetryAfter(ctx, key),
	}
}

// limiterKey prefers the client IP; identity keeps single-identity abuse
// detectable when the transport could not resolve an address.
func (s *authService) limiterKey(identity string, meta RequestMeta) string {
	if meta.IP != "" {
		return meta.IP
	}
	if identity != "" {
		return identity
	}
	return "unknown"
}

func (s *authService) emit(kind security.EventKind, identity string, meta RequestMeta, reason string) {
	s.events.Emit(security.Event{
		Kind:      kind,
		Identity:  identity,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

func (s *authService) observe(operation string, start time.Time) {
	observability.AuthDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
