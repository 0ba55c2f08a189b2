package service

import (
	"context"
	"sync"
	"time"

	"github.com/hirewire/auth-service/internal/models"
	"github.com/hirewire/auth-service/internal/security"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
)

type fakeRefreshTokenRepo struct {
	mu   sync.Mutex
	byID map[string]*models.RefreshTokenRecord
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{byID: make(map[string]*models.RefreshTokenRecord)}
}

func (f *fakeRefreshTokenRepo) Save(_ context.Context, record *models.RefreshTokenRecord) error {
	if record == nil {
		return pkgerrors.ErrNilRecord
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record.CreatedAt = time.Now()
	f.byID[record.ID] = cloneRecord(record)
	return nil
}

func (f *fakeRefreshTokenRepo) FindByTokenHash(_ context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.byID {
		if record.TokenHash == tokenHash {
			return cloneRecord(record), nil
		}
	}
	return nil, pkgerrors.ErrUnknownToken
}

func (f *fakeRefreshTokenRepo) FindActiveByOwner(_ context.Context, owner string) ([]*models.RefreshTokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []*models.RefreshTokenRecord
	for _, record := range f.byID {
		if record.OwnerIdentity == owner && !record.Revoked && time.Now().Before(record.ExpiresAt) {
			records = append(records, cloneRecord(record))
		}
	}
	return records, nil
}

func (f *fakeRefreshTokenRepo) MarkRotated(_ context.Context, id, replacedByID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.byID[id]
	if !ok || record.Revoked {
		return false, nil
	}
	record.Revoked = true
	record.ReplacedByTokenID = &replacedByID
	return true, nil
}

func (f *fakeRefreshTokenRepo) RevokeAllForOwner(_ context.Context, owner string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped int64
	for _, record := range f.byID {
		if record.OwnerIdentity == owner && !record.Revoked {
			record.Revoked = true
			flipped++
		}
	}
	return flipped, nil
}

func cloneRecord(record *models.RefreshTokenRecord) *models.RefreshTokenRecord {
	clone := *record
	if record.ReplacedByTokenID != nil {
		replacedBy := *record.ReplacedByTokenID
		clone.ReplacedByTokenID = &replacedBy
	}
	return &clone
}

type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	nextID  int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[user.Email]; exists {
		return pkgerrors.ErrIdentityExists
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	stored := *user
	f.byEmail[user.Email] = &stored
	return nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	found := *user
	return &found, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []security.Event
}

func (s *recordingSink) Emit(event security.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []security.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]security.EventKind, 0, len(s.events))
	for _, event := range s.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type stubLimiter struct {
	allow      bool
	retryAfter time.Duration
}

func (l *stubLimiter) Consume(context.Context, string) bool { return l.allow }

func (l *stubLimiter) RemainingQuota(context.Context, string) int {
	if l.allow {
		return 1
	}
	return 0
}

func (l *stubLimiter) RetryAfter(context.Context, string) time.Duration { return l.retryAfter }
