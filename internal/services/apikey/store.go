// Package apikey issues and validates the opaque bearer keys callers present
// instead of their upstream credentials.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/repository"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

// Default key lifetimes.
const (
	DefaultExpiration = 30 * 24 * time.Hour
	DefaultInactivity = 7 * 24 * time.Hour
)

// Store manages the single active key of each user.
type Store struct {
	repo       repository.APIKeyRepository
	expiration time.Duration
	inactivity time.Duration
	now        func() time.Time
}

// NewStore creates a Store with the default lifetimes and the wall clock.
func NewStore(repo repository.APIKeyRepository) *Store {
	return &Store{
		repo:       repo,
		expiration: DefaultExpiration,
		inactivity: DefaultInactivity,
		now:        time.Now,
	}
}

// WithLifetimes overrides the expiration and inactivity windows. Zero values
// keep the current setting.
func (s *Store) WithLifetimes(expiration, inactivity time.Duration) *Store {
	if expiration > 0 {
		s.expiration = expiration
	}
	if inactivity > 0 {
		s.inactivity = inactivity
	}
	return s
}

// WithClock replaces the time source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Issue generates a new key for username, replacing any existing key.
func (s *Store) Issue(ctx context.Context, username string) (string, error) {
	now := s.now().UTC()
	record := &models.APIKey{
		Key:        uuid.NewString(),
		Username:   username,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.expiration),
		LastUsedAt: now,
	}

	_, err := s.repo.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := s.repo.Create(ctx, record); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		if err := s.repo.Replace(ctx, record); err != nil {
			return "", err
		}
	}

	logging.Infow("issued api key", "username", username, "expires_at", record.ExpiresAt)
	return record.Key, nil
}

// Validate reports whether key is known, unexpired and recently used. A
// valid key has its last-used time advanced.
func (s *Store) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	record, err := s.repo.GetByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		telemetry.Identity().RecordKeyValidation(ctx, telemetry.ResultInvalid)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now().UTC()

	if record.IsLegacy() {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.ExpiresAt = now.Add(s.expiration)
		record.LastUsedAt = now
		if err := s.repo.Update(ctx, record); err != nil {
			return false, fmt.Errorf("migrate legacy key for %s: %w", record.Username, err)
		}
		logging.Infof("migrated legacy api key for %s", record.Username)
	}

	if !now.Before(record.ExpiresAt) {
		logging.Infof("api key for %s expired at %s", record.Username, record.ExpiresAt)
		telemetry.Identity().RecordKeyValidation(ctx, "expired")
		return false, nil
	}
	if now.Sub(record.LastUsedAt) >= s.inactivity {
		logging.Infof("api key for %s inactive since %s", record.Username, record.LastUsedAt)
		telemetry.Identity().RecordKeyValidation(ctx, "inactive")
		return false, nil
	}

	if now.After(record.LastUsedAt) {
		record.LastUsedAt = now
		if err := s.repo.Update(ctx, record); err != nil {
			return false, err
		}
	}

	telemetry.Identity().RecordKeyValidation(ctx, telemetry.ResultSuccess)
	return true, nil
}

// GetOwner returns the username holding key.
func (s *Store) GetOwner(ctx context.Context, key string) (string, bool, error) {
	record, err := s.repo.GetByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record.Username, true, nil
}

// GetKeyFor returns the current key of username.
func (s *Store) GetKeyFor(ctx context.Context, username string) (string, bool, error) {
	record, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record.Key, true, nil
}

// Delete removes key. Unknown keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

// DeleteForUser removes the key of username, if any.
func (s *Store) DeleteForUser(ctx context.Context, username string) error {
	return s.repo.DeleteByUsername(ctx, username)
}

// Count returns the number of stored keys.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
