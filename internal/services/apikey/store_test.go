package apikey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/venicegeo/pz-idam/internal/db/dbtest"
	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/repository"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) (*Store, repository.APIKeyRepository, *testClock) {
	t.Helper()
	repo := repository.NewBunAPIKeyRepository(dbtest.New(t))
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(repo).WithClock(clock.Now), repo, clock
}

func TestStore_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	store, repo, clock := newTestStore(t)

	key, err := store.Issue(ctx, "jdoe")
	require.NoError(t, err)
	_, err = uuid.Parse(key)
	require.NoError(t, err)

	record, err := repo.GetByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, record.ExpiresAt.Equal(clock.now.Add(DefaultExpiration)))
	assert.True(t, record.CreatedAt.Equal(clock.now))

	valid, err := store.Validate(ctx, key)
	require.NoError(t, err)
	assert.True(t, valid)

	owner, ok, err := store.GetOwner(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jdoe", owner)

	current, ok, err := store.GetKeyFor(ctx, "jdoe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, key, current)
}

func TestStore_IssueReplacesExistingKey(t *testing.T) {
	ctx := context.Background()
	store, _, clock := newTestStore(t)

	first, err := store.Issue(ctx, "jdoe")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := store.Issue(ctx, "jdoe")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	valid, err := store.Validate(ctx, first)
	require.NoError(t, err)
	assert.False(t, valid, "replaced key must no longer validate")

	valid, err = store.Validate(ctx, second)
	require.NoError(t, err)
	assert.True(t, valid)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ValidateLifetimes(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown key", func(t *testing.T) {
		store, _, _ := newTestStore(t)
		valid, err := store.Validate(ctx, "no-such-key")
		require.NoError(t, err)
		assert.False(t, valid)

		valid, err = store.Validate(ctx, "")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("expired at exactly the expiry instant", func(t *testing.T) {
		store, _, clock := newTestStore(t)
		store.WithLifetimes(2*time.Hour, time.Hour)
		key, err := store.Issue(ctx, "jdoe")
		require.NoError(t, err)

		// Keep the key active so only expiry applies.
		for range 2 {
			clock.Advance(59 * time.Minute)
			valid, err := store.Validate(ctx, key)
			require.NoError(t, err)
			require.True(t, valid)
		}

		clock.Advance(2 * time.Minute)
		valid, err := store.Validate(ctx, key)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("inactive at exactly the inactivity window", func(t *testing.T) {
		store, _, clock := newTestStore(t)
		key, err := store.Issue(ctx, "jdoe")
		require.NoError(t, err)

		clock.Advance(DefaultInactivity - time.Second)
		valid, err := store.Validate(ctx, key)
		require.NoError(t, err)
		require.True(t, valid, "use just inside the window refreshes last use")

		clock.Advance(DefaultInactivity)
		valid, err = store.Validate(ctx, key)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("last use never moves backwards", func(t *testing.T) {
		store, repo, clock := newTestStore(t)
		key, err := store.Issue(ctx, "jdoe")
		require.NoError(t, err)

		clock.Advance(time.Hour)
		_, err = store.Validate(ctx, key)
		require.NoError(t, err)

		clock.Advance(-30 * time.Minute)
		valid, err := store.Validate(ctx, key)
		require.NoError(t, err)
		assert.True(t, valid)

		record, err := repo.GetByKey(ctx, key)
		require.NoError(t, err)
		assert.True(t, record.LastUsedAt.Equal(clock.now.Add(30*time.Minute)))
	})
}

func TestStore_ValidateMigratesLegacyKey(t *testing.T) {
	ctx := context.Background()
	store, repo, clock := newTestStore(t)

	require.NoError(t, repo.Create(ctx, &models.APIKey{Key: "legacy-key", Username: "olduser"}))

	valid, err := store.Validate(ctx, "legacy-key")
	require.NoError(t, err)
	assert.True(t, valid)

	record, err := repo.GetByKey(ctx, "legacy-key")
	require.NoError(t, err)
	assert.True(t, record.CreatedAt.Equal(clock.now))
	assert.True(t, record.ExpiresAt.Equal(clock.now.Add(DefaultExpiration)))
	assert.True(t, record.LastUsedAt.Equal(clock.now))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	key, err := store.Issue(ctx, "jdoe")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is a no-op")

	_, ok, err := store.GetOwner(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Issue(ctx, "asmith")
	require.NoError(t, err)
	require.NoError(t, store.DeleteForUser(ctx, "asmith"))
	_, ok, err = store.GetKeyFor(ctx, "asmith")
	require.NoError(t, err)
	assert.False(t, ok)
}

// MockAPIKeyRepository is a mock implementation of repository.APIKeyRepository
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAPIKeyRepository) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) GetByUsername(ctx context.Context, username string) (*models.APIKey, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) Replace(ctx context.Context, key *models.APIKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAPIKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAPIKeyRepository) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAPIKeyRepository) DeleteByUsername(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockAPIKeyRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestStore_PersistenceErrors(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection refused")

	t.Run("lookup failure is returned", func(t *testing.T) {
		repo := new(MockAPIKeyRepository)
		repo.On("GetByKey", ctx, "k").Return(nil, dbErr)

		_, err := NewStore(repo).Validate(ctx, "k")
		assert.ErrorIs(t, err, dbErr)
		repo.AssertExpectations(t)
	})

	t.Run("touch failure is returned", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		repo := new(MockAPIKeyRepository)
		repo.On("GetByKey", ctx, "k").Return(&models.APIKey{
			Key:        "k",
			Username:   "jdoe",
			CreatedAt:  now.Add(-time.Hour),
			ExpiresAt:  now.Add(time.Hour),
			LastUsedAt: now.Add(-time.Minute),
		}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*models.APIKey")).Return(dbErr)

		_, err := NewStore(repo).WithClock(func() time.Time { return now }).Validate(ctx, "k")
		assert.ErrorIs(t, err, dbErr)
		repo.AssertExpectations(t)
	})

	t.Run("issue lookup failure is returned", func(t *testing.T) {
		repo := new(MockAPIKeyRepository)
		repo.On("GetByUsername", ctx, "jdoe").Return(nil, dbErr)

		_, err := NewStore(repo).Issue(ctx, "jdoe")
		assert.ErrorIs(t, err, dbErr)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
