package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venicegeo/pz-idam/internal/db/dbtest"
	"github.com/venicegeo/pz-idam/internal/db/models"
)

func TestBunUserProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBunUserProfileRepository(dbtest.New(t))
	created := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	profile := &models.UserProfile{
		Username:          "alice",
		DistinguishedName: "uid=alice,ou=people,dc=example,dc=com",
		Country:           "US",
		AdminCode:         "A1",
		DutyCode:          "D1",
		CreatedOn:         created,
		LastUpdatedOn:     created,
	}
	require.NoError(t, repo.Create(ctx, profile))

	t.Run("lookup by identity requires matching dn", func(t *testing.T) {
		got, err := repo.GetByIdentity(ctx, "alice", profile.DistinguishedName)
		require.NoError(t, err)
		assert.Equal(t, "US", got.Country)

		_, err = repo.GetByIdentity(ctx, "alice", "uid=alice,ou=other")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update keeps created_on", func(t *testing.T) {
		changed := *profile
		changed.Country = "GB"
		changed.CreatedOn = created.Add(48 * time.Hour)
		changed.LastUpdatedOn = created.Add(72 * time.Hour)
		require.NoError(t, repo.Update(ctx, &changed))

		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "GB", got.Country)
		assert.True(t, got.CreatedOn.Equal(created))
		assert.True(t, got.LastUpdatedOn.Equal(created.Add(72*time.Hour)))
	})

	t.Run("replace overwrites created_on", func(t *testing.T) {
		later := created.Add(96 * time.Hour)
		require.NoError(t, repo.Replace(ctx, &models.UserProfile{
			Username:          "alice",
			DistinguishedName: "CN=alice-new",
			CreatedOn:         later,
			LastUpdatedOn:     later,
		}))

		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "CN=alice-new", got.DistinguishedName)
		assert.Empty(t, got.Country)
		assert.True(t, got.CreatedOn.Equal(later))
		assert.True(t, got.LastUpdatedOn.Equal(later))

		require.ErrorIs(t, repo.Replace(ctx, &models.UserProfile{Username: "nobody"}), ErrNotFound)
	})

	t.Run("update unknown profile", func(t *testing.T) {
		err := repo.Update(ctx, &models.UserProfile{Username: "nobody"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list count delete", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.UserProfile{
			Username:      "bob",
			CreatedOn:     created,
			LastUpdatedOn: created,
		}))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].Username)
		assert.Equal(t, "bob", all[1].Username)

		require.NoError(t, repo.Delete(ctx, "bob"))
		require.NoError(t, repo.Delete(ctx, "bob"))

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
