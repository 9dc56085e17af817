package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/db/dbtest"
	"github.com/venicegeo/pz-idam/internal/repository"
	"github.com/venicegeo/pz-idam/internal/services/apikey"
)

type stubSource map[string]auth.Attributes

func (s stubSource) LookupAttributes(ctx context.Context, username string) (auth.Attributes, error) {
	attrs, ok := s[username]
	if !ok {
		return auth.Attributes{}, errors.New("provider unavailable")
	}
	return attrs, nil
}

func TestVerifier_Run(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	profiles := repository.NewBunUserProfileRepository(db)
	keys := apikey.NewStore(repository.NewBunAPIKeyRepository(db))
	reconciler := NewReconciler(profiles)

	for _, name := range []string{"active", "changed", "revoked", "unreachable"} {
		_, err := reconciler.Reconcile(ctx, auth.Attributes{
			Username: name, DistinguishedName: "CN=" + name, Country: "US", AdminCode: "A", DutyCode: "D",
		})
		require.NoError(t, err)
		_, err = keys.Issue(ctx, name)
		require.NoError(t, err)
	}

	source := stubSource{
		"active":  {Username: "active", Country: "US", AdminCode: "A", DutyCode: "D"},
		"changed": {Username: "changed", Country: "US", ServiceOrAgency: "NGA"},
		"revoked": {Username: "revoked", Country: "US", AdminCode: "A"},
	}

	summary, err := NewVerifier(profiles, source, keys).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerifySummary{Checked: 4, Updated: 1, Removed: 1, Failed: 1}, summary)

	_, err = profiles.GetByUsername(ctx, "revoked")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, ok, err := keys.GetKeyFor(ctx, "revoked")
	require.NoError(t, err)
	assert.False(t, ok)

	changed, err := profiles.GetByUsername(ctx, "changed")
	require.NoError(t, err)
	assert.Equal(t, "NGA", changed.AdminCode)
	assert.Equal(t, "NGA", changed.DutyCode)

	for _, name := range []string{"active", "unreachable"} {
		_, ok, err := keys.GetKeyFor(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok, "%s keeps its key", name)
	}
}

func TestVerifier_EmptyStore(t *testing.T) {
	db := dbtest.New(t)
	v := NewVerifier(
		repository.NewBunUserProfileRepository(db),
		stubSource{},
		apikey.NewStore(repository.NewBunAPIKeyRepository(db)),
	)

	summary, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary)
}
