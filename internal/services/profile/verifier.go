package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/repository"
)

// AttributeSource looks up the current attributes of a user.
type AttributeSource interface {
	LookupAttributes(ctx context.Context, username string) (auth.Attributes, error)
}

// KeyRevoker removes the API key of a user.
type KeyRevoker interface {
	DeleteForUser(ctx context.Context, username string) error
}

// VerifySummary reports the outcome of one sweep.
type VerifySummary struct {
	Checked int
	Updated int
	Removed int
	Failed  int
}

// Verifier re-checks every stored profile against the provider. Users whose
// country, admin code or duty code is no longer reported lose their key and
// profile.
type Verifier struct {
	repo   repository.UserProfileRepository
	source AttributeSource
	keys   KeyRevoker
	now    func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(repo repository.UserProfileRepository, source AttributeSource, keys KeyRevoker) *Verifier {
	return &Verifier{repo: repo, source: source, keys: keys, now: time.Now}
}

// Run performs one sweep. Lookup failures skip the user; they never remove
// access.
func (v *Verifier) Run(ctx context.Context) (VerifySummary, error) {
	var summary VerifySummary

	profiles, err := v.repo.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("list profiles: %w", err)
	}

	logging.Infow("starting profile verification", "profiles", len(profiles), "event", "profileVerificationStarted")

	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		current := &profiles[i]
		summary.Checked++

		attrs, err := v.source.LookupAttributes(ctx, current.Username)
		if err != nil {
			logging.Warnf("profile verification lookup failed for %s: %v", current.Username, err)
			summary.Failed++
			continue
		}

		admin, duty := DeriveCodes(attrs.ServiceOrAgency, attrs.AdminCode, attrs.DutyCode)
		if attrs.Country == "" || admin == "" || duty == "" {
			logging.Infow("profile failed verification, removing access", "username", current.Username, "event", "userProfileVerificationFailure")
			if err := v.keys.DeleteForUser(ctx, current.Username); err != nil {
				return summary, fmt.Errorf("revoke key of %s: %w", current.Username, err)
			}
			if err := v.repo.Delete(ctx, current.Username); err != nil {
				return summary, fmt.Errorf("delete profile of %s: %w", current.Username, err)
			}
			summary.Removed++
			continue
		}

		if current.Country == attrs.Country && current.AdminCode == admin && current.DutyCode == duty {
			logging.Debugf("profile of %s verified", current.Username)
			continue
		}

		current.Country = attrs.Country
		current.AdminCode = admin
		current.DutyCode = duty
		current.LastUpdatedOn = latest(v.now().UTC(), current.CreatedOn)
		if err := v.repo.Update(ctx, current); err != nil {
			return summary, fmt.Errorf("update profile of %s: %w", current.Username, err)
		}
		summary.Updated++
	}

	logging.Infow("finished profile verification",
		"checked", summary.Checked,
		"updated", summary.Updated,
		"removed", summary.Removed,
		"failed", summary.Failed,
	)
	return summary, nil
}
