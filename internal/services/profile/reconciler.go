// Package profile keeps the locally stored user profiles in step with the
// attributes reported by the identity provider.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/repository"
)

// NationalAgency is the service-or-agency value whose members carry it as
// both their admin and duty code.
const NationalAgency = "NGA"

// DeriveCodes returns the admin and duty codes of a user.
func DeriveCodes(serviceOrAgency, adminOrgCode, dutyCode string) (string, string) {
	if strings.EqualFold(strings.TrimSpace(serviceOrAgency), NationalAgency) {
		return NationalAgency, NationalAgency
	}
	return adminOrgCode, dutyCode
}

// Reconciler creates or refreshes the profile of an authenticated user.
type Reconciler struct {
	repo repository.UserProfileRepository
	now  func() time.Time
}

// NewReconciler creates a Reconciler using the wall clock.
func NewReconciler(repo repository.UserProfileRepository) *Reconciler {
	return &Reconciler{repo: repo, now: time.Now}
}

// WithClock replaces the time source (tests).
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile stores attrs and returns the resulting profile. A profile found
// by username and distinguished name is refreshed in place, keeping stored
// attributes the provider did not report. Any other pair is a new identity:
// its profile starts over with createdOn set to now, replacing an older row
// for the same username whose distinguished name changed.
func (r *Reconciler) Reconcile(ctx context.Context, attrs auth.Attributes) (*models.UserProfile, error) {
	if attrs.Username == "" {
		return nil, fmt.Errorf("reconcile profile: username is required")
	}

	admin, duty := DeriveCodes(attrs.ServiceOrAgency, attrs.AdminCode, attrs.DutyCode)
	now := r.now().UTC()

	existing, err := r.repo.GetByIdentity(ctx, attrs.Username, attrs.DistinguishedName)
	switch {
	case err == nil:
		setIfPresent(&existing.Country, attrs.Country)
		setIfPresent(&existing.AdminCode, admin)
		setIfPresent(&existing.DutyCode, duty)
		existing.LastUpdatedOn = latest(now, existing.CreatedOn)

		if err := r.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	profile := &models.UserProfile{
		Username:          attrs.Username,
		DistinguishedName: attrs.DistinguishedName,
		Country:           attrs.Country,
		AdminCode:         admin,
		DutyCode:          duty,
		CreatedOn:         now,
		LastUpdatedOn:     now,
	}

	previous, err := r.repo.GetByUsername(ctx, attrs.Username)
	switch {
	case err == nil:
		logging.Warnf("distinguished name of %s changed from %q to %q", attrs.Username, previous.DistinguishedName, attrs.DistinguishedName)
		if err := r.repo.Replace(ctx, profile); err != nil {
			return nil, err
		}
	case errors.Is(err, repository.ErrNotFound):
		if err := r.repo.Create(ctx, profile); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	logging.Infow("created user profile", "username", profile.Username, "dn", profile.DistinguishedName)
	return profile, nil
}

// Get returns the profile of username.
func (r *Reconciler) Get(ctx context.Context, username string) (*models.UserProfile, bool, error) {
	p, err := r.repo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Count returns the number of stored profiles.
func (r *Reconciler) Count(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
