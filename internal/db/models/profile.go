package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserProfile holds the identity attributes last reported by the upstream
// provider for a user.
type UserProfile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	Username          string    `bun:"username,pk" json:"username"`
	DistinguishedName string    `bun:"distinguished_name,notnull,default:''" json:"distinguishedName"`
	Country           string    `bun:"country,notnull,default:''" json:"country"`
	AdminCode         string    `bun:"admin_code,notnull,default:''" json:"adminCode"`
	DutyCode          string    `bun:"duty_code,notnull,default:''" json:"dutyCode"`
	CreatedOn         time.Time `bun:"created_on,notnull" json:"createdOn"`
	LastUpdatedOn     time.Time `bun:"last_updated_on,notnull" json:"lastUpdatedOn"`
}

// IsComplete reports whether every attribute required for access is present.
func (p *UserProfile) IsComplete() bool {
	return p.Country != "" && p.AdminCode != "" && p.DutyCode != ""
}
