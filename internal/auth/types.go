package auth

import (
	"fmt"

	"github.com/venicegeo/pz-idam/internal/db/models"
)

// Action is a request a caller wants to make against the platform.
type Action struct {
	Method   string `json:"requestMethod"`
	Resource string `json:"uri"`
}

// KeyName is the permission map key for the action, e.g. "POST:job".
func (a Action) KeyName() string {
	return a.Method + ":" + a.Resource
}

func (a Action) String() string {
	return a.KeyName()
}

// Check is an authorization request. At least one of Username and APIKey
// must be set; when both are set they must name the same identity.
type Check struct {
	Username string  `json:"username,omitempty"`
	APIKey   string  `json:"apiKey,omitempty"`
	Action   *Action `json:"action"`
}

func (c Check) String() string {
	action := "null"
	if c.Action != nil {
		action = c.Action.String()
	}
	return fmt.Sprintf("User %s requesting Action %s", c.Username, action)
}

// Response is the outcome of an authentication or authorization decision.
type Response struct {
	Success bool                `json:"isAuthSuccess"`
	Details string              `json:"details,omitempty"`
	Profile *models.UserProfile `json:"userProfile,omitempty"`
}

// Allow returns a successful response.
func Allow() Response {
	return Response{Success: true}
}

// Deny returns a failed response carrying a human readable reason.
func Deny(format string, args ...any) Response {
	return Response{Success: false, Details: fmt.Sprintf(format, args...)}
}

// Attributes are the identity attributes an upstream provider reports for
// an authenticated user. AdminCode and DutyCode are the provider's raw
// organization codes; the final profile codes also depend on ServiceOrAgency.
type Attributes struct {
	Username          string
	DistinguishedName string
	Country           string
	ServiceOrAgency   string
	AdminCode         string
	DutyCode          string
}
