// Package authn authenticates callers against the configured upstream
// identity provider.
//
// Exactly one variant is active per deployment, chosen from configuration at
// startup:
//
//   - DirectoryAuthenticator: LDAP simple bind (username and password only)
//   - ProviderAuthenticator: REST basic and PKI authentication with attribute lookup
//   - OAuthAuthenticator: authorization-code flow with a profile resource
//
// Request Flow:
//
//	Credentials → Router → Authenticator → Result (Attributes)
//	           ↓
//	       ProfileReconciler.Reconcile(attributes) → auth.Response{Profile}
//
// Credential rejection is a Result with Success false and no error. Only
// malformed input and an unreachable upstream are reported as errors.
package authn
