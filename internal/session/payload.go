package session

import "time"

// Payload is the content of the signed session token. It is the only state
// the edge has: every routing and proxy decision must be derivable from it.
type Payload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	TenantID  string `json:"tenantId"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`

	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// AccessTokenExpiresAt is epoch seconds; zero means the issuer did not
	// record an expiry and the broker falls back to the token's own claim.
	AccessTokenExpiresAt int64 `json:"accessTokenExpiresAt,omitempty"`
	// ExpiresAt is the session's own expiry in epoch seconds, enforced
	// independently of the outer token lifetime.
	ExpiresAt int64 `json:"expiresAt"`

	OnboardingStatus string `json:"onboardingStatus,omitempty"`
	OnboardingStep   string `json:"onboardingStep,omitempty"`
	// RequiresOnboarding is a pointer so an omitted value is
	// distinguishable from an explicit false; omission triggers the legacy
	// inference in onboarding.StateFromPayload.
	RequiresOnboarding *bool `json:"requiresOnboarding,omitempty"`
}

// HasTenant reports whether the session is bound to a tenant.
func (p Payload) HasTenant() bool {
	return p.TenantID != ""
}

// SessionExpired reports whether the payload's own expiry has passed.
func (p Payload) SessionExpired(now time.Time) bool {
	return p.ExpiresAt > 0 && now.Unix() >= p.ExpiresAt
}

// WithRotatedTokens returns a copy carrying new upstream credentials while
// keeping every identity field unchanged.
func (p Payload) WithRotatedTokens(accessToken, refreshToken string, accessExpiresAt int64) Payload {
	next := p
	next.AccessToken = accessToken
	if refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	next.AccessTokenExpiresAt = accessExpiresAt
	return next
}
