// Package onboarding decides where a session must land: a pure mapping from
// onboarding state and intended path to a destination path, with no I/O and
// no transport types.
package onboarding

import (
	"strings"

	"github.com/loopcrm/edgegate/internal/session"
)

// Onboarding statuses, in flow order.
const (
	StatusNotStarted      = "not_started"
	StatusProfileCreated  = "profile_created"
	StatusBusinessCreated = "business_created"
	StatusSetupCompleted  = "setup_completed"
	StatusTeamInvited     = "team_invited"
	StatusCompleted       = "completed"
)

// Onboarding flow paths.
const (
	PathCreateBusiness = "/onboarding/create-business"
	PathSetup          = "/onboarding/setup"
	PathInviteTeam     = "/onboarding/invite-team"
	PathComplete       = "/onboarding/complete"
)

// appPathPrefix marks the protected app area for the intended-path check.
// It matches the default protected prefix in the routing table; kept as a
// local constant so the resolver stays transport-free.
const appPathPrefix = "/app"

// State is the onboarding progress carried by a session.
type State struct {
	Status   string
	Step     string
	Required bool
}

// StateFromPayload derives onboarding state from a session payload. When
// the signer omitted requiresOnboarding the legacy inference applies:
// required iff the session has no tenant or never started. That inference
// deliberately fails open toward app access so established tenants are
// never looped back into onboarding.
func StateFromPayload(p session.Payload) State {
	required := false
	if p.RequiresOnboarding != nil {
		required = *p.RequiresOnboarding
	} else {
		required = !p.HasTenant() || p.OnboardingStatus == StatusNotStarted
	}
	return State{
		Status:   p.OnboardingStatus,
		Step:     p.OnboardingStep,
		Required: required,
	}
}

// stepPaths maps a free-form step id to its onboarding page.
var stepPaths = map[string]string{
	"signup":          PathCreateBusiness,
	"create-business": PathCreateBusiness,
	"branding":        PathSetup,
	"modules":         PathSetup,
	"business-hours":  PathSetup,
	"invite-team":     PathInviteTeam,
	"complete":        PathComplete,
}

// ResolveDestination maps (state, tenant presence, intended path) to the
// path the user must land on. Deterministic and idempotent: resolving the
// function's own output for an already-resolved state returns that same
// path, so redirect chains cannot loop.
func ResolveDestination(state State, hasTenant bool, intendedPath, defaultAppPath string) string {
	if state.Required && state.Status != StatusCompleted {
		if path, ok := stepPaths[strings.TrimSpace(state.Step)]; ok {
			return path
		}
		if hasTenant {
			return PathSetup
		}
		return PathCreateBusiness
	}

	if hasTenant {
		if strings.HasPrefix(intendedPath, appPathPrefix) {
			return intendedPath
		}
		return defaultAppPath
	}

	// Onboarding nominally satisfied but no tenant: inconsistent state,
	// fall back to tenant creation.
	return PathCreateBusiness
}

// NextStepPath resolves the destination while skipping the tenant-creation
// step for sessions that already hold a tenant, so a stale create-business
// request is forwarded to the step that actually comes next.
func NextStepPath(state State, hasTenant bool, defaultAppPath string) string {
	dest := ResolveDestination(state, hasTenant, defaultAppPath, defaultAppPath)
	if hasTenant && dest == PathCreateBusiness {
		return PathSetup
	}
	return dest
}
