package onboarding

import (
	"testing"

	"github.com/loopcrm/edgegate/internal/session"
	"github.com/stretchr/testify/assert"
)

const defaultAppPath = "/app/dashboard"

func TestResolveDestinationStepTable(t *testing.T) {
	cases := []struct {
		step string
		want string
	}{
		{"signup", PathCreateBusiness},
		{"create-business", PathCreateBusiness},
		{"branding", PathSetup},
		{"modules", PathSetup},
		{"business-hours", PathSetup},
		{"invite-team", PathInviteTeam},
		{"complete", PathComplete},
	}
	for _, tc := range cases {
		t.Run(tc.step, func(t *testing.T) {
			state := State{Status: StatusProfileCreated, Step: tc.step, Required: true}
			got := ResolveDestination(state, true, "/app/contacts", defaultAppPath)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveDestinationUnknownStep(t *testing.T) {
	state := State{Status: StatusProfileCreated, Step: "mystery", Required: true}

	assert.Equal(t, PathSetup, ResolveDestination(state, true, "/app", defaultAppPath))
	assert.Equal(t, PathCreateBusiness, ResolveDestination(state, false, "/app", defaultAppPath))
}

func TestResolveDestinationSatisfiedWithTenant(t *testing.T) {
	state := State{Status: StatusCompleted, Required: false}

	// Intended path inside the app area is honored.
	assert.Equal(t, "/app/deals", ResolveDestination(state, true, "/app/deals", defaultAppPath))
	// Anything else falls back to the default app path.
	assert.Equal(t, defaultAppPath, ResolveDestination(state, true, "/login", defaultAppPath))
	assert.Equal(t, defaultAppPath, ResolveDestination(state, true, "", defaultAppPath))
}

func TestResolveDestinationSatisfiedWithoutTenant(t *testing.T) {
	state := State{Status: StatusCompleted, Required: false}
	assert.Equal(t, PathCreateBusiness, ResolveDestination(state, false, "/app/deals", defaultAppPath))
}

func TestCompletedTenantNeverRoutedIntoOnboarding(t *testing.T) {
	// A session with a tenant and completed onboarding must never resolve
	// to an onboarding path, whatever the step or intent says.
	steps := []string{"", "signup", "create-business", "modules", "invite-team", "complete", "junk"}
	intents := []string{"/", "/app/deals", "/onboarding/setup", "/login"}
	for _, step := range steps {
		for _, intent := range intents {
			state := State{Status: StatusCompleted, Step: step, Required: false}
			got := ResolveDestination(state, true, intent, defaultAppPath)
			assert.NotContains(t, got, "/onboarding", "step=%q intent=%q", step, intent)
		}
	}
}

func TestResolveDestinationIdempotent(t *testing.T) {
	states := []State{
		{Status: StatusNotStarted, Step: "signup", Required: true},
		{Status: StatusProfileCreated, Step: "modules", Required: true},
		{Status: StatusTeamInvited, Step: "complete", Required: true},
		{Status: StatusCompleted, Required: false},
		{Status: StatusCompleted, Step: "junk", Required: false},
	}
	for _, state := range states {
		for _, hasTenant := range []bool{true, false} {
			first := ResolveDestination(state, hasTenant, "/app/contacts", defaultAppPath)
			second := ResolveDestination(state, hasTenant, first, defaultAppPath)
			assert.Equal(t, first, second, "state=%+v hasTenant=%v", state, hasTenant)
		}
	}
}

func TestStateFromPayloadExplicitFlag(t *testing.T) {
	truthy := true
	falsy := false

	p := session.Payload{UserID: "u1", TenantID: "t1", OnboardingStatus: StatusNotStarted, RequiresOnboarding: &truthy}
	assert.True(t, StateFromPayload(p).Required)

	p.RequiresOnboarding = &falsy
	assert.False(t, StateFromPayload(p).Required)
}

func TestStateFromPayloadInference(t *testing.T) {
	// Omitted flag: required iff no tenant or never started.
	p := session.Payload{UserID: "u1", TenantID: "", OnboardingStatus: StatusCompleted}
	assert.True(t, StateFromPayload(p).Required)

	p = session.Payload{UserID: "u1", TenantID: "t1", OnboardingStatus: StatusNotStarted}
	assert.True(t, StateFromPayload(p).Required)

	p = session.Payload{UserID: "u1", TenantID: "t1", OnboardingStatus: StatusSetupCompleted}
	assert.False(t, StateFromPayload(p).Required)
}

func TestNextStepPathSkipsCreateBusinessWithTenant(t *testing.T) {
	state := State{Status: StatusBusinessCreated, Step: "create-business", Required: true}
	assert.Equal(t, PathSetup, NextStepPath(state, true, defaultAppPath))

	// Without a tenant the create-business step stands.
	assert.Equal(t, PathCreateBusiness, NextStepPath(state, false, defaultAppPath))
}
