package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDefaults(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		path string
		want Class
	}{
		{"/", Public},
		{"/pricing", Public},
		{"/about/team", Public},
		{"/login", GuestOnly},
		{"/register", GuestOnly},
		{"/signup", GuestOnly},
		{"/forgot-password", GuestOnly},
		{"/app", Protected},
		{"/app/dashboard", Protected},
		{"/app/contacts/42", Protected},
		{"/onboarding", Onboarding},
		{"/onboarding/setup", Onboarding},
		{"/onboarding/create-business", Onboarding},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, table.Classify(tc.path))
		})
	}
}

func TestClassifyPrefixBoundaries(t *testing.T) {
	table := DefaultTable()

	// Prefix matches are segment-aware: /application is not /app.
	assert.Equal(t, Public, table.Classify("/application"))
	assert.Equal(t, Public, table.Classify("/loginhelp"))
	assert.Equal(t, Public, table.Classify("/onboarding-guide"))
}

func TestIsRoot(t *testing.T) {
	table := DefaultTable()
	assert.True(t, table.IsRoot("/"))
	assert.False(t, table.IsRoot("/pricing"))
}

func TestStaticHolder(t *testing.T) {
	table := DefaultTable()
	table.Protected = []string{"/workspace"}

	h := NewStaticHolder(table)
	assert.Equal(t, Protected, h.Get().Classify("/workspace/inbox"))
	assert.Equal(t, Public, h.Get().Classify("/app/inbox"))
}

func TestValidateTable(t *testing.T) {
	table := DefaultTable()
	assert.NoError(t, validateTable(table))

	table.Protected = nil
	assert.Error(t, validateTable(table))

	table = DefaultTable()
	table.LoginPath = ""
	assert.Error(t, validateTable(table))

	table = DefaultTable()
	table.DefaultAppPath = " "
	assert.Error(t, validateTable(table))
}
