// Package routing classifies request paths against static prefix tables.
// Classification is pure and stateless; the table itself can be reloaded at
// runtime from routes.yml.
package routing

import "strings"

// Class is the routing class of a request path.
type Class int

const (
	Public Class = iota
	GuestOnly
	Protected
	Onboarding
)

func (c Class) String() string {
	switch c {
	case GuestOnly:
		return "guest_only"
	case Protected:
		return "protected"
	case Onboarding:
		return "onboarding"
	default:
		return "public"
	}
}

// Table holds the prefix tables and the well-known destinations the
// gateway redirects to.
type Table struct {
	GuestOnly  []string `mapstructure:"guestOnly"`
	Protected  []string `mapstructure:"protected"`
	Onboarding []string `mapstructure:"onboarding"`

	RootPath       string `mapstructure:"rootPath"`
	LoginPath      string `mapstructure:"loginPath"`
	SignupPath     string `mapstructure:"signupPath"`
	DefaultAppPath string `mapstructure:"defaultAppPath"`
}

// DefaultTable returns the routing table shipped with the application.
// Anything not matched by a prefix is public.
func DefaultTable() Table {
	return Table{
		GuestOnly:      []string{"/login", "/register", "/signup", "/forgot-password"},
		Protected:      []string{"/app"},
		Onboarding:     []string{"/onboarding"},
		RootPath:       "/",
		LoginPath:      "/login",
		SignupPath:     "/signup",
		DefaultAppPath: "/app/dashboard",
	}
}

// Classify resolves the routing class for a request path. Guest-only wins
// over the other tables so /login stays reachable even under a broad
// protected prefix.
func (t Table) Classify(path string) Class {
	switch {
	case matchesAny(path, t.GuestOnly):
		return GuestOnly
	case matchesAny(path, t.Onboarding):
		return Onboarding
	case matchesAny(path, t.Protected):
		return Protected
	default:
		return Public
	}
}

// IsRoot reports whether the path is the marketing root, the one public
// page that redirects authenticated users.
func (t Table) IsRoot(path string) bool {
	root := t.RootPath
	if root == "" {
		root = "/"
	}
	return path == root
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
