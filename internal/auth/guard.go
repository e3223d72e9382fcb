// Package auth - guard.go decides whether a protected view may render for the
// current session. Evaluate is pure: it reads a snapshot of the session and never
// changes it, so calling it twice with the same input gives the same answer.
package auth

// Decision is the outcome of a guard evaluation.
type Decision int

const (
	// Allow renders the protected view.
	Allow Decision = iota
	// Wait renders a neutral loading view because the session is still resolving.
	Wait
	// Redirect sends the visitor to the home page.
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	default:
		return "redirect"
	}
}

// RedirectTarget is where Redirect decisions send the visitor.
const RedirectTarget = "/"

// GuardInput is the part of the session the guard looks at.
type GuardInput struct {
	Loading bool
	HasUser bool
	IsAdmin bool
}

// Evaluate applies the guard rules in order: a loading session always waits,
// an anonymous visitor is redirected, and a signed-in non-admin is redirected
// from admin-only views.
func Evaluate(in GuardInput, requireAdmin bool) Decision {
	if in.Loading {
		return Wait
	}
	if !in.HasUser {
		return Redirect
	}
	if requireAdmin && !in.IsAdmin {
		return Redirect
	}
	return Allow
}

// LandingPath is where a freshly signed-in user goes after the auth callback.
func LandingPath(isAdmin bool) string {
	if isAdmin {
		return "/admin"
	}
	return "/"
}
