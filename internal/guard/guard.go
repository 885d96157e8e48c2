// Package guard decides which screen a request may reach given whether a
// session is present.
package guard

import "strings"

const (
	PathSignUp            = "/signup"
	PathSignIn            = "/signin"
	PathForgotPassword    = "/forgot-password"
	PathResetPassword     = "/reset-password"
	PathEmailConfirmation = "/email-confirmation"
	PathDashboard         = "/dashboard"
	PathProfile           = "/profile"
	PathSignOut           = "/signout"
	PathAuthConfirm       = "/auth/confirm"
	PathPasswordStrength  = "/api/password-strength"
	PathSessionAPI        = "/api/session"
	PathStatic            = "/static/"
)

type Action int

const (
	Allow Action = iota
	RedirectSignIn
	RedirectDashboard
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case RedirectSignIn:
		return "redirect_signin"
	case RedirectDashboard:
		return "redirect_dashboard"
	}
	return "unknown"
}

type Decision struct {
	Action Action
	Target string
}

func allow() Decision       { return Decision{Action: Allow} }
func toSignIn() Decision    { return Decision{Action: RedirectSignIn, Target: PathSignIn} }
func toDashboard() Decision { return Decision{Action: RedirectDashboard, Target: PathDashboard} }
func byPresence(has bool) Decision {
	if has {
		return toDashboard()
	}
	return toSignIn()
}

// Routes classifies paths. Prefixes ending in "/" match everything under them.
type Routes struct {
	Protected []string
	Auth      []string
	Public    []string
}

func DefaultRoutes() Routes {
	return Routes{
		Protected: []string{PathDashboard, PathProfile, PathSignOut, PathSessionAPI},
		Auth:      []string{PathSignUp, PathSignIn},
		Public: []string{
			PathForgotPassword, PathResetPassword, PathEmailConfirmation,
			PathAuthConfirm, PathPasswordStrength, PathStatic,
		},
	}
}

type Guard struct {
	routes Routes
}

func New(routes Routes) *Guard {
	return &Guard{routes: routes}
}

// Decide is a pure function of session presence and the requested path.
func (g *Guard) Decide(hasSession bool, path string) Decision {
	path = normalize(path)
	switch {
	case matches(g.routes.Protected, path):
		if hasSession {
			return allow()
		}
		return toSignIn()
	case matches(g.routes.Auth, path):
		if hasSession {
			return toDashboard()
		}
		return allow()
	case matches(g.routes.Public, path):
		return allow()
	default:
		return byPresence(hasSession)
	}
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

func matches(patterns []string, path string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path+"/", p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}
