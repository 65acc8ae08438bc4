package client

import "github.com/shuttletrack/api/internal/model"

// GuardState is what the route guard knows about the session. Resolved is
// false while session restoration is still in flight; guards must not
// redirect before it flips.
type GuardState struct {
	Resolved      bool
	Authenticated bool
	Role          string
}

// RouteDecision tells the caller what to render for a guarded route.
type RouteDecision struct {
	Loading    bool
	Allow      bool
	RedirectTo string
}

// Entry points per role. An unauthenticated visitor lands on the driver
// login, which doubles as the app's front door.
const (
	DriverHome  = "/driver"
	StudentHome = "/student"
	AdminHome   = "/"
)

// GuardRoute decides whether a session may enter a route that requires the
// given role. Unauthenticated visitors are sent to the login entry of the
// role they tried to reach; a role mismatch bounces the user to their own
// home instead.
func GuardRoute(state GuardState, requiredRole string) RouteDecision {
	if !state.Resolved {
		return RouteDecision{Loading: true}
	}
	if !state.Authenticated {
		return RouteDecision{RedirectTo: loginEntry(requiredRole)}
	}
	if requiredRole != "" && state.Role != requiredRole {
		return RouteDecision{RedirectTo: roleHome(state.Role)}
	}
	return RouteDecision{Allow: true}
}

func loginEntry(role string) string {
	switch role {
	case model.RoleStudent:
		return StudentHome
	case model.RoleAdmin:
		return AdminHome
	default:
		return DriverHome
	}
}

func roleHome(role string) string {
	switch role {
	case model.RoleStudent:
		return StudentHome
	case model.RoleAdmin:
		return AdminHome
	default:
		return DriverHome
	}
}
