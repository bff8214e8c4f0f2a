package authclient

import "github.com/authkit/session-auth/internal/domain"

// Action tells the UI what to do with a guarded route.
type Action int

const (
	ActionRender Action = iota
	ActionLoading
	ActionRedirect
)

// Decision is the outcome of a route guard.
type Decision struct {
	Action   Action
	Location string
}

// AuthState is the capability pair route guards need.
type AuthState interface {
	CurrentUser() (*domain.PublicUser, Status)
	SetCurrentUser(user *domain.PublicUser)
}

// Guard holds the redirect targets.
type Guard struct {
	LoginPath string
	HomePath  string
}

// NewGuard returns a guard redirecting to /login and /.
func NewGuard() Guard {
	return Guard{LoginPath: "/login", HomePath: "/"}
}

// RequireAuthenticated shows a loading placeholder while verify is pending, sends
// anonymous callers to the login page and otherwise renders, syncing local state.
func (g Guard) RequireAuthenticated(state AuthState) Decision {
	user, status := state.CurrentUser()
	if status == StatusPending {
		return Decision{Action: ActionLoading}
	}
	if user == nil {
		state.SetCurrentUser(nil)
		return Decision{Action: ActionRedirect, Location: g.LoginPath}
	}
	state.SetCurrentUser(user)
	return Decision{Action: ActionRender}
}

// RequireAnonymous keeps signed-in users away from the login and register pages.
func (g Guard) RequireAnonymous(state AuthState) Decision {
	if user, _ := state.CurrentUser(); user != nil {
		return Decision{Action: ActionRedirect, Location: g.HomePath}
	}
	return Decision{Action: ActionRender}
}
