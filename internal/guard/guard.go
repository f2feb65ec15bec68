// Package guard gates the gateway's SPA-facing routes: a request must
// carry a valid browser-binding cookie matching the stored session
// before the access policy is even consulted.
package guard

import (
	"context"
	"net/http"

	"github.com/mmhmddd/omega-gateway/internal/auth"
	"github.com/mmhmddd/omega-gateway/internal/model"
	"github.com/mmhmddd/omega-gateway/internal/policy"
	"github.com/mmhmddd/omega-gateway/internal/routes"
	"github.com/mmhmddd/omega-gateway/internal/session"
)

type Guard struct {
	store        *session.Store
	cookieSecret string
	loginRoute   string
	defaultRoute string
}

func New(store *session.Store, cookieSecret, loginRoute, defaultRoute string) *Guard {
	return &Guard{
		store:        store,
		cookieSecret: cookieSecret,
		loginRoute:   loginRoute,
		defaultRoute: defaultRoute,
	}
}

type userKey struct{}

// UserFromContext returns the session user a guard middleware resolved
// for this request, or nil.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey{}).(*model.User)
	return user
}

// sessionUser resolves the request to the current session user: the
// cookie must parse and name the same user the store holds, and the
// store must still hold a token.
func (g *Guard) sessionUser(r *http.Request) *model.User {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := auth.ParseBrowserToken(g.cookieSecret, cookie.Value)
	if err != nil {
		return nil
	}
	if !g.store.IsAuthenticated() {
		return nil
	}
	user := g.store.CurrentUser()
	if user == nil || user.ID != claims.UserID {
		return nil
	}
	return user
}

// RequireSession redirects to the login route when no session exists.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := g.sessionUser(r)
		if user == nil {
			http.Redirect(w, r, g.loginRoute, http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRouteAccess gates a request by the route key of its path.
// Paths with no key pass for any authenticated user; a denied key
// redirects to the default landing route. Must run after
// RequireSession.
func (g *Guard) RequireRouteAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			http.Redirect(w, r, g.loginRoute, http.StatusFound)
			return
		}
		key := routes.KeyFor(r.URL.Path)
		if key != "" && !policy.HasRouteAccess(user, key) {
			http.Redirect(w, r, g.defaultRoute, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles is the role-list guard variant. Must run after
// RequireSession.
func (g *Guard) RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				http.Redirect(w, r, g.loginRoute, http.StatusFound)
				return
			}
			if !policy.RoleAllowed(user, allowed...) {
				http.Redirect(w, r, g.defaultRoute, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
