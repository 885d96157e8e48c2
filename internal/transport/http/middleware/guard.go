package middleware

import (
	"net/http"
	"strings"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/guard"
	applog "github.com/ErlanBelekov/backup-desk/internal/log"
	"github.com/ErlanBelekov/backup-desk/internal/metrics"
	"github.com/gin-gonic/gin"
)

// SessionKey is the gin context key holding the *domain.Session the guard
// admitted the request with. Absent when there is no session.
const SessionKey = "session"

// LoadingTemplate is rendered while the first session fetch is in flight.
const LoadingTemplate = "loading"

// SessionState is the read side of the session listener.
type SessionState interface {
	Current() *domain.Session
	Loading() bool
}

// Guard applies the route guard to every request. Until the initial session
// fetch completes it answers 503 with a self-refreshing loading screen,
// except for static assets.
func Guard(g *guard.Guard, sessions SessionState) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isStatic(path) {
			c.Next()
			return
		}

		if sessions.Loading() {
			metrics.GuardDecisionsTotal.WithLabelValues("loading").Inc()
			c.Header("Retry-After", "1")
			c.HTML(http.StatusServiceUnavailable, LoadingTemplate, nil)
			c.Abort()
			return
		}

		s := sessions.Current()
		d := g.Decide(s != nil, path)
		metrics.GuardDecisionsTotal.WithLabelValues(d.Action.String()).Inc()

		if d.Action != guard.Allow {
			c.Redirect(http.StatusSeeOther, d.Target)
			c.Abort()
			return
		}

		if s != nil {
			c.Set(SessionKey, s)
			c.Request = c.Request.WithContext(applog.WithUserID(c.Request.Context(), s.User.ID))
		}
		c.Next()
	}
}

func isStatic(path string) bool {
	return strings.HasPrefix(path, guard.PathStatic)
}
