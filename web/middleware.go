package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKeySessionID struct{}

const sessionCookieName = "shop_session-id"
const sessionCookieMaxAge = 60 * 60 * 48

// sessionID returns the session id the middleware stored on the context.
func sessionID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionID{}).(string)
	return v
}

// sessionMiddleware reads the session cookie, minting a fresh id for new
// visitors, and makes the id available to handlers via the context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookieName); err == nil {
			id = c.Value
		} else {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:   sessionCookieName,
				Value:  id,
				MaxAge: sessionCookieMaxAge,
			})
		}
		ctx := context.WithValue(r.Context(), ctxKeySessionID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// logMiddleware emits one structured log line per request.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"http.req.method":   r.Method,
			"http.req.path":     r.URL.Path,
			"http.resp.status":  rec.status,
			"http.resp.took_ms": time.Since(start).Milliseconds(),
		}).Debug("request complete")
	})
}
