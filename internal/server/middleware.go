package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"driverhub/internal/identity"

	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
)

// Context key types to avoid collisions
type contextKey string

const contextKeyIdentity contextKey = "identity"

const cookieSessionName = "driverhub_session"

// session is the encrypted cookie payload. A guest session carries only the
// anonymous ID; signing in or submitting fills in the rest.
type session struct {
	GuestID     string
	AccessToken string
	Email       string
	Upgraded    bool
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// RequireIdentity resolves the caller from the session cookie and adds the
// identity to the request context. Guests pass with their anonymous ID; a
// signed-in caller's access token is verified against the pool's JWKS.
func (s *Service) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.readSession(r)
		if err != nil {
			s.logger.WithError(err).Debug("no usable session cookie")
			s.respondError(w, http.StatusUnauthorized, "session required")
			return
		}

		ident, err := s.resolveIdentity(r.Context(), sess)
		if err != nil {
			s.logger.WithError(err).Warn("failed to resolve session identity")
			s.clearSession(w)
			s.respondError(w, http.StatusUnauthorized, "session expired")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyIdentity, ident)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) resolveIdentity(ctx context.Context, sess *session) (*identity.Identity, error) {
	if sess.AccessToken != "" {
		return s.identityFromToken(ctx, sess.AccessToken)
	}

	if sess.GuestID == "" {
		return nil, errNoSessionSubject
	}

	return &identity.Identity{
		ID:        sess.GuestID,
		Email:     sess.Email,
		Anonymous: !sess.Upgraded,
	}, nil
}

func (s *Service) identityFromToken(ctx context.Context, accessToken string) (*identity.Identity, error) {
	set, err := s.jwksCache.Lookup(ctx, s.jwksURL)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(
		[]byte(accessToken),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, err
	}

	// The pool username is the original anonymous ID, which is the
	// application row's key.
	var username string
	if err := token.Get("username", &username); err != nil || username == "" {
		return nil, errNoSessionSubject
	}

	var email string
	// email is optional on access tokens
	_ = token.Get("email", &email)

	return &identity.Identity{ID: username, Email: email, Anonymous: false}, nil
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path != "/" && strings.HasSuffix(path, "/") {
			newPath := strings.TrimSuffix(path, "/")
			newURL := *r.URL
			newURL.Path = newPath

			http.Redirect(w, r, newURL.String(), http.StatusMovedPermanently)
			return
		}

		next.ServeHTTP(w, r)
	})
}
