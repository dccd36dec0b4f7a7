package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"driverhub/pkg/types"
)

var errNoSessionSubject = errors.New("session has no subject")

const guestSessionAge = 90 * 24 * time.Hour

// handleCreateSession mints an anonymous identity so an applicant can start
// filling the form before committing to an account. Idempotent: an existing
// session is returned as-is.
func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.readSession(r); err == nil {
		if ident, err := s.resolveIdentity(r.Context(), sess); err == nil {
			s.respondJSON(w, http.StatusOK, map[string]any{
				"id":        ident.ID,
				"anonymous": ident.Anonymous,
			})
			return
		}
	}

	ident, err := s.idents.SignInAnonymously(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to mint anonymous identity")
		s.internalServerError(w)
		return
	}

	if err := s.writeSession(w, &session{GuestID: ident.ID}, guestSessionAge); err != nil {
		s.logger.WithError(err).Error("failed to write session cookie")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{
		"id":        ident.ID,
		"anonymous": true,
	})
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		s.respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	accessToken, expiresIn, err := s.idents.SignIn(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, types.ErrInvalidCredentials) {
			s.respondError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		s.logger.WithError(err).Error("failed to sign in user")
		s.internalServerError(w)
		return
	}

	ident, err := s.identityFromToken(r.Context(), accessToken)
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve identity from fresh token")
		s.internalServerError(w)
		return
	}

	sess := &session{
		GuestID:     ident.ID,
		AccessToken: accessToken,
		Email:       ident.Email,
		Upgraded:    true,
	}
	if err := s.writeSession(w, sess, time.Duration(expiresIn)*time.Second); err != nil {
		s.logger.WithError(err).Error("failed to write session cookie")
		s.internalServerError(w)
		return
	}

	s.logger.WithField("user_id", ident.ID).Info("user logged in")

	s.respondJSON(w, http.StatusOK, map[string]any{
		"id":        ident.ID,
		"email":     ident.Email,
		"anonymous": false,
	})
}

// handleLogout drops the session and any draft still waiting in the
// auto-save window. Subscriptions for the old identity die with the next
// websocket teardown.
func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.readSession(r); err == nil && sess.GuestID != "" {
		s.autosaver.Cancel(sess.GuestID)
	}

	s.clearSession(w)
	s.respondJSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (s *Service) readSession(r *http.Request) (*session, error) {
	cookie, err := r.Cookie(cookieSessionName)
	if err != nil {
		return nil, err
	}

	var sess session
	if err := s.cookie.Decode(cookieSessionName, cookie.Value, &sess); err != nil {
		return nil, err
	}

	return &sess, nil
}

func (s *Service) writeSession(w http.ResponseWriter, sess *session, age time.Duration) error {
	encoded, err := s.cookie.Encode(cookieSessionName, sess)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieSessionName,
		Value:    encoded,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(age.Seconds()),
		Path:     "/",
	})

	return nil
}

func (s *Service) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieSessionName,
		Value:    "",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Path:     "/",
	})
}
