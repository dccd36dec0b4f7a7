package server

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"driverhub/pkg/types"
)

func (s *Service) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	if _, err := mail.ParseAddress(email); err != nil {
		s.respondFieldErrors(w, map[string]string{"email": "Enter a valid email address."})
		return
	}

	if err := s.idents.SendPasswordResetEmail(r.Context(), email); err != nil {
		s.logger.WithError(err).Error("failed to start password reset")
		s.internalServerError(w)
		return
	}

	// Same response whether or not the address exists.
	s.respondJSON(w, http.StatusOK, map[string]any{"sent": true})
}

func (s *Service) handlePasswordResetVerify(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.FormValue("code"))

	if err := s.idents.VerifyResetCode(r.Context(), code); err != nil {
		if errors.Is(err, types.ErrInvalidResetCode) {
			s.respondFieldErrors(w, map[string]string{"code": "This code is invalid or has expired. Request a new one."})
			return
		}
		s.logger.WithError(err).Error("failed to verify reset code")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Service) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	code := strings.TrimSpace(r.FormValue("code"))
	password := r.FormValue("password")
	confirmPassword := r.FormValue("confirm_password")

	fieldErrs := map[string]string{}
	if _, err := mail.ParseAddress(email); err != nil {
		fieldErrs["email"] = "Enter a valid email address."
	}
	if code == "" {
		fieldErrs["code"] = "Reset code is required."
	}
	if msg, ok := passwordStrengthError(password); !ok {
		fieldErrs["password"] = msg
	}
	if password != confirmPassword {
		fieldErrs["confirm_password"] = "Passwords do not match."
	}
	if len(fieldErrs) > 0 {
		s.respondFieldErrors(w, fieldErrs)
		return
	}

	if err := s.idents.ConfirmPasswordReset(r.Context(), email, code, password); err != nil {
		if errors.Is(err, types.ErrInvalidResetCode) {
			s.respondFieldErrors(w, map[string]string{"code": "This code is invalid or has expired. Request a new one."})
			return
		}
		s.logger.WithError(err).Error("failed to confirm password reset")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"reset": true})
}
