package server

import (
	"encoding/json"
	"net/http"
)

func (s *Service) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("failed to encode response body")
	}
}

func (s *Service) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{"error": message})
}

// respondFieldErrors returns per-field validation messages so the client can
// highlight specific inputs without losing the applicant's typed state.
func (s *Service) respondFieldErrors(w http.ResponseWriter, fieldErrs map[string]string) {
	s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":       "Please fix the highlighted fields.",
		"fieldErrors": fieldErrs,
	})
}

func (s *Service) internalServerError(w http.ResponseWriter) {
	s.respondError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
}
