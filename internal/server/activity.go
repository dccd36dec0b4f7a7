package server

import (
	"net/http"
	"strconv"
)

const defaultActivityLimit = 50

func (s *Service) handleActivity(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	limit := uint64(defaultActivityLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 || parsed > 200 {
			s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	entries, err := s.activity.ByApplication(r.Context(), ident.ID, limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch activity log")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
