package server

import (
	"errors"
	"net/http"
	"strings"

	"driverhub/internal/realtime"
	"driverhub/pkg/types"
)

func (s *Service) handleConversation(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	msgs, err := s.messages.Conversation(r.Context(), ident.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch conversation")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"unread":   types.UnreadFor(msgs, types.SenderApplicant),
	})
}

func (s *Service) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	body := strings.TrimSpace(r.FormValue("body"))
	if body == "" {
		s.respondError(w, http.StatusBadRequest, "message body is required")
		return
	}

	app, err := s.apps.Application(r.Context(), ident.ID)
	if err != nil {
		if errors.Is(err, types.ErrApplicationNotFound) {
			s.respondError(w, http.StatusNotFound, "no application yet")
			return
		}
		s.logger.WithError(err).Error("failed to load application for message")
		s.internalServerError(w)
		return
	}

	msg := &types.Message{
		ApplicationID: app.ID,
		SenderID:      ident.ID,
		SenderName:    app.FullName(),
		SenderType:    types.SenderApplicant,
		Body:          body,
	}

	if err := s.messages.Append(r.Context(), msg); err != nil {
		s.logger.WithError(err).Error("failed to append message")
		s.internalServerError(w)
		return
	}

	s.hub.Publish(realtime.ApplicationTopic(app.ID), realtime.KindMessage, msg)

	s.respondJSON(w, http.StatusCreated, msg)
}

// handleMarkRead marks every staff message in the conversation as read. The
// applicant side only ever reads staff messages, never its own.
func (s *Service) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	if err := s.messages.MarkConversationRead(r.Context(), ident.ID, types.SenderApplicant); err != nil {
		s.logger.WithError(err).Error("failed to mark conversation read")
		s.internalServerError(w)
		return
	}

	s.hub.Publish(realtime.ApplicationTopic(ident.ID), realtime.KindUnread, map[string]int{"unread": 0})

	s.respondJSON(w, http.StatusOK, map[string]any{"read": true})
}

func (s *Service) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	count, err := s.messages.UnreadCount(r.Context(), ident.ID, types.SenderApplicant)
	if err != nil {
		s.logger.WithError(err).Error("failed to count unread messages")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]int{"unread": count})
}
