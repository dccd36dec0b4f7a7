package server

import (
	"errors"
	"net/http"
	"strconv"

	"driverhub/internal/application"
	"driverhub/pkg/types"
)

const maxUploadBytes = 32 << 20

// documentFields maps multipart form fields to their document slot.
var documentFields = map[string]string{
	"badge_document":           types.DocBadge,
	"driving_license_document": types.DocDrivingLicense,
	"insurance_document":       types.DocInsurance,
	"v5c_document":             types.DocV5C,
	"phv_licence_document":     types.DocPHVLicence,
}

func (s *Service) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	app, err := s.apps.Application(r.Context(), ident.ID)
	if err != nil {
		if errors.Is(err, types.ErrApplicationNotFound) {
			s.respondError(w, http.StatusNotFound, "no application yet")
			return
		}
		s.logger.WithError(err).Error("failed to load application")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, app)
}

// handleSaveDraft accepts every keystroke-level form state and feeds it to
// the debouncer; the client never waits on the database write.
func (s *Service) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	var draft types.Application
	if err := decoder.Decode(&draft, r.PostForm); err != nil {
		s.logger.WithError(err).Debug("failed to decode draft form")
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	s.autosaver.Queue(ident, &draft)

	s.respondJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	var app types.Application
	if err := decoder.Decode(&app, r.MultipartForm.Value); err != nil {
		s.logger.WithError(err).Debug("failed to decode submission form")
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	password := r.FormValue("password")
	confirmPassword := r.FormValue("confirm_password")

	if fieldErrs := validateSubmission(&app, password, confirmPassword); len(fieldErrs) > 0 {
		s.logger.WithField("field_errors", fieldErrs).Info("validation errors during submission")
		s.respondFieldErrors(w, fieldErrs)
		return
	}

	uploads, closeAll, err := s.collectUploads(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document upload")
		return
	}
	defer closeAll()

	// A draft still sitting in the debounce window must not land after the
	// final record.
	s.autosaver.Cancel(ident.ID)

	final, upgraded, err := s.apps.Submit(r.Context(), ident, &app, password, uploads)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrEmailInUse), errors.Is(err, types.ErrCredentialInUse):
			s.respondFieldErrors(w, map[string]string{"email": "An account with this email already exists."})
		case errors.Is(err, types.ErrAlreadySubmitted):
			s.respondError(w, http.StatusConflict, "This application has already been submitted.")
		default:
			s.logger.WithError(err).Error("failed to submit application")
			s.internalServerError(w)
		}
		return
	}

	sess := &session{GuestID: upgraded.ID, Email: upgraded.Email, Upgraded: true}
	if err := s.writeSession(w, sess, guestSessionAge); err != nil {
		s.logger.WithError(err).Error("failed to refresh session after submission")
	}

	s.respondJSON(w, http.StatusCreated, final)
}

func (s *Service) handleToggleProgress(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	milestone := types.Milestone(r.FormValue("milestone"))
	checked, err := strconv.ParseBool(r.FormValue("checked"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "checked must be true or false")
		return
	}

	app, err := s.apps.ToggleMilestone(r.Context(), ident, milestone, checked)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrApplicationNotFound):
			s.respondError(w, http.StatusNotFound, "no application yet")
		case errors.Is(err, types.ErrNotSubmitted):
			s.respondError(w, http.StatusConflict, "Submit your application before updating the checklist.")
		case errors.Is(err, types.ErrAlreadyLicensed):
			s.respondError(w, http.StatusConflict, "Licensed applications have no checklist.")
		default:
			s.logger.WithError(err).Error("failed to toggle milestone")
			s.respondError(w, http.StatusBadRequest, "unknown milestone")
		}
		return
	}

	s.respondJSON(w, http.StatusOK, app)
}

func (s *Service) handleProgressDocument(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	milestone := types.Milestone(r.FormValue("milestone"))

	file, header, err := r.FormFile("document")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	app, err := s.apps.AttachMilestoneDocument(
		r.Context(),
		ident,
		milestone,
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrApplicationNotFound):
			s.respondError(w, http.StatusNotFound, "no application yet")
		case errors.Is(err, types.ErrNotSubmitted):
			s.respondError(w, http.StatusConflict, "Submit your application before updating the checklist.")
		case errors.Is(err, types.ErrAlreadyLicensed):
			s.respondError(w, http.StatusConflict, "Licensed applications have no checklist.")
		default:
			s.logger.WithError(err).Error("failed to attach milestone document")
			s.internalServerError(w)
		}
		return
	}

	s.respondJSON(w, http.StatusOK, app)
}

func (s *Service) handleConvert(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identityFromContext(r.Context())
	if err != nil {
		s.internalServerError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	var licensed types.Application
	if err := decoder.Decode(&licensed, r.PostForm); err != nil {
		s.logger.WithError(err).Debug("failed to decode conversion form")
		s.respondError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	app, err := s.apps.ConvertToLicensed(r.Context(), ident, &licensed)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrApplicationNotFound):
			s.respondError(w, http.StatusNotFound, "no application yet")
		case errors.Is(err, types.ErrNotSubmitted):
			s.respondError(w, http.StatusConflict, "Submit your application before converting.")
		case errors.Is(err, types.ErrAlreadyLicensed):
			s.respondError(w, http.StatusConflict, "This application is already on the licensed flow.")
		case errors.Is(err, types.ErrChecklistIncomplete):
			s.respondError(w, http.StatusConflict, "Complete all checklist steps before converting.")
		default:
			s.logger.WithError(err).Error("failed to convert application")
			s.internalServerError(w)
		}
		return
	}

	s.respondJSON(w, http.StatusOK, app)
}

func (s *Service) collectUploads(r *http.Request) ([]application.Upload, func(), error) {
	var uploads []application.Upload
	var open []interface{ Close() error }

	closeAll := func() {
		for _, f := range open {
			f.Close()
		}
	}

	for field, slot := range documentFields {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}

		file, err := headers[0].Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		open = append(open, file)

		uploads = append(uploads, application.Upload{
			Slot:        slot,
			FileName:    headers[0].Filename,
			ContentType: headers[0].Header.Get("Content-Type"),
			Body:        file,
		})
	}

	return uploads, closeAll, nil
}
