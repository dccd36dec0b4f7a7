// Package application implements the applicant-facing lifecycle: auto-saved
// drafts, the one-way final submission, the unlicensed checklist and its
// conversion back into the licensed flow.
package application

import (
	"context"
	"fmt"
	"io"

	"driverhub/internal/identity"
	"driverhub/internal/migration"
	"driverhub/internal/notify"
	"driverhub/internal/realtime"
	"driverhub/internal/storage"
	"driverhub/internal/utils"
	"driverhub/pkg/types"

	"github.com/sirupsen/logrus"
)

// Store is the slice of the application repository the service needs.
type Store interface {
	Application(ctx context.Context, id string) (*types.Application, error)
	SavePartial(ctx context.Context, app *types.Application) error
	Submit(ctx context.Context, app *types.Application) error
	UpdateProgress(ctx context.Context, id string, progress *types.UnlicensedProgress) error
	SetDocuments(ctx context.Context, id string, docs types.Documents) error
	MergePatch(ctx context.Context, id string, fields map[string]any) error
}

// ActivityStore appends audit entries. Append failures never surface to the
// applicant; the caller logs and moves on.
type ActivityStore interface {
	Append(ctx context.Context, entry *types.ActivityLogEntry) error
}

// Upload is one pending document handed over at submission time.
type Upload struct {
	Slot        string
	FileName    string
	ContentType string
	Body        io.Reader
}

type Service struct {
	store    Store
	activity ActivityStore
	idents   identity.Provider
	blobs    storage.DocumentStore
	engine   *migration.Engine
	hub      *realtime.Hub
	push     notify.Publisher
	logger   *logrus.Logger
}

func NewService(
	store Store,
	activity ActivityStore,
	idents identity.Provider,
	blobs storage.DocumentStore,
	engine *migration.Engine,
	hub *realtime.Hub,
	push notify.Publisher,
	logger *logrus.Logger,
) *Service {
	return &Service{
		store:    store,
		activity: activity,
		idents:   idents,
		blobs:    blobs,
		engine:   engine,
		hub:      hub,
		push:     push,
		logger:   logger,
	}
}

// Application loads one record and runs it through the migration rules,
// persisting any backfill so stale records heal on read.
func (s *Service) Application(ctx context.Context, id string) (*types.Application, error) {
	app, err := s.store.Application(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch, needed := s.engine.Updates(app); needed {
		if err := s.store.MergePatch(ctx, id, map[string]any(patch)); err != nil {
			// Serve the patched snapshot anyway; the batch reconciler will
			// catch the row up later.
			s.logger.WithError(err).WithField("application_id", id).Error("failed to persist migration patch")
		}
		migration.ApplyTo(app, patch)
	}

	return app, nil
}

// SaveDraft persists an auto-saved partial. Only anonymous identities write
// drafts, and a form with neither a first name nor an email is dropped so
// storage doesn't fill up with empty husks.
func (s *Service) SaveDraft(ctx context.Context, ident *identity.Identity, draft *types.Application) error {
	if !ident.Anonymous {
		return nil
	}
	if draft.FirstName == "" && draft.Email == "" {
		return nil
	}

	draft.ID = ident.ID

	if err := s.store.SavePartial(ctx, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}

	s.hub.Publish(realtime.ApplicationTopic(ident.ID), realtime.KindApplication, draft)

	return nil
}

// Submit runs the full, non-reversible final submission: upgrade the
// identity, upload pending documents, write the completed record. Each step
// is idempotent so a retry after a mid-flight failure picks up where the
// last attempt stopped.
func (s *Service) Submit(ctx context.Context, ident *identity.Identity, app *types.Application, password string, uploads []Upload) (*types.Application, *identity.Identity, error) {
	upgraded, err := s.idents.LinkWithPermanentCredential(ctx, ident, app.Email, password)
	if err != nil {
		return nil, nil, err
	}

	uploaded, err := s.uploadAll(ctx, upgraded.ID, uploads)
	if err != nil {
		return nil, upgraded, err
	}

	app.ID = upgraded.ID
	app.Documents = app.Documents.Merge(uploaded)
	app.Status = statusPtr(types.StatusSubmitted)
	app.IsPartial = false

	if app.IsLicensedDriver == nil {
		app.IsLicensedDriver = utils.BoolPtr(false)
	}
	if !*app.IsLicensedDriver && app.UnlicensedProgress == nil {
		app.UnlicensedProgress = &types.UnlicensedProgress{}
	}

	if err := s.store.Submit(ctx, app); err != nil {
		return nil, upgraded, fmt.Errorf("submit application: %w", err)
	}

	final, err := s.store.Application(ctx, app.ID)
	if err != nil {
		return nil, upgraded, fmt.Errorf("reload submitted application: %w", err)
	}

	s.logActivity(ctx, &types.ActivityLogEntry{
		ApplicationID:  final.ID,
		ApplicantName:  final.FullName(),
		ApplicantEmail: final.Email,
		ActivityType:   types.ActivityApplicationSubmitted,
		Actor:          types.ActorApplicant,
		ActorID:        final.ID,
		ActorName:      final.FullName(),
		Details:        "Application submitted",
		Metadata:       &types.ActivityMetadata{DocumentCount: len(uploaded)},
	})

	s.push.Publish(ctx, notify.Payload{
		Title: "Application received",
		Body:  fmt.Sprintf("Thanks %s, your application is in. We'll be in touch.", final.FirstName),
	})

	s.hub.Publish(realtime.ApplicationTopic(final.ID), realtime.KindApplication, final)

	return final, upgraded, nil
}

// unlicensedRecord loads the record for a checklist operation. The checklist
// exists only on submitted, unlicensed records: a draft has not entered the
// flow yet and must stay editable, and licensed records never had one.
func (s *Service) unlicensedRecord(ctx context.Context, id string) (*types.Application, error) {
	app, err := s.Application(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.Submitted() {
		return nil, types.ErrNotSubmitted
	}
	if app.IsLicensedDriver != nil && *app.IsLicensedDriver {
		return nil, types.ErrAlreadyLicensed
	}
	return app, nil
}

// ToggleMilestone flips one checklist step for an unlicensed applicant.
// Steps are independent; any order is allowed.
func (s *Service) ToggleMilestone(ctx context.Context, ident *identity.Identity, milestone types.Milestone, checked bool) (*types.Application, error) {
	app, err := s.unlicensedRecord(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	progress := app.UnlicensedProgress
	if progress == nil {
		progress = &types.UnlicensedProgress{}
	}

	was := progress.Checked(milestone)
	if err := progress.SetChecked(milestone, checked); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProgress(ctx, app.ID, progress); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	app.UnlicensedProgress = progress

	s.logActivity(ctx, &types.ActivityLogEntry{
		ApplicationID:  app.ID,
		ApplicantName:  app.FullName(),
		ApplicantEmail: app.Email,
		ActivityType:   types.ActivityUnlicensedProgressUpdated,
		Actor:          types.ActorApplicant,
		ActorID:        app.ID,
		ActorName:      app.FullName(),
		Details:        fmt.Sprintf("Checklist step %s set to %t", milestone, checked),
		Metadata: &types.ActivityMetadata{
			OldValue: fmt.Sprintf("%t", was),
			NewValue: fmt.Sprintf("%t", checked),
		},
	})

	s.hub.Publish(realtime.ApplicationTopic(app.ID), realtime.KindApplication, app)

	return app, nil
}

// AttachMilestoneDocument uploads evidence for a checklist step. The upload
// is deliberately not gated on the checkbox being ticked.
func (s *Service) AttachMilestoneDocument(ctx context.Context, ident *identity.Identity, milestone types.Milestone, fileName, contentType string, body io.Reader) (*types.Application, error) {
	app, err := s.unlicensedRecord(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	key := storage.DocumentKey(app.ID, fileName)
	if _, err := s.blobs.Upload(ctx, key, body, contentType); err != nil {
		return nil, fmt.Errorf("upload milestone document: %w", err)
	}
	url := s.blobs.PublicURL(key)

	progress := app.UnlicensedProgress
	if progress == nil {
		progress = &types.UnlicensedProgress{}
	}
	if err := progress.SetDocumentURL(milestone, url); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProgress(ctx, app.ID, progress); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	app.UnlicensedProgress = progress

	s.logActivity(ctx, &types.ActivityLogEntry{
		ApplicationID:  app.ID,
		ApplicantName:  app.FullName(),
		ApplicantEmail: app.Email,
		ActivityType:   types.ActivityDocumentUploaded,
		Actor:          types.ActorApplicant,
		ActorID:        app.ID,
		ActorName:      app.FullName(),
		Details:        fmt.Sprintf("Uploaded evidence for %s", milestone),
		Metadata:       &types.ActivityMetadata{DocumentType: string(milestone)},
	})

	s.hub.Publish(realtime.ApplicationTopic(app.ID), realtime.KindApplication, app)

	return app, nil
}

// ConvertToLicensed is the one-way exit from the unlicensed flow. It is a
// controlled re-entry into the submission transition, not a field flip: the
// now-licensed applicant supplies the licensed-branch fields and the record's
// branch changes, while the milestone history stays on the row for audit.
func (s *Service) ConvertToLicensed(ctx context.Context, ident *identity.Identity, licensed *types.Application) (*types.Application, error) {
	app, err := s.unlicensedRecord(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	progress := app.UnlicensedProgress
	if progress == nil || !progress.AllComplete() {
		return nil, types.ErrChecklistIncomplete
	}

	progress.BadgeReceived = true

	app.IsLicensedDriver = utils.BoolPtr(true)
	app.BadgeNumber = licensed.BadgeNumber
	app.BadgeExpiry = licensed.BadgeExpiry
	app.IssuingCouncil = licensed.IssuingCouncil
	app.DrivingLicenseNumber = licensed.DrivingLicenseNumber
	app.LicenseExpiry = licensed.LicenseExpiry
	app.DBSCheckNumber = licensed.DBSCheckNumber
	app.UnlicensedProgress = progress

	if err := s.store.Submit(ctx, app); err != nil {
		return nil, fmt.Errorf("convert application: %w", err)
	}

	final, err := s.store.Application(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("reload converted application: %w", err)
	}

	s.logActivity(ctx, &types.ActivityLogEntry{
		ApplicationID:  final.ID,
		ApplicantName:  final.FullName(),
		ApplicantEmail: final.Email,
		ActivityType:   types.ActivityInformationUpdated,
		Actor:          types.ActorApplicant,
		ActorID:        final.ID,
		ActorName:      final.FullName(),
		Details:        "Badge received, converted to licensed driver",
		Metadata: &types.ActivityMetadata{
			OldValue: "unlicensed",
			NewValue: "licensed",
		},
	})

	s.hub.Publish(realtime.ApplicationTopic(final.ID), realtime.KindApplication, final)

	return final, nil
}

func (s *Service) uploadAll(ctx context.Context, ownerID string, uploads []Upload) (types.Documents, error) {
	docs := types.Documents{}
	for _, up := range uploads {
		key := storage.DocumentKey(ownerID, up.FileName)
		if _, err := s.blobs.Upload(ctx, key, up.Body, up.ContentType); err != nil {
			return nil, fmt.Errorf("upload %s: %w", up.Slot, err)
		}
		docs[up.Slot] = s.blobs.PublicURL(key)
	}
	return docs, nil
}

func (s *Service) logActivity(ctx context.Context, entry *types.ActivityLogEntry) {
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"application_id": entry.ApplicationID,
			"activity_type":  entry.ActivityType,
		}).Error("failed to append activity entry")
	}
}

func statusPtr(s types.ApplicationStatus) *types.ApplicationStatus {
	return &s
}
