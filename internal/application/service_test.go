package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"driverhub/internal/identity"
	"driverhub/internal/migration"
	"driverhub/internal/notify"
	"driverhub/internal/realtime"
	"driverhub/internal/utils"
	"driverhub/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mirrors the repository's merge semantics in memory: createdAt
// survives later writes, documents only gain keys, and a submitted row
// refuses partial saves.
type fakeStore struct {
	mu          sync.Mutex
	apps        map[string]*types.Application
	failSubmits int
	patches     []map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{apps: make(map[string]*types.Application)}
}

func (f *fakeStore) Application(ctx context.Context, id string) (*types.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, types.ErrApplicationNotFound
	}
	clone := *app
	return &clone, nil
}

func (f *fakeStore) SavePartial(ctx context.Context, app *types.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if app.CreatedAt == nil {
		app.CreatedAt = &now
	}
	app.IsPartial = true

	existing, ok := f.apps[app.ID]
	if !ok {
		clone := *app
		f.apps[app.ID] = &clone
		return nil
	}
	if !existing.IsPartial {
		return types.ErrAlreadySubmitted
	}

	merged := *app
	merged.CreatedAt = existing.CreatedAt
	merged.Documents = existing.Documents.Merge(app.Documents)
	if merged.UnlicensedProgress == nil {
		merged.UnlicensedProgress = existing.UnlicensedProgress
	}
	f.apps[app.ID] = &merged
	return nil
}

func (f *fakeStore) Submit(ctx context.Context, app *types.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSubmits > 0 {
		f.failSubmits--
		return errors.New("write refused")
	}

	now := time.Now()
	if app.CreatedAt == nil {
		app.CreatedAt = &now
	}
	app.IsPartial = false

	merged := *app
	if existing, ok := f.apps[app.ID]; ok {
		merged.CreatedAt = existing.CreatedAt
		merged.Documents = existing.Documents.Merge(app.Documents)
		if existing.Status != nil {
			merged.Status = existing.Status
		}
		if merged.UnlicensedProgress == nil {
			merged.UnlicensedProgress = existing.UnlicensedProgress
		}
	}
	f.apps[app.ID] = &merged
	return nil
}

func (f *fakeStore) UpdateProgress(ctx context.Context, id string, progress *types.UnlicensedProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return types.ErrApplicationNotFound
	}
	app.UnlicensedProgress = progress
	return nil
}

func (f *fakeStore) SetDocuments(ctx context.Context, id string, docs types.Documents) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return types.ErrApplicationNotFound
	}
	app.Documents = app.Documents.Merge(docs)
	return nil
}

func (f *fakeStore) MergePatch(ctx context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, fields)
	app, ok := f.apps[id]
	if !ok {
		return types.ErrApplicationNotFound
	}
	migration.ApplyTo(app, migration.Patch(fields))
	return nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []*types.ActivityLogEntry
	fail    bool
}

func (f *fakeActivity) Append(ctx context.Context, entry *types.ActivityLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("log sink down")
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeIdentityProvider struct {
	mu          sync.Mutex
	linkCalls   int
	takenEmails map[string]bool
}

func (f *fakeIdentityProvider) SignInAnonymously(ctx context.Context) (*identity.Identity, error) {
	return &identity.Identity{ID: utils.NanoIDSize(12), Anonymous: true}, nil
}

func (f *fakeIdentityProvider) LinkWithPermanentCredential(ctx context.Context, ident *identity.Identity, email, password string) (*identity.Identity, error) {
	if !ident.Anonymous {
		return ident, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takenEmails[email] {
		return nil, types.ErrEmailInUse
	}
	f.linkCalls++
	return &identity.Identity{ID: ident.ID, Email: email, Anonymous: false}, nil
}

func (f *fakeIdentityProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	return nil
}

func (f *fakeIdentityProvider) VerifyResetCode(ctx context.Context, code string) error {
	return nil
}

func (f *fakeIdentityProvider) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	return nil
}

type fakeBlobs struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *fakeBlobs) PublicURL(key string) string {
	return "https://files.test/" + key
}

type fixture struct {
	service  *Service
	store    *fakeStore
	activity *fakeActivity
	idents   *fakeIdentityProvider
	blobs    *fakeBlobs
	hub      *realtime.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &fixture{
		store:    newFakeStore(),
		activity: &fakeActivity{},
		idents:   &fakeIdentityProvider{},
		blobs:    &fakeBlobs{},
		hub:      realtime.NewHub(),
	}
	f.service = NewService(
		f.store,
		f.activity,
		f.idents,
		f.blobs,
		migration.NewEngine(),
		f.hub,
		notify.NopPublisher{},
		logger,
	)
	return f
}

func anonIdent(id string) *identity.Identity {
	return &identity.Identity{ID: id, Anonymous: true}
}

func TestService_SaveDraft_SkipsEmptyForms(t *testing.T) {
	f := newFixture(t)

	err := f.service.SaveDraft(context.Background(), anonIdent("u1"), &types.Application{Phone: "07700900000"})
	require.NoError(t, err)

	_, err = f.store.Application(context.Background(), "u1")
	assert.ErrorIs(t, err, types.ErrApplicationNotFound)
}

func TestService_SaveDraft_IgnoresPermanentIdentities(t *testing.T) {
	f := newFixture(t)

	ident := &identity.Identity{ID: "u1", Anonymous: false}
	err := f.service.SaveDraft(context.Background(), ident, &types.Application{FirstName: "Alex"})
	require.NoError(t, err)

	_, err = f.store.Application(context.Background(), "u1")
	assert.ErrorIs(t, err, types.ErrApplicationNotFound)
}

func TestService_SaveDraft_PreservesCreatedAtAndDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := anonIdent("u1")

	require.NoError(t, f.service.SaveDraft(ctx, ident, &types.Application{
		FirstName: "Alex",
		Documents: types.Documents{types.DocBadge: "https://files.test/badge.pdf"},
	}))

	first, err := f.store.Application(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, first.CreatedAt)
	createdAt := *first.CreatedAt

	// A later save with neither the document key nor a createdAt must keep
	// both.
	require.NoError(t, f.service.SaveDraft(ctx, ident, &types.Application{
		FirstName: "Alex",
		LastName:  "Morgan",
	}))

	second, err := f.store.Application(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, createdAt, *second.CreatedAt)
	assert.Equal(t, "https://files.test/badge.pdf", second.Documents[types.DocBadge])
	assert.Equal(t, "Morgan", second.LastName)
	assert.True(t, second.IsPartial)
}

func TestService_SaveDraft_RejectedAfterSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := anonIdent("u1")

	_, _, err := f.service.Submit(ctx, ident, &types.Application{
		FirstName: "Alex",
		Email:     "a@example.com",
	}, "Str0ng!Password", nil)
	require.NoError(t, err)

	err = f.service.SaveDraft(ctx, anonIdent("u1"), &types.Application{FirstName: "Alex"})
	assert.ErrorIs(t, err, types.ErrAlreadySubmitted)

	stored, err := f.store.Application(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, stored.IsPartial, "isPartial never reverts to true")
}

func TestService_Submit_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := anonIdent("u1")

	// Anonymous applicant types a name and email, then the debounce window
	// elapses and a partial record lands.
	require.NoError(t, f.service.SaveDraft(ctx, ident, &types.Application{
		FirstName: "Alex",
		Email:     "a@example.com",
	}))

	draft, err := f.store.Application(ctx, "u1")
	require.NoError(t, err)
	require.True(t, draft.IsPartial)
	require.Nil(t, draft.Status)
	firstWrite := *draft.CreatedAt

	final, upgraded, err := f.service.Submit(ctx, ident, &types.Application{
		FirstName:        "Alex",
		LastName:         "Morgan",
		Email:            "a@example.com",
		Phone:            "07700900000",
		Area:             "Aberdeen",
		IsLicensedDriver: utils.BoolPtr(false),
	}, "Str0ng!Password", []Upload{
		{Slot: types.DocInsurance, FileName: "insurance.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")},
	})
	require.NoError(t, err)

	assert.False(t, upgraded.Anonymous)
	assert.Equal(t, "u1", upgraded.ID)

	assert.False(t, final.IsPartial)
	require.NotNil(t, final.Status)
	assert.Equal(t, types.StatusSubmitted, *final.Status)

	require.NotNil(t, final.UnlicensedProgress)
	assert.Equal(t, types.UnlicensedProgress{}, *final.UnlicensedProgress)

	// createdAt is the first partial save's time, not the submission time.
	assert.Equal(t, firstWrite, *final.CreatedAt)

	assert.Contains(t, final.Documents[types.DocInsurance], "applications/u1/")

	require.Len(t, f.activity.entries, 1)
	assert.Equal(t, types.ActivityApplicationSubmitted, f.activity.entries[0].ActivityType)
}

func TestService_Submit_RetrySkipsIdentityUpgrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.failSubmits = 1

	form := &types.Application{FirstName: "Alex", Email: "a@example.com"}

	_, upgraded, err := f.service.Submit(ctx, anonIdent("u1"), form, "Str0ng!Password", nil)
	require.Error(t, err)
	require.NotNil(t, upgraded, "identity upgrade completed before the write failed")
	assert.False(t, upgraded.Anonymous)

	// Retry with the already-upgraded identity: no second link, and the
	// submission lands.
	final, _, err := f.service.Submit(ctx, upgraded, form, "Str0ng!Password", nil)
	require.NoError(t, err)
	assert.False(t, final.IsPartial)
	assert.Equal(t, 1, f.idents.linkCalls)
}

func TestService_Submit_EmailConflictSurfaces(t *testing.T) {
	f := newFixture(t)
	f.idents.takenEmails = map[string]bool{"taken@example.com": true}

	_, _, err := f.service.Submit(context.Background(), anonIdent("u1"), &types.Application{
		FirstName: "Alex",
		Email:     "taken@example.com",
	}, "Str0ng!Password", nil)
	assert.ErrorIs(t, err, types.ErrEmailInUse)
}

func TestService_Submit_SwallowsActivityFailures(t *testing.T) {
	f := newFixture(t)
	f.activity.fail = true

	final, _, err := f.service.Submit(context.Background(), anonIdent("u1"), &types.Application{
		FirstName: "Alex",
		Email:     "a@example.com",
	}, "Str0ng!Password", nil)
	require.NoError(t, err, "a logging failure never fails the submission")
	assert.False(t, final.IsPartial)
}

func TestService_ToggleMilestone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := anonIdent("u1")

	_, upgraded, err := f.service.Submit(ctx, ident, &types.Application{
		FirstName:        "Alex",
		Email:            "a@example.com",
		IsLicensedDriver: utils.BoolPtr(false),
	}, "Str0ng!Password", nil)
	require.NoError(t, err)

	app, err := f.service.ToggleMilestone(ctx, upgraded, types.MilestoneDBSApplied, true)
	require.NoError(t, err)
	assert.True(t, app.UnlicensedProgress.DBSApplied)

	// Steps can be unticked again; only badgeReceived is one-way.
	app, err = f.service.ToggleMilestone(ctx, upgraded, types.MilestoneDBSApplied, false)
	require.NoError(t, err)
	assert.False(t, app.UnlicensedProgress.DBSApplied)

	_, err = f.service.ToggleMilestone(ctx, upgraded, types.Milestone("nonsense"), true)
	assert.Error(t, err)
}

func TestService_AttachMilestoneDocument_NotGatedOnCheckbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, upgraded, err := f.service.Submit(ctx, anonIdent("u1"), &types.Application{
		FirstName:        "Alex",
		Email:            "a@example.com",
		IsLicensedDriver: utils.BoolPtr(false),
	}, "Str0ng!Password", nil)
	require.NoError(t, err)

	app, err := f.service.AttachMilestoneDocument(ctx, upgraded, types.MilestoneDBSApplied, "dbs.pdf", "application/pdf", strings.NewReader("pdf"))
	require.NoError(t, err)

	require.NotNil(t, app.UnlicensedProgress.DBSDocumentURL)
	assert.Contains(t, *app.UnlicensedProgress.DBSDocumentURL, "applications/u1/")
	assert.False(t, app.UnlicensedProgress.DBSApplied, "upload does not tick the checkbox")
}

func TestService_ConvertToLicensed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, upgraded, err := f.service.Submit(ctx, anonIdent("u1"), &types.Application{
		FirstName:        "Alex",
		Email:            "a@example.com",
		IsLicensedDriver: utils.BoolPtr(false),
	}, "Str0ng!Password", nil)
	require.NoError(t, err)

	// Conversion is gated on the full checklist.
	_, err = f.service.ConvertToLicensed(ctx, upgraded, &types.Application{})
	assert.ErrorIs(t, err, types.ErrChecklistIncomplete)

	for _, m := range types.Milestones {
		_, err = f.service.ToggleMilestone(ctx, upgraded, m, true)
		require.NoError(t, err)
	}

	final, err := f.service.ConvertToLicensed(ctx, upgraded, &types.Application{
		BadgeNumber:    utils.StringPtr("B-4242"),
		IssuingCouncil: utils.StringPtr("Aberdeen City"),
	})
	require.NoError(t, err)

	require.NotNil(t, final.IsLicensedDriver)
	assert.True(t, *final.IsLicensedDriver)
	assert.Equal(t, "B-4242", utils.PtrString(final.BadgeNumber))

	// Milestone history stays on the record for audit.
	require.NotNil(t, final.UnlicensedProgress)
	assert.True(t, final.UnlicensedProgress.BadgeReceived)
	assert.True(t, final.UnlicensedProgress.AllComplete())

	// Conversion is one-way, a second pass has no checklist to exit from.
	_, err = f.service.ConvertToLicensed(ctx, upgraded, &types.Application{})
	assert.ErrorIs(t, err, types.ErrAlreadyLicensed)
}

func TestService_ChecklistRequiresSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := anonIdent("u1")

	// Only a partial draft exists; the checklist endpoints must not give the
	// applicant a back door into the submitted state.
	require.NoError(t, f.service.SaveDraft(ctx, ident, &types.Application{
		FirstName: "Alex",
		Email:     "a@example.com",
	}))

	for _, m := range types.Milestones {
		_, err := f.service.ToggleMilestone(ctx, ident, m, true)
		assert.ErrorIs(t, err, types.ErrNotSubmitted)
	}

	_, err := f.service.AttachMilestoneDocument(ctx, ident, types.MilestoneDBSApplied, "dbs.pdf", "application/pdf", strings.NewReader("pdf"))
	assert.ErrorIs(t, err, types.ErrNotSubmitted)

	_, err = f.service.ConvertToLicensed(ctx, ident, &types.Application{})
	assert.ErrorIs(t, err, types.ErrNotSubmitted)

	// The draft is untouched: still partial, no status, no identity upgrade,
	// and the next auto-save still lands.
	stored, err := f.store.Application(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.IsPartial)
	assert.Nil(t, stored.Status)
	assert.Equal(t, 0, f.idents.linkCalls)

	require.NoError(t, f.service.SaveDraft(ctx, ident, &types.Application{
		FirstName: "Alex",
		LastName:  "Morgan",
		Email:     "a@example.com",
	}))
}

func TestService_ChecklistRejectedForLicensedRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, upgraded, err := f.service.Submit(ctx, anonIdent("u1"), &types.Application{
		FirstName:        "Alex",
		Email:            "a@example.com",
		IsLicensedDriver: utils.BoolPtr(true),
		BadgeNumber:      utils.StringPtr("B-4242"),
	}, "Str0ng!Password", nil)
	require.NoError(t, err)

	_, err = f.service.ToggleMilestone(ctx, upgraded, types.MilestoneDBSApplied, true)
	assert.ErrorIs(t, err, types.ErrAlreadyLicensed)

	_, err = f.service.AttachMilestoneDocument(ctx, upgraded, types.MilestoneDBSApplied, "dbs.pdf", "application/pdf", strings.NewReader("pdf"))
	assert.ErrorIs(t, err, types.ErrAlreadyLicensed)

	stored, err := f.store.Application(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stored.UnlicensedProgress, "licensed records never grow a checklist")
}

func TestService_Application_HealsStaleRecordsOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A legacy record with no licensed flag, documents map or createdAt.
	f.store.apps["u1"] = &types.Application{
		ID:          "u1",
		FirstName:   "Alex",
		BadgeNumber: utils.StringPtr("B-77"),
	}

	app, err := f.service.Application(ctx, "u1")
	require.NoError(t, err)

	require.NotNil(t, app.IsLicensedDriver)
	assert.True(t, *app.IsLicensedDriver)
	assert.NotNil(t, app.Documents)
	assert.NotNil(t, app.CreatedAt)

	require.Len(t, f.store.patches, 1)

	// Second read: nothing left to heal.
	_, err = f.service.Application(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, f.store.patches, 1)
}
