package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"driverhub/internal/utils"
	"driverhub/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = func() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestEngine_Updates(t *testing.T) {
	tests := []struct {
		name       string
		app        *types.Application
		wantFields []string
		verify     func(t *testing.T, patch Patch)
	}{
		{
			name: "fully migrated record needs nothing",
			app: &types.Application{
				ID:               "app-1",
				IsLicensedDriver: utils.BoolPtr(true),
				Documents:        types.Documents{},
				CreatedAt:        utils.TimePtr(testClock()),
			},
			wantFields: nil,
		},
		{
			name: "licensed flag derived from badge number",
			app: &types.Application{
				ID:          "app-2",
				BadgeNumber: utils.StringPtr("B-1234"),
				Documents:   types.Documents{},
				CreatedAt:   utils.TimePtr(testClock()),
			},
			wantFields: []string{"isLicensedDriver"},
			verify: func(t *testing.T, patch Patch) {
				assert.Equal(t, true, patch["isLicensedDriver"])
			},
		},
		{
			name: "licensed flag derived from driving license number",
			app: &types.Application{
				ID:                   "app-3",
				DrivingLicenseNumber: utils.StringPtr("SMITH901011AB1CD"),
				Documents:            types.Documents{},
				CreatedAt:            utils.TimePtr(testClock()),
			},
			wantFields: []string{"isLicensedDriver"},
			verify: func(t *testing.T, patch Patch) {
				assert.Equal(t, true, patch["isLicensedDriver"])
			},
		},
		{
			name: "no license evidence means unlicensed",
			app: &types.Application{
				ID:        "app-4",
				Documents: types.Documents{},
				CreatedAt: utils.TimePtr(testClock()),
			},
			wantFields: []string{"isLicensedDriver"},
			verify: func(t *testing.T, patch Patch) {
				assert.Equal(t, false, patch["isLicensedDriver"])
			},
		},
		{
			name: "unlicensed driver gets an all-false progress scaffold",
			app: &types.Application{
				ID:               "app-5",
				IsLicensedDriver: utils.BoolPtr(false),
				Documents:        types.Documents{},
				CreatedAt:        utils.TimePtr(testClock()),
			},
			wantFields: []string{"unlicensedProgress"},
			verify: func(t *testing.T, patch Patch) {
				progress, ok := patch["unlicensedProgress"].(types.UnlicensedProgress)
				require.True(t, ok)
				assert.Equal(t, types.UnlicensedProgress{}, progress)
			},
		},
		{
			name: "missing documents map defaults to empty",
			app: &types.Application{
				ID:               "app-6",
				IsLicensedDriver: utils.BoolPtr(true),
				CreatedAt:        utils.TimePtr(testClock()),
			},
			wantFields: []string{"documents"},
			verify: func(t *testing.T, patch Patch) {
				assert.Equal(t, types.Documents{}, patch["documents"])
			},
		},
		{
			name: "vehicle details imply own vehicle",
			app: &types.Application{
				ID:               "app-7",
				IsLicensedDriver: utils.BoolPtr(true),
				VehicleReg:       utils.StringPtr("AB12 CDE"),
				Documents:        types.Documents{},
				CreatedAt:        utils.TimePtr(testClock()),
			},
			wantFields: []string{"hasOwnVehicle"},
			verify: func(t *testing.T, patch Patch) {
				assert.Equal(t, true, patch["hasOwnVehicle"])
			},
		},
		{
			name: "explicit hasOwnVehicle false is left alone",
			app: &types.Application{
				ID:               "app-8",
				IsLicensedDriver: utils.BoolPtr(true),
				VehicleReg:       utils.StringPtr("AB12 CDE"),
				HasOwnVehicle:    utils.BoolPtr(false),
				Documents:        types.Documents{},
				CreatedAt:        utils.TimePtr(testClock()),
			},
			wantFields: nil,
		},
		{
			name: "createdAt backfilled from the engine clock",
			app: &types.Application{
				ID:               "app-9",
				IsLicensedDriver: utils.BoolPtr(true),
				Documents:        types.Documents{},
			},
			wantFields: []string{"createdAt"},
			verify: func(t *testing.T, patch Patch) {
				assert.Equal(t, testClock(), patch["createdAt"])
			},
		},
	}

	engine := NewEngineWithClock(testClock)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, needed := engine.Updates(tt.app)

			if len(tt.wantFields) == 0 {
				assert.False(t, needed)
				assert.Nil(t, patch)
				return
			}

			require.True(t, needed)
			assert.ElementsMatch(t, tt.wantFields, patchFields(patch))
			if tt.verify != nil {
				tt.verify(t, patch)
			}
		})
	}
}

func TestEngine_Idempotence(t *testing.T) {
	engine := NewEngineWithClock(testClock)

	records := []*types.Application{
		{ID: "blank"},
		{ID: "badge-only", BadgeNumber: utils.StringPtr("B-99")},
		{ID: "unlicensed", IsLicensedDriver: utils.BoolPtr(false)},
		{ID: "vehicle", VehicleMake: utils.StringPtr("Toyota"), VehicleModel: utils.StringPtr("Prius")},
	}

	for _, app := range records {
		t.Run(app.ID, func(t *testing.T) {
			// A record may need several passes before it stabilizes, since
			// checks are evaluated against the unpatched snapshot. After at
			// most one pass per rule the record must be a fixed point.
			for i := 0; i < len(engine.Rules()); i++ {
				patch, needed := engine.Updates(app)
				if !needed {
					break
				}
				ApplyTo(app, patch)
			}

			patch, needed := engine.Updates(app)
			assert.False(t, needed, "stabilized record produced patch %v", patch)

			snapshot := *app
			patch, needed = engine.Updates(app)
			assert.False(t, needed)
			assert.Nil(t, patch)
			assert.Equal(t, snapshot, *app)
		})
	}
}

func TestEngine_FirstRuleWinsOnConflict(t *testing.T) {
	engine := &Engine{rules: []Rule{
		{
			Name:  "first",
			Check: func(*types.Application) bool { return true },
			Apply: func(*types.Application) Patch { return Patch{"hasOwnVehicle": true} },
		},
		{
			Name:  "second",
			Check: func(*types.Application) bool { return true },
			Apply: func(*types.Application) Patch { return Patch{"hasOwnVehicle": false} },
		},
	}}

	patch, needed := engine.Updates(&types.Application{ID: "x"})
	require.True(t, needed)
	assert.Equal(t, true, patch["hasOwnVehicle"])
}

type fakeRecordSource struct {
	apps    []*types.Application
	patched map[string]map[string]any
	failIDs map[string]bool
}

func (f *fakeRecordSource) All(ctx context.Context) ([]*types.Application, error) {
	return f.apps, nil
}

func (f *fakeRecordSource) MergePatch(ctx context.Context, id string, fields map[string]any) error {
	if f.failIDs[id] {
		return errors.New("write refused")
	}
	if f.patched == nil {
		f.patched = map[string]map[string]any{}
	}
	f.patched[id] = fields
	return nil
}

func TestReconciler_ContinuesPastFailures(t *testing.T) {
	source := &fakeRecordSource{
		apps: []*types.Application{
			{ID: "stale-1"},
			{ID: "stale-2"},
			{ID: "current", IsLicensedDriver: utils.BoolPtr(true), Documents: types.Documents{}, CreatedAt: utils.TimePtr(testClock())},
		},
		failIDs: map[string]bool{"stale-1": true},
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	reconciler := NewReconciler(NewEngineWithClock(testClock), source, logger)
	report, err := reconciler.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)

	require.Contains(t, source.patched, "stale-2")
	assert.NotContains(t, source.patched, "stale-1")

	var failed *RecordResult
	for i := range report.Results {
		if report.Results[i].ID == "stale-1" {
			failed = &report.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Error(t, failed.Err)
}
