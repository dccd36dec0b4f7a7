package migration

import (
	"context"
	"fmt"

	"driverhub/pkg/types"

	"github.com/sirupsen/logrus"
)

// RecordSource is the slice of the application store the reconciler needs.
// MergePatch must only fill the supplied fields, leaving everything else on
// the row untouched, so reconciliation is safe to run alongside live
// applicant traffic.
type RecordSource interface {
	All(ctx context.Context) ([]*types.Application, error)
	MergePatch(ctx context.Context, id string, fields map[string]any) error
}

type RecordResult struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Migrations []string `json:"migrations"`
	Err        error    `json:"-"`
}

type Report struct {
	Checked int            `json:"checked"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Results []RecordResult `json:"details,omitempty"`
}

// Reconciler walks every stored application and applies the same rule list
// the create path uses. One record failing never aborts the batch.
type Reconciler struct {
	engine *Engine
	source RecordSource
	logger *logrus.Logger
}

func NewReconciler(engine *Engine, source RecordSource, logger *logrus.Logger) *Reconciler {
	return &Reconciler{engine: engine, source: source, logger: logger}
}

func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	apps, err := r.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	report := &Report{}
	for _, app := range apps {
		report.Checked++

		patch, needed := r.engine.Updates(app)
		if !needed {
			report.Skipped++
			continue
		}

		result := RecordResult{
			ID:         app.ID,
			Name:       app.FullName(),
			Migrations: patchFields(patch),
		}

		if err := r.source.MergePatch(ctx, app.ID, map[string]any(patch)); err != nil {
			result.Err = err
			report.Failed++
			r.logger.WithError(err).WithField("application_id", app.ID).Error("failed to migrate application")
		} else {
			report.Updated++
			r.logger.WithFields(logrus.Fields{
				"application_id": app.ID,
				"migrations":     result.Migrations,
			}).Info("migrated application")
		}

		report.Results = append(report.Results, result)
	}

	return report, nil
}

func patchFields(patch Patch) []string {
	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	return fields
}
