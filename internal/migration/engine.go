// Package migration patches stale application records on read and in bulk.
//
// Old records written by earlier versions of the intake form can be missing
// fields the current code expects. Rather than a general migration engine,
// this is a fixed, ordered list of idempotent patches: each rule pairs a
// pure predicate over the raw record with a producer for the missing values.
package migration

import (
	"time"

	"driverhub/pkg/types"
)

// Patch is the set of field corrections to merge into a record, keyed by
// field name. An empty patch means the record is already current.
type Patch map[string]any

// Rule pairs an applicability check with a value producer. Check must be
// pure and read only the record; Apply must produce values that make Check
// false on the patched record, so re-running the rule set is a no-op.
type Rule struct {
	Name        string
	Description string
	Check       func(app *types.Application) bool
	Apply       func(app *types.Application) Patch
}

// Engine evaluates the rule list against record snapshots. The clock is
// injectable so the createdAt backfill is testable.
type Engine struct {
	rules []Rule
}

func NewEngine() *Engine {
	return NewEngineWithClock(time.Now)
}

func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{rules: defaultRules(now)}
}

func (e *Engine) Rules() []Rule {
	return e.rules
}

// Updates evaluates every rule's Check against the original snapshot, never
// against a partially patched one, and merges the applicable rules' outputs.
// If two rules ever produce the same field, the first rule wins; rule order
// is an explicit priority, not an accident of the list.
func (e *Engine) Updates(app *types.Application) (Patch, bool) {
	updates := Patch{}

	for _, rule := range e.rules {
		if !rule.Check(app) {
			continue
		}
		for field, value := range rule.Apply(app) {
			if _, taken := updates[field]; taken {
				continue
			}
			updates[field] = value
		}
	}

	if len(updates) == 0 {
		return nil, false
	}
	return updates, true
}

// ApplyTo writes a patch onto the record in place. The field names here are
// the only ones rules are allowed to produce.
func ApplyTo(app *types.Application, patch Patch) {
	for field, value := range patch {
		switch field {
		case "isLicensedDriver":
			v := value.(bool)
			app.IsLicensedDriver = &v
		case "unlicensedProgress":
			p := value.(types.UnlicensedProgress)
			app.UnlicensedProgress = &p
		case "documents":
			app.Documents = value.(types.Documents)
		case "hasOwnVehicle":
			v := value.(bool)
			app.HasOwnVehicle = &v
		case "createdAt":
			t := value.(time.Time)
			app.CreatedAt = &t
		}
	}
}

func defaultRules(now func() time.Time) []Rule {
	return []Rule{
		{
			Name:        "isLicensedDriver",
			Description: "Ensure isLicensedDriver field exists",
			Check: func(app *types.Application) bool {
				return app.IsLicensedDriver == nil
			},
			Apply: func(app *types.Application) Patch {
				licensed := hasValue(app.BadgeNumber) || hasValue(app.DrivingLicenseNumber)
				return Patch{"isLicensedDriver": licensed}
			},
		},
		{
			Name:        "unlicensedProgress",
			Description: "Add unlicensedProgress for unlicensed drivers",
			Check: func(app *types.Application) bool {
				return app.IsLicensedDriver != nil && !*app.IsLicensedDriver && app.UnlicensedProgress == nil
			},
			Apply: func(app *types.Application) Patch {
				return Patch{"unlicensedProgress": types.UnlicensedProgress{}}
			},
		},
		{
			Name:        "documents",
			Description: "Ensure documents object exists",
			Check: func(app *types.Application) bool {
				return app.Documents == nil
			},
			Apply: func(app *types.Application) Patch {
				return Patch{"documents": types.Documents{}}
			},
		},
		{
			Name:        "hasOwnVehicle",
			Description: "Set hasOwnVehicle if vehicle details exist",
			Check: func(app *types.Application) bool {
				return app.HasOwnVehicle == nil &&
					(hasValue(app.VehicleMake) || hasValue(app.VehicleModel) || hasValue(app.VehicleReg))
			},
			Apply: func(app *types.Application) Patch {
				return Patch{"hasOwnVehicle": true}
			},
		},
		{
			Name:        "createdAt",
			Description: "Ensure createdAt timestamp exists",
			Check: func(app *types.Application) bool {
				return app.CreatedAt == nil || app.CreatedAt.IsZero()
			},
			Apply: func(app *types.Application) Patch {
				return Patch{"createdAt": now()}
			},
		},
	}
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}
