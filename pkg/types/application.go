package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ApplicationStatus string

const (
	StatusSubmitted        ApplicationStatus = "Submitted"
	StatusUnderReview      ApplicationStatus = "Under Review"
	StatusContacted        ApplicationStatus = "Contacted"
	StatusMeetingScheduled ApplicationStatus = "Meeting Scheduled"
	StatusApproved         ApplicationStatus = "Approved"
	StatusRejected         ApplicationStatus = "Rejected"
)

// Application is the single record an applicant builds up over time. The row
// is keyed by the owning identity's ID, so there is exactly one per driver.
type Application struct {
	ID        string `db:"id"`
	FirstName string `db:"first_name" form:"first_name"`
	LastName  string `db:"last_name" form:"last_name"`
	Email     string `db:"email" form:"email"`
	Phone     string `db:"phone" form:"phone"`
	Area      string `db:"area" form:"area"`

	// Nil until we know which branch of the form applies.
	IsLicensedDriver *bool `db:"is_licensed_driver" form:"is_licensed_driver"`

	// Licensed branch. All optional, drivers provide what they can.
	BadgeNumber          *string `db:"badge_number" form:"badge_number"`
	BadgeExpiry          *string `db:"badge_expiry" form:"badge_expiry"`
	IssuingCouncil       *string `db:"issuing_council" form:"issuing_council"`
	DrivingLicenseNumber *string `db:"driving_license_number" form:"driving_license_number"`
	LicenseExpiry        *string `db:"license_expiry" form:"license_expiry"`
	DBSCheckNumber       *string `db:"dbs_check_number" form:"dbs_check_number"`

	HasOwnVehicle   *bool   `db:"has_own_vehicle" form:"has_own_vehicle"`
	VehicleMake     *string `db:"vehicle_make" form:"vehicle_make"`
	VehicleModel    *string `db:"vehicle_model" form:"vehicle_model"`
	VehicleReg      *string `db:"vehicle_reg" form:"vehicle_reg"`
	InsuranceExpiry *string `db:"insurance_expiry" form:"insurance_expiry"`

	Documents Documents `db:"documents"` // jsonb

	// Populated only while IsLicensedDriver is false.
	UnlicensedProgress *UnlicensedProgress `db:"unlicensed_progress"` // jsonb

	Status      *ApplicationStatus `db:"status"`
	CurrentStep *int               `db:"current_step" form:"current_step"`
	IsPartial   bool               `db:"is_partial"`
	CreatedAt   *time.Time         `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

func (a *Application) FullName() string {
	return fmt.Sprintf("%s %s", a.FirstName, a.LastName)
}

// Submitted reports whether the record has been through final submission.
// A submitted record never returns to the draft state.
func (a *Application) Submitted() bool {
	return a.Status != nil && !a.IsPartial
}

// Documents maps a named slot (badgeDocumentUrl, insuranceDocumentUrl, ...)
// to the stored file's public URL. Keys are additive from the applicant's
// side: a merge never clears a slot that isn't explicitly replaced.
type Documents map[string]string

const (
	DocBadge          = "badgeDocumentUrl"
	DocDrivingLicense = "drivingLicenseDocumentUrl"
	DocInsurance      = "insuranceDocumentUrl"
	DocV5C            = "v5cDocumentUrl"
	DocPHVLicence     = "phvLicenceDocumentUrl"
)

func (d Documents) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *Documents) Scan(src any) error {
	if src == nil {
		*d = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return fmt.Errorf("unsupported documents column type %T", src)
}

// Merge overlays incoming slots on top of the existing map without dropping
// anything already stored.
func (d Documents) Merge(incoming Documents) Documents {
	out := make(Documents, len(d)+len(incoming))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range incoming {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
