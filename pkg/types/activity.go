package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ActivityActor string

const (
	ActorStaff     ActivityActor = "Staff"
	ActorApplicant ActivityActor = "Applicant"
	ActorSystem    ActivityActor = "System"
)

type ActivityType string

const (
	ActivityStatusUpdate              ActivityType = "Status Update"
	ActivityNotificationSent          ActivityType = "Notification Sent"
	ActivityDocumentUploadedByStaff   ActivityType = "Document Uploaded by Staff"
	ActivityApplicationSubmitted      ActivityType = "Application Submitted"
	ActivityDocumentUploaded          ActivityType = "Document Uploaded by Applicant"
	ActivityInformationUpdated        ActivityType = "Information Updated"
	ActivityVehicleAdded              ActivityType = "Vehicle Added"
	ActivityDBSNumberAdded            ActivityType = "DBS Number Added"
	ActivityUnlicensedProgressUpdated ActivityType = "Unlicensed Progress Updated"
)

// ActivityMetadata carries optional structured context for an entry.
type ActivityMetadata struct {
	OldValue          string `json:"oldValue,omitempty"`
	NewValue          string `json:"newValue,omitempty"`
	DocumentType      string `json:"documentType,omitempty"`
	DocumentCount     int    `json:"documentCount,omitempty"`
	NotificationTitle string `json:"notificationTitle,omitempty"`
}

func (m *ActivityMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *ActivityMetadata) Scan(src any) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("unsupported metadata column type %T", src)
}

// ActivityLogEntry is append-only. Entries are never mutated or deleted once
// written; display order is timestamp descending.
type ActivityLogEntry struct {
	ID             string            `db:"id"`
	ApplicationID  string            `db:"application_id"`
	ApplicantName  string            `db:"applicant_name"`
	ApplicantEmail string            `db:"applicant_email"`
	ActivityType   ActivityType      `db:"activity_type"`
	Actor          ActivityActor     `db:"actor"`
	ActorID        string            `db:"actor_id"`
	ActorName      string            `db:"actor_name"`
	Details        string            `db:"details"`
	Metadata       *ActivityMetadata `db:"metadata"` // jsonb
	Timestamp      time.Time         `db:"timestamp"`
}
