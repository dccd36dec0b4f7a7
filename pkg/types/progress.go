package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Milestone identifies one step of the unlicensed driver checklist. The
// steps carry no enforced ordering, the dashboard merely suggests one.
type Milestone string

const (
	MilestoneEligibility        Milestone = "eligibilityChecked"
	MilestoneDBSApplied         Milestone = "dbsApplied"
	MilestoneMedicalBooked      Milestone = "medicalBooked"
	MilestoneKnowledgeTest      Milestone = "knowledgeTestPassed"
	MilestoneCouncilApplication Milestone = "councilApplicationSubmitted"
)

var Milestones = []Milestone{
	MilestoneEligibility,
	MilestoneDBSApplied,
	MilestoneMedicalBooked,
	MilestoneKnowledgeTest,
	MilestoneCouncilApplication,
}

// UnlicensedProgress tracks an unlicensed applicant through the council
// licensing journey. BadgeReceived is terminal: it triggers the one-way
// conversion into the licensed flow rather than flipping in place.
type UnlicensedProgress struct {
	EligibilityChecked          bool    `json:"eligibilityChecked"`
	DBSApplied                  bool    `json:"dbsApplied"`
	DBSDocumentURL              *string `json:"dbsDocumentUrl,omitempty"`
	MedicalBooked               bool    `json:"medicalBooked"`
	MedicalDocumentURL          *string `json:"medicalDocumentUrl,omitempty"`
	KnowledgeTestPassed         bool    `json:"knowledgeTestPassed"`
	KnowledgeTestDocumentURL    *string `json:"knowledgeTestDocumentUrl,omitempty"`
	CouncilApplicationSubmitted bool    `json:"councilApplicationSubmitted"`
	BadgeReceived               bool    `json:"badgeReceived"`
}

func (p *UnlicensedProgress) Checked(m Milestone) bool {
	switch m {
	case MilestoneEligibility:
		return p.EligibilityChecked
	case MilestoneDBSApplied:
		return p.DBSApplied
	case MilestoneMedicalBooked:
		return p.MedicalBooked
	case MilestoneKnowledgeTest:
		return p.KnowledgeTestPassed
	case MilestoneCouncilApplication:
		return p.CouncilApplicationSubmitted
	}
	return false
}

func (p *UnlicensedProgress) SetChecked(m Milestone, checked bool) error {
	switch m {
	case MilestoneEligibility:
		p.EligibilityChecked = checked
	case MilestoneDBSApplied:
		p.DBSApplied = checked
	case MilestoneMedicalBooked:
		p.MedicalBooked = checked
	case MilestoneKnowledgeTest:
		p.KnowledgeTestPassed = checked
	case MilestoneCouncilApplication:
		p.CouncilApplicationSubmitted = checked
	default:
		return fmt.Errorf("unknown milestone %q", m)
	}
	return nil
}

// SetDocumentURL attaches evidence to a milestone. Uploading is allowed
// independent of the checkbox state.
func (p *UnlicensedProgress) SetDocumentURL(m Milestone, url string) error {
	switch m {
	case MilestoneDBSApplied:
		p.DBSDocumentURL = &url
	case MilestoneMedicalBooked:
		p.MedicalDocumentURL = &url
	case MilestoneKnowledgeTest:
		p.KnowledgeTestDocumentURL = &url
	default:
		return fmt.Errorf("milestone %q does not take a document", m)
	}
	return nil
}

// AllComplete reports whether every checklist milestone is done, which is
// the gate for the badge-received conversion action.
func (p *UnlicensedProgress) AllComplete() bool {
	for _, m := range Milestones {
		if !p.Checked(m) {
			return false
		}
	}
	return true
}

func (p *UnlicensedProgress) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *UnlicensedProgress) Scan(src any) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return fmt.Errorf("unsupported progress column type %T", src)
}
