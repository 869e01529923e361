package leases

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a lease application.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusLeaseReady  Status = "lease_ready"
	StatusLeaseSigned Status = "lease_signed"
)

var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusUnderReview, StatusApproved, StatusRejected},
	StatusApproved:    {StatusLeaseReady},
	StatusLeaseReady:  {StatusLeaseSigned},
}

// CanTransition reports whether the workflow allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further landlord transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

var (
	// ErrApplicationNotFound wraps workflow.ErrNotFound for unknown application ids.
	ErrApplicationNotFound = fmt.Errorf("leases: application %w", workflow.ErrNotFound)
	// ErrDraftNotFound wraps workflow.ErrNotFound when a tenant has no staged draft.
	ErrDraftNotFound = fmt.Errorf("leases: draft %w", workflow.ErrNotFound)
	// ErrDraftLeaseNotFound wraps workflow.ErrNotFound when no lease terms exist for an application.
	ErrDraftLeaseNotFound = fmt.Errorf("leases: draft lease %w", workflow.ErrNotFound)
	// ErrInvalidTransition indicates the workflow does not allow the requested status change.
	ErrInvalidTransition = errors.New("leases: invalid status transition")
)

// PersonalInfo identifies the applicant.
type PersonalInfo struct {
	FullName    string `json:"full_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

// ResidenceHistory describes where the applicant lives now.
type ResidenceHistory struct {
	CurrentAddress   string `json:"current_address" validate:"required"`
	MonthsAtAddress  int    `json:"months_at_address" validate:"gte=0"`
	LandlordName     string `json:"landlord_name"`
	LandlordPhone    string `json:"landlord_phone"`
	ReasonForLeaving string `json:"reason_for_leaving"`
}

// Employment describes the applicant's income source.
type Employment struct {
	Employer       string          `json:"employer"`
	JobTitle       string          `json:"job_title"`
	MonthlyIncome  decimal.Decimal `json:"monthly_income"`
	MonthsEmployed int             `json:"months_employed" validate:"gte=0"`
}

// Household captures occupancy declarations.
type Household struct {
	Occupants     int    `json:"occupants" validate:"gte=1"`
	HasPets       bool   `json:"has_pets"`
	PetDetails    string `json:"pet_details"`
	Smokers       bool   `json:"smokers"`
	PriorEviction bool   `json:"prior_eviction"`
}

// DocumentRef points at an uploaded supporting document.
type DocumentRef struct {
	Kind     string `json:"kind" validate:"required"`
	URI      string `json:"uri" validate:"required"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Documents lists uploaded supporting documents.
type Documents struct {
	Items []DocumentRef `json:"items" validate:"dive"`
}

// ApplicationDraft is the application payload, edited section by section before submission.
type ApplicationDraft struct {
	Personal   PersonalInfo     `json:"personal"`
	Residence  ResidenceHistory `json:"residence"`
	Employment Employment       `json:"employment"`
	Household  Household        `json:"household"`
	Documents  Documents        `json:"documents"`
}

func (d ApplicationDraft) clone() ApplicationDraft {
	d.Documents.Items = append([]DocumentRef(nil), d.Documents.Items...)
	return d
}

// DraftSection is one independently saved part of an ApplicationDraft.
type DraftSection interface {
	applyTo(draft *ApplicationDraft)
}

func (p PersonalInfo) applyTo(draft *ApplicationDraft)     { draft.Personal = p }
func (r ResidenceHistory) applyTo(draft *ApplicationDraft) { draft.Residence = r }
func (e Employment) applyTo(draft *ApplicationDraft)       { draft.Employment = e }
func (h Household) applyTo(draft *ApplicationDraft)        { draft.Household = h }
func (d Documents) applyTo(draft *ApplicationDraft) {
	draft.Documents = Documents{Items: append([]DocumentRef(nil), d.Items...)}
}

// Application is a submitted lease application.
type Application struct {
	ID              string           `json:"id"`
	TenantID        string           `json:"tenant_id"`
	PropertyID      string           `json:"property_id,omitempty"`
	Status          Status           `json:"status"`
	Draft           ApplicationDraft `json:"draft"`
	InfoRequests    []string         `json:"info_requests,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Signature       string           `json:"signature,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	SignedAt        *time.Time       `json:"signed_at,omitempty"`
}

func cloneApplication(application Application) Application {
	application.Draft = application.Draft.clone()
	application.InfoRequests = append([]string(nil), application.InfoRequests...)
	if application.SignedAt != nil {
		signedAt := *application.SignedAt
		application.SignedAt = &signedAt
	}
	return application
}

// LeaseTerms are the landlord-supplied terms attached to an approved application.
type LeaseTerms struct {
	Rent              decimal.Decimal `json:"rent"`
	Deposit           decimal.Decimal `json:"deposit"`
	StartDate         string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string          `json:"end_date" validate:"required,datetime=2006-01-02"`
	AllowPets         bool            `json:"allow_pets"`
	InsuranceRequired bool            `json:"insurance_required"`
}

// DraftLease holds the lease terms for one application, keyed by application id.
type DraftLease struct {
	ApplicationID string     `json:"application_id"`
	Terms         LeaseTerms `json:"terms"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Filter narrows Query results.
type Filter struct {
	Status Status
	Search string
}
