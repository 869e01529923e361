package maintenance

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
)

// Status is the lifecycle state of a maintenance request. Any status may follow any other.
type Status string

const (
	StatusNew           Status = "new"
	StatusUnderReview   Status = "under_review"
	StatusInProgress    Status = "in_progress"
	StatusWaitingVendor Status = "waiting_vendor"
	StatusResolved      Status = "resolved"
	StatusCancelled     Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusUnderReview, StatusInProgress, StatusWaitingVendor, StatusResolved, StatusCancelled:
		return true
	default:
		return false
	}
}

// Category classifies the kind of repair requested.
type Category string

const (
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryAppliance  Category = "appliance"
	CategoryHVAC       Category = "hvac"
	CategoryPest       Category = "pest"
	CategoryStructural Category = "structural"
	CategoryOther      Category = "other"
)

// Urgency ranks how quickly a request needs attention.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

const (
	// ActorTenant is recorded on entries created by the tenant.
	ActorTenant = "Tenant"
	// ActorLandlord is the default actor for landlord-side actions.
	ActorLandlord = "Landlord"
)

var (
	// ErrRequestNotFound wraps workflow.ErrNotFound for unknown request ids.
	ErrRequestNotFound = fmt.Errorf("maintenance: request %w", workflow.ErrNotFound)
	// ErrInvalidStatus indicates a status outside the known set.
	ErrInvalidStatus = errors.New("maintenance: invalid status")
)

// Attachment references an uploaded file. Contents are never inspected.
type Attachment struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Availability is the tenant's preferred access window.
type Availability struct {
	Days      []string `json:"days"`
	TimeSlots []string `json:"time_slots"`
	Notes     string   `json:"notes,omitempty"`
}

// Activity is one append-only log entry.
type Activity struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Actor     string    `json:"actor"`
}

// Submission carries the tenant-supplied fields of a new request.
type Submission struct {
	TenantID     string       `json:"tenant_id"`
	TenantName   string       `json:"tenant_name"`
	PropertyID   string       `json:"property_id"`
	PropertyName string       `json:"property_name"`
	Unit         string       `json:"unit"`
	Category     Category     `json:"category"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Urgency      Urgency      `json:"urgency"`
	Availability Availability `json:"availability"`
	AllowEntry   bool         `json:"allow_entry"`
	Attachments  []Attachment `json:"attachments"`
}

// Request is a stored maintenance ticket.
type Request struct {
	ID string `json:"id"`
	Submission
	Status          Status     `json:"status"`
	AssignedVendor  string     `json:"assigned_vendor,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	Activity        []Activity `json:"activity"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func cloneRequest(request Request) Request {
	request.Attachments = append([]Attachment(nil), request.Attachments...)
	request.Availability.Days = append([]string(nil), request.Availability.Days...)
	request.Availability.TimeSlots = append([]string(nil), request.Availability.TimeSlots...)
	request.Activity = append([]Activity(nil), request.Activity...)
	return request
}

// Filter narrows Query results.
type Filter struct {
	Status Status
	Search string
}
