package tenants

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"github.com/shopspring/decimal"
)

// Status reports whether a tenant currently occupies a unit.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

var (
	// ErrTenantNotFound wraps workflow.ErrNotFound for unknown tenant ids.
	ErrTenantNotFound = fmt.Errorf("tenants: tenant %w", workflow.ErrNotFound)
	// ErrRemoteNotFound is returned by a Remote when the addressed row does not exist.
	ErrRemoteNotFound = errors.New("tenants: remote row not found")
	// ErrInvalidStatus indicates a status outside the known set.
	ErrInvalidStatus = errors.New("tenants: invalid status")
)

var hundred = decimal.NewFromInt(100)

// PaymentLine tracks how much of one payment category has been paid.
type PaymentLine struct {
	Paid  decimal.Decimal `json:"paid"`
	Total decimal.Decimal `json:"total"`
}

// Percentage returns Paid as a whole-number percentage of Total, or 0 when Total is zero.
func (p PaymentLine) Percentage() int {
	if p.Total.IsZero() {
		return 0
	}
	return int(p.Paid.Mul(hundred).Div(p.Total).Round(0).IntPart())
}

// Payments is the per-category payment breakdown for a tenant.
type Payments struct {
	Rent        PaymentLine `json:"rent"`
	Maintenance PaymentLine `json:"maintenance"`
	Utility     PaymentLine `json:"utility"`
	Other       PaymentLine `json:"other"`
}

// DefaultPayments is the breakdown for a new tenant: nothing paid, rent due in full.
func DefaultPayments(rent decimal.Decimal) Payments {
	return Payments{
		Rent:        PaymentLine{Paid: decimal.Zero, Total: rent},
		Maintenance: PaymentLine{Paid: decimal.Zero, Total: decimal.Zero},
		Utility:     PaymentLine{Paid: decimal.Zero, Total: decimal.Zero},
		Other:       PaymentLine{Paid: decimal.Zero, Total: decimal.Zero},
	}
}

// Tenant is the locally held tenant record.
type Tenant struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	PropertyID   string          `json:"property_id"`
	PropertyName string          `json:"property_name"`
	Unit         string          `json:"unit"`
	LeaseStart   string          `json:"lease_start"`
	LeaseEnd     string          `json:"lease_end"`
	RentAmount   decimal.Decimal `json:"rent_amount"`
	Status       Status          `json:"status"`
	Payments     Payments        `json:"payments"`
}

// FullName joins first and last name.
func (t Tenant) FullName() string {
	switch {
	case t.FirstName == "":
		return t.LastName
	case t.LastName == "":
		return t.FirstName
	default:
		return t.FirstName + " " + t.LastName
	}
}

// NewTenant is the caller-supplied payload for Create. Nil Payments selects DefaultPayments.
type NewTenant struct {
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	PropertyID   string          `json:"property_id"`
	PropertyName string          `json:"property_name"`
	Unit         string          `json:"unit"`
	LeaseStart   string          `json:"lease_start"`
	LeaseEnd     string          `json:"lease_end"`
	RentAmount   decimal.Decimal `json:"rent_amount"`
	Status       Status          `json:"status"`
	Payments     *Payments       `json:"payments"`
}

func (n NewTenant) validate() error {
	if n.Status != "" && !n.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, n.Status)
	}
	return nil
}

func (n NewTenant) toTenant(id, ownerID string) Tenant {
	payments := DefaultPayments(n.RentAmount)
	if n.Payments != nil {
		payments = *n.Payments
	}
	status := n.Status
	if status == "" {
		status = StatusActive
	}
	return Tenant{
		ID:           id,
		OwnerID:      ownerID,
		FirstName:    n.FirstName,
		LastName:     n.LastName,
		Email:        n.Email,
		Phone:        n.Phone,
		PropertyID:   n.PropertyID,
		PropertyName: n.PropertyName,
		Unit:         n.Unit,
		LeaseStart:   n.LeaseStart,
		LeaseEnd:     n.LeaseEnd,
		RentAmount:   n.RentAmount,
		Status:       status,
		Payments:     payments,
	}
}

// Patch lists the fields an Update changes. Nil fields are left alone.
type Patch struct {
	FirstName    *string          `json:"first_name,omitempty"`
	LastName     *string          `json:"last_name,omitempty"`
	Email        *string          `json:"email,omitempty"`
	Phone        *string          `json:"phone,omitempty"`
	PropertyID   *string          `json:"property_id,omitempty"`
	PropertyName *string          `json:"property_name,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
	LeaseStart   *string          `json:"lease_start,omitempty"`
	LeaseEnd     *string          `json:"lease_end,omitempty"`
	RentAmount   *decimal.Decimal `json:"rent_amount,omitempty"`
	Status       *Status          `json:"status,omitempty"`
	Payments     *Payments        `json:"payments,omitempty"`
}

func (p Patch) validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	return nil
}

func (p Patch) apply(tenant *Tenant) {
	setString(&tenant.FirstName, p.FirstName)
	setString(&tenant.LastName, p.LastName)
	setString(&tenant.Email, p.Email)
	setString(&tenant.Phone, p.Phone)
	setString(&tenant.PropertyID, p.PropertyID)
	setString(&tenant.PropertyName, p.PropertyName)
	setString(&tenant.Unit, p.Unit)
	setString(&tenant.LeaseStart, p.LeaseStart)
	setString(&tenant.LeaseEnd, p.LeaseEnd)
	if p.RentAmount != nil {
		tenant.RentAmount = *p.RentAmount
	}
	if p.Status != nil {
		tenant.Status = *p.Status
	}
	if p.Payments != nil {
		tenant.Payments = *p.Payments
	}
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}

// LoadStatus exposes the outcome of the most recent LoadAll.
type LoadStatus struct {
	Loading      bool      `json:"loading"`
	Synced       bool      `json:"synced"`
	LastError    string    `json:"last_error,omitempty"`
	LastLoadedAt time.Time `json:"last_loaded_at,omitempty"`
}

// SyncState exposes the mirroring state of one tenant.
type SyncState struct {
	Pending      int       `json:"pending"`
	Failed       bool      `json:"failed"`
	LastError    string    `json:"last_error,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
}
