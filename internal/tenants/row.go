package tenants

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is the flat, snake_case shape exchanged with the remote datastore.
type Row struct {
	ID               string          `gorm:"column:id;primaryKey;size:64" json:"id"`
	OwnerID          string          `gorm:"column:owner_id;size:190;not null;index:idx_tenants_owner_property,priority:1" json:"owner_id"`
	FirstName        string          `gorm:"column:first_name;size:190;not null;default:''" json:"first_name"`
	LastName         string          `gorm:"column:last_name;size:190;not null;default:''" json:"last_name"`
	Email            string          `gorm:"column:email;size:320;not null;default:''" json:"email"`
	Phone            string          `gorm:"column:phone;size:64;not null;default:''" json:"phone"`
	PropertyID       string          `gorm:"column:property_id;size:190;not null;default:'';index:idx_tenants_owner_property,priority:2" json:"property_id"`
	PropertyName     string          `gorm:"column:property_name;size:320;not null;default:''" json:"property_name"`
	Unit             string          `gorm:"column:unit;size:64;not null;default:''" json:"unit"`
	LeaseStart       string          `gorm:"column:lease_start;size:10;not null;default:''" json:"lease_start"`
	LeaseEnd         string          `gorm:"column:lease_end;size:10;not null;default:''" json:"lease_end"`
	RentAmount       decimal.Decimal `gorm:"column:rent_amount;type:text;not null" json:"rent_amount"`
	Status           string          `gorm:"column:status;size:16;not null" json:"status"`
	RentPaid         decimal.Decimal `gorm:"column:rent_paid;type:text;not null" json:"rent_paid"`
	RentTotal        decimal.Decimal `gorm:"column:rent_total;type:text;not null" json:"rent_total"`
	MaintenancePaid  decimal.Decimal `gorm:"column:maintenance_paid;type:text;not null" json:"maintenance_paid"`
	MaintenanceTotal decimal.Decimal `gorm:"column:maintenance_total;type:text;not null" json:"maintenance_total"`
	UtilityPaid      decimal.Decimal `gorm:"column:utility_paid;type:text;not null" json:"utility_paid"`
	UtilityTotal     decimal.Decimal `gorm:"column:utility_total;type:text;not null" json:"utility_total"`
	OtherPaid        decimal.Decimal `gorm:"column:other_paid;type:text;not null" json:"other_paid"`
	OtherTotal       decimal.Decimal `gorm:"column:other_total;type:text;not null" json:"other_total"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Row) TableName() string {
	return "tenants"
}

// ToRow flattens a tenant into the remote shape.
func ToRow(tenant Tenant) Row {
	return Row{
		ID:               tenant.ID,
		OwnerID:          tenant.OwnerID,
		FirstName:        tenant.FirstName,
		LastName:         tenant.LastName,
		Email:            tenant.Email,
		Phone:            tenant.Phone,
		PropertyID:       tenant.PropertyID,
		PropertyName:     tenant.PropertyName,
		Unit:             tenant.Unit,
		LeaseStart:       tenant.LeaseStart,
		LeaseEnd:         tenant.LeaseEnd,
		RentAmount:       tenant.RentAmount,
		Status:           string(tenant.Status),
		RentPaid:         tenant.Payments.Rent.Paid,
		RentTotal:        tenant.Payments.Rent.Total,
		MaintenancePaid:  tenant.Payments.Maintenance.Paid,
		MaintenanceTotal: tenant.Payments.Maintenance.Total,
		UtilityPaid:      tenant.Payments.Utility.Paid,
		UtilityTotal:     tenant.Payments.Utility.Total,
		OtherPaid:        tenant.Payments.Other.Paid,
		OtherTotal:       tenant.Payments.Other.Total,
	}
}

// FromRow rebuilds the nested local shape from a remote row.
func FromRow(row Row) Tenant {
	return Tenant{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		Phone:        row.Phone,
		PropertyID:   row.PropertyID,
		PropertyName: row.PropertyName,
		Unit:         row.Unit,
		LeaseStart:   row.LeaseStart,
		LeaseEnd:     row.LeaseEnd,
		RentAmount:   row.RentAmount,
		Status:       Status(row.Status),
		Payments: Payments{
			Rent:        PaymentLine{Paid: row.RentPaid, Total: row.RentTotal},
			Maintenance: PaymentLine{Paid: row.MaintenancePaid, Total: row.MaintenanceTotal},
			Utility:     PaymentLine{Paid: row.UtilityPaid, Total: row.UtilityTotal},
			Other:       PaymentLine{Paid: row.OtherPaid, Total: row.OtherTotal},
		},
	}
}

// Columns maps the patch onto remote column names for a partial update.
func (p Patch) Columns() map[string]any {
	columns := make(map[string]any)
	putString(columns, "first_name", p.FirstName)
	putString(columns, "last_name", p.LastName)
	putString(columns, "email", p.Email)
	putString(columns, "phone", p.Phone)
	putString(columns, "property_id", p.PropertyID)
	putString(columns, "property_name", p.PropertyName)
	putString(columns, "unit", p.Unit)
	putString(columns, "lease_start", p.LeaseStart)
	putString(columns, "lease_end", p.LeaseEnd)
	if p.RentAmount != nil {
		columns["rent_amount"] = *p.RentAmount
	}
	if p.Status != nil {
		columns["status"] = string(*p.Status)
	}
	if p.Payments != nil {
		columns["rent_paid"] = p.Payments.Rent.Paid
		columns["rent_total"] = p.Payments.Rent.Total
		columns["maintenance_paid"] = p.Payments.Maintenance.Paid
		columns["maintenance_total"] = p.Payments.Maintenance.Total
		columns["utility_paid"] = p.Payments.Utility.Paid
		columns["utility_total"] = p.Payments.Utility.Total
		columns["other_paid"] = p.Payments.Other.Paid
		columns["other_total"] = p.Payments.Other.Total
	}
	return columns
}

func putString(columns map[string]any, column string, value *string) {
	if value != nil {
		columns[column] = *value
	}
}
