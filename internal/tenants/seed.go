package tenants

import "github.com/shopspring/decimal"

// DemoTenants returns the sample collection a store starts with before its first remote load.
func DemoTenants() []Tenant {
	return []Tenant{
		{
			ID:           "demo-tenant-1",
			FirstName:    "Maya",
			LastName:     "Chen",
			Email:        "maya.chen@example.com",
			Phone:        "555-0101",
			PropertyID:   "prop-maple",
			PropertyName: "Maple Court",
			Unit:         "2A",
			LeaseStart:   "2025-01-01",
			LeaseEnd:     "2025-12-31",
			RentAmount:   decimal.NewFromInt(1850),
			Status:       StatusActive,
			Payments: Payments{
				Rent:        PaymentLine{Paid: decimal.NewFromInt(1850), Total: decimal.NewFromInt(1850)},
				Maintenance: PaymentLine{Paid: decimal.Zero, Total: decimal.NewFromInt(120)},
				Utility:     PaymentLine{Paid: decimal.NewFromInt(60), Total: decimal.NewFromInt(90)},
				Other:       PaymentLine{Paid: decimal.Zero, Total: decimal.Zero},
			},
		},
		{
			ID:           "demo-tenant-2",
			FirstName:    "Luis",
			LastName:     "Ortega",
			Email:        "luis.ortega@example.com",
			Phone:        "555-0102",
			PropertyID:   "prop-maple",
			PropertyName: "Maple Court",
			Unit:         "3B",
			LeaseStart:   "2024-06-01",
			LeaseEnd:     "2025-05-31",
			RentAmount:   decimal.NewFromInt(1600),
			Status:       StatusActive,
			Payments:     DefaultPayments(decimal.NewFromInt(1600)),
		},
		{
			ID:           "demo-tenant-3",
			FirstName:    "Priya",
			LastName:     "Natarajan",
			Email:        "priya.n@example.com",
			Phone:        "555-0103",
			PropertyID:   "prop-harbor",
			PropertyName: "Harbor View Lofts",
			Unit:         "11",
			LeaseStart:   "2023-09-01",
			LeaseEnd:     "2024-08-31",
			RentAmount:   decimal.NewFromInt(2200),
			Status:       StatusInactive,
			Payments: Payments{
				Rent:        PaymentLine{Paid: decimal.NewFromInt(2200), Total: decimal.NewFromInt(2200)},
				Maintenance: PaymentLine{Paid: decimal.Zero, Total: decimal.Zero},
				Utility:     PaymentLine{Paid: decimal.Zero, Total: decimal.Zero},
				Other:       PaymentLine{Paid: decimal.NewFromInt(50), Total: decimal.NewFromInt(200)},
			},
		},
	}
}
