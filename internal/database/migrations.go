package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillRentTotals    = "2025-02-10_backfill_rent_totals"
	migrationNormalizeTenantStatus = "2025-02-24_normalize_tenant_status"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillRentTotals, apply: backfillRentTotals},
		{name: migrationNormalizeTenantStatus, apply: normalizeTenantStatus},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before the payment breakdown existed carry no rent total.
func backfillRentTotals(db *gorm.DB) error {
	return db.Model(&tenants.Row{}).
		Where("rent_total IN ?", []string{"", "0"}).
		Update("rent_total", gorm.Expr("rent_amount")).Error
}

func normalizeTenantStatus(db *gorm.DB) error {
	return db.Model(&tenants.Row{}).
		Where("status NOT IN ?", []string{string(tenants.StatusActive), string(tenants.StatusInactive)}).
		Update("status", string(tenants.StatusActive)).Error
}
