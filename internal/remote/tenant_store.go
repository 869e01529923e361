package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opFetchTenants = "remote.fetch_tenants"
	opCreateTenant = "remote.create_tenant"
	opUpdateTenant = "remote.update_tenant"
	opDeleteTenant = "remote.delete_tenant"

	fieldOwnerID  = "owner_id"
	fieldTenantID = "tenant_id"

	queryOwnerID    = fieldOwnerID + " = ?"
	queryID         = "id = ?"
	orderCreatedAsc = "created_at ASC, id ASC"

	reasonMissingDatabase    = "missing_database"
	reasonMissingOwnerID     = "missing_owner_id"
	reasonQueryFailed        = "query_failed"
	reasonInsertFailed       = "insert_failed"
	reasonUpdateFailed       = "update_failed"
	reasonDeleteFailed       = "delete_failed"
	reasonIDGenerationFailed = "id_generation_failed"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingOwnerID  = errors.New("owner identifier is required")
)

// ServiceError carries an operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: operation + "." + reason, err: cause}
}

// TenantStore persists tenant rows in a relational database, scoped by owner.
type TenantStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTenantStore wraps db. The tenants table must already be migrated.
func NewTenantStore(db *gorm.DB, logger *zap.Logger) *TenantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantStore{db: db, logger: logger}
}

// FetchTenants returns every row owned by ownerID in creation order.
func (s *TenantStore) FetchTenants(ctx context.Context, ownerID string) ([]tenants.Row, error) {
	if s.db == nil {
		return nil, newServiceError(opFetchTenants, reasonMissingDatabase, errMissingDatabase)
	}
	var rows []tenants.Row
	if err := s.db.WithContext(ctx).
		Where(queryOwnerID, ownerID).
		Order(orderCreatedAsc).
		Find(&rows).Error; err != nil {
		s.logError(opFetchTenants, reasonQueryFailed, err, zap.String(fieldOwnerID, ownerID))
		return nil, newServiceError(opFetchTenants, reasonQueryFailed, err)
	}
	return rows, nil
}

// CreateTenant inserts row, assigning a UUIDv7 when the row has no id, and returns the stored row.
func (s *TenantStore) CreateTenant(ctx context.Context, row tenants.Row) (tenants.Row, error) {
	if s.db == nil {
		return tenants.Row{}, newServiceError(opCreateTenant, reasonMissingDatabase, errMissingDatabase)
	}
	if strings.TrimSpace(row.OwnerID) == "" {
		return tenants.Row{}, newServiceError(opCreateTenant, reasonMissingOwnerID, errMissingOwnerID)
	}
	if row.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			s.logError(opCreateTenant, reasonIDGenerationFailed, err)
			return tenants.Row{}, newServiceError(opCreateTenant, reasonIDGenerationFailed, err)
		}
		row.ID = id.String()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opCreateTenant, reasonInsertFailed, err,
			zap.String(fieldOwnerID, row.OwnerID),
			zap.String(fieldTenantID, row.ID))
		return tenants.Row{}, newServiceError(opCreateTenant, reasonInsertFailed, err)
	}
	return row, nil
}

// UpdateTenant writes columns onto the row stored under id.
// It returns tenants.ErrRemoteNotFound when no such row exists.
func (s *TenantStore) UpdateTenant(ctx context.Context, id string, columns map[string]any) error {
	if s.db == nil {
		return newServiceError(opUpdateTenant, reasonMissingDatabase, errMissingDatabase)
	}
	result := s.db.WithContext(ctx).
		Model(&tenants.Row{}).
		Where(queryID, id).
		Updates(columns)
	if result.Error != nil {
		s.logError(opUpdateTenant, reasonUpdateFailed, result.Error, zap.String(fieldTenantID, id))
		return newServiceError(opUpdateTenant, reasonUpdateFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", tenants.ErrRemoteNotFound, id)
	}
	return nil
}

// DeleteTenant removes the row stored under id.
// It returns tenants.ErrRemoteNotFound when no such row exists.
func (s *TenantStore) DeleteTenant(ctx context.Context, id string) error {
	if s.db == nil {
		return newServiceError(opDeleteTenant, reasonMissingDatabase, errMissingDatabase)
	}
	result := s.db.WithContext(ctx).Where(queryID, id).Delete(&tenants.Row{})
	if result.Error != nil {
		s.logError(opDeleteTenant, reasonDeleteFailed, result.Error, zap.String(fieldTenantID, id))
		return newServiceError(opDeleteTenant, reasonDeleteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", tenants.ErrRemoteNotFound, id)
	}
	return nil
}

func (s *TenantStore) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("remote tenant store error", attrs...)
}
