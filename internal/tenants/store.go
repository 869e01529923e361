package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/syncqueue"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"go.uber.org/zap"
)

// Topic identifies tenant events on a hub.
const Topic = "tenants"

const (
	operationUpdate = "update"
	operationDelete = "delete"
)

var noOpLogger = zap.NewNop()

// Remote is the owner-scoped, row-oriented datastore tenants are mirrored to.
type Remote interface {
	FetchTenants(ctx context.Context, ownerID string) ([]Row, error)
	CreateTenant(ctx context.Context, row Row) (Row, error)
	UpdateTenant(ctx context.Context, id string, columns map[string]any) error
	DeleteTenant(ctx context.Context, id string) error
}

// IsRetryable reports whether a failed remote call may succeed on a later attempt.
func IsRetryable(err error) bool {
	return !errors.Is(err, ErrRemoteNotFound)
}

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Remote     Remote
	Queue      *syncqueue.Queue
	Hub        *events.Hub
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	// RemoteTimeout bounds the awaited remote calls made by LoadAll and Create.
	RemoteTimeout time.Duration
	// Seed populates the local collection before any remote load.
	Seed []Tenant
}

// Store keeps the tenant collection locally and mirrors writes to a Remote on a best-effort basis.
// Local state is authoritative for reads; remote failures never roll back local changes.
type Store struct {
	tenants       *workflow.Collection[Tenant]
	remote        Remote
	queue         *syncqueue.Queue
	hub           *events.Hub
	clock         func() time.Time
	idProvider    IDProvider
	logger        *zap.Logger
	remoteTimeout time.Duration

	mu         sync.RWMutex
	status     LoadStatus
	syncStates map[string]SyncState
}

// NewStore constructs the store and applies the configured seed.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Remote == nil {
		return nil, newServiceError(opStoreNew, reasonMissingRemote, errMissingRemote)
	}
	if cfg.Queue == nil {
		return nil, newServiceError(opStoreNew, reasonMissingQueue, errMissingQueue)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	store := &Store{
		tenants: workflow.NewCollection(workflow.CollectionConfig[Tenant]{
			Topic: Topic,
			Hub:   hub,
			Clock: clock,
		}),
		remote:        cfg.Remote,
		queue:         cfg.Queue,
		hub:           hub,
		clock:         clock,
		idProvider:    cfg.IDProvider,
		logger:        logger,
		remoteTimeout: cfg.RemoteTimeout,
		syncStates:    make(map[string]SyncState),
	}
	if len(cfg.Seed) > 0 {
		store.tenants.ReplaceAll(cfg.Seed, tenantID)
	}
	return store, nil
}

// Subscribe registers listener for every committed mutation and sync state change.
func (s *Store) Subscribe(listener events.Listener) func() {
	return s.hub.Subscribe(listener)
}

// LoadAll replaces the local collection with the owner's remote rows. An empty remote result
// keeps the local collection untouched; a failed fetch keeps it and records the error. Tenants
// with mirror calls still queued keep their local state: a pending update wins over the fetched
// row and a pending delete drops it.
func (s *Store) LoadAll(ctx context.Context, ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return newServiceError(opLoadAll, reasonMissingOwnerID, errMissingOwnerID)
	}

	s.updateStatus(func(status *LoadStatus) {
		status.Loading = true
	})

	pendingAtFetch := s.pendingIDs()
	fetchCtx, cancel := s.remoteContext(ctx)
	rows, err := s.remote.FetchTenants(fetchCtx, ownerID)
	cancel()
	if err != nil {
		s.logError(opLoadAll, reasonRemoteFetchFailed, err, zap.String("owner_id", ownerID))
		s.updateStatus(func(status *LoadStatus) {
			status.Loading = false
			status.LastError = err.Error()
		})
		return newServiceError(opLoadAll, reasonRemoteFetchFailed, err)
	}

	if len(rows) > 0 {
		s.tenants.ReplaceAll(s.mergePending(rows, pendingAtFetch), tenantID)
	} else {
		s.logger.Info("remote tenant collection empty; keeping local data", zap.String("owner_id", ownerID))
	}

	loadedAt := s.clock().UTC()
	s.updateStatus(func(status *LoadStatus) {
		status.Loading = false
		status.Synced = true
		status.LastError = ""
		status.LastLoadedAt = loadedAt
	})
	return nil
}

// Create adds a tenant. An unknown status is rejected with ErrInvalidStatus. With an owner id
// the remote create is attempted first and, on success, the collection is reloaded and the
// remote id returned. Otherwise, or when the remote create fails, the tenant is stored locally
// under a generated id.
func (s *Store) Create(ctx context.Context, input NewTenant, ownerID string) (string, error) {
	if err := input.validate(); err != nil {
		return "", err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID != "" {
		createCtx, cancel := s.remoteContext(ctx)
		created, err := s.remote.CreateTenant(createCtx, ToRow(input.toTenant("", ownerID)))
		cancel()
		if err == nil {
			if loadErr := s.LoadAll(ctx, ownerID); loadErr != nil {
				s.logError(opCreate, reasonReloadFailed, loadErr, zap.String("tenant_id", created.ID))
				s.putLocal(FromRow(created))
			}
			return created.ID, nil
		}
		s.logger.Warn("remote tenant create failed; storing locally",
			zap.String("operation", opCreate),
			zap.String("reason", reasonRemoteCreateFailed),
			zap.String("owner_id", ownerID),
			zap.Error(err))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, reasonIDGenerationFailed, err)
		return "", newServiceError(opCreate, reasonIDGenerationFailed, err)
	}
	if err := s.tenants.Insert(id, input.toTenant(id, ownerID)); err != nil {
		return "", err
	}
	return id, nil
}

// Update applies patch locally and queues the remote update. An unknown status is rejected
// with ErrInvalidStatus before anything changes.
func (s *Store) Update(id string, patch Patch) error {
	if err := patch.validate(); err != nil {
		return err
	}
	err := s.tenants.Mutate(id, events.KindUpdated, func(tenant *Tenant) error {
		patch.apply(tenant)
		return nil
	})
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTenantNotFound, id)
		}
		return err
	}

	columns := patch.Columns()
	if len(columns) == 0 {
		return nil
	}
	s.mirror(id, operationUpdate, func(ctx context.Context) error {
		return s.remote.UpdateTenant(ctx, id, columns)
	})
	return nil
}

// Delete removes the tenant locally and queues the remote delete.
func (s *Store) Delete(id string) error {
	if err := s.tenants.Delete(id); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTenantNotFound, id)
		}
		return err
	}
	s.mirror(id, operationDelete, func(ctx context.Context) error {
		return s.remote.DeleteTenant(ctx, id)
	})
	return nil
}

// GetByID returns the local tenant stored under id.
func (s *Store) GetByID(id string) (Tenant, error) {
	tenant, ok := s.tenants.Get(id)
	if !ok {
		return Tenant{}, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	return tenant, nil
}

// List returns every local tenant.
func (s *Store) List() []Tenant {
	return s.tenants.List()
}

// ListByProperty returns the tenants assigned to propertyID.
func (s *Store) ListByProperty(propertyID string) []Tenant {
	return s.tenants.Filter(func(tenant Tenant) bool {
		return tenant.PropertyID == propertyID
	})
}

// Search returns tenants whose name, email, property, unit or id contains term.
func (s *Store) Search(term string) []Tenant {
	return s.tenants.Filter(func(tenant Tenant) bool {
		return workflow.MatchesSearch(term,
			tenant.FullName(), tenant.Email, tenant.PropertyName, tenant.Unit, tenant.ID)
	})
}

// Status returns the outcome of the most recent LoadAll.
func (s *Store) Status() LoadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SyncStateOf returns the mirroring state of one tenant.
func (s *Store) SyncStateOf(id string) SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncStates[id]
}

// pendingIDs lists tenants with mirror calls queued or running.
func (s *Store) pendingIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make(map[string]struct{})
	for id, state := range s.syncStates {
		if state.Pending > 0 {
			pending[id] = struct{}{}
		}
	}
	return pending
}

// mergePending converts fetched rows, keeping the local copy of every tenant that was pending
// when the fetch started or still is. A row whose tenant is gone locally has a delete queued.
func (s *Store) mergePending(rows []Row, pendingAtFetch map[string]struct{}) []Tenant {
	pending := s.pendingIDs()
	for id := range pendingAtFetch {
		pending[id] = struct{}{}
	}

	merged := make([]Tenant, 0, len(rows))
	for _, row := range rows {
		if _, ok := pending[row.ID]; !ok {
			merged = append(merged, FromRow(row))
			continue
		}
		if local, ok := s.tenants.Get(row.ID); ok {
			merged = append(merged, local)
		}
	}
	return merged
}

func (s *Store) mirror(id, operation string, run func(context.Context) error) {
	s.updateSyncState(id, func(state *SyncState) {
		state.Pending++
	})

	err := s.queue.Enqueue(syncqueue.Job{
		EntityID:  id,
		Operation: operation,
		Run:       run,
		OnDone:    s.onMirrorDone,
	})
	if err != nil {
		s.logError(opEnqueueMirror, reasonQueueClosed, err,
			zap.String("tenant_id", id),
			zap.String("mirror_operation", operation))
		s.updateSyncState(id, func(state *SyncState) {
			state.Pending--
			state.Failed = true
			state.LastError = err.Error()
		})
	}
}

func (s *Store) onMirrorDone(result syncqueue.Result) {
	operation := opRemoteUpdate
	if result.Operation == operationDelete {
		operation = opRemoteDelete
	}
	if result.Err != nil {
		s.logError(operation, reasonRemoteSyncFailed, result.Err,
			zap.String("tenant_id", result.EntityID),
			zap.Int("attempts", result.Attempts))
	}

	syncedAt := s.clock().UTC()
	s.updateSyncState(result.EntityID, func(state *SyncState) {
		state.Pending--
		if result.Err != nil {
			state.Failed = true
			state.LastError = result.Err.Error()
			return
		}
		state.Failed = false
		state.LastError = ""
		state.LastSyncedAt = syncedAt
	})

	if result.Err == nil && result.Operation == operationDelete {
		s.mu.Lock()
		if state := s.syncStates[result.EntityID]; state.Pending == 0 && !s.tenants.Has(result.EntityID) {
			delete(s.syncStates, result.EntityID)
		}
		s.mu.Unlock()
	}
}

func (s *Store) putLocal(tenant Tenant) {
	err := s.tenants.Mutate(tenant.ID, events.KindUpdated, func(existing *Tenant) error {
		*existing = tenant
		return nil
	})
	if errors.Is(err, workflow.ErrNotFound) {
		_ = s.tenants.Insert(tenant.ID, tenant)
	}
}

func (s *Store) updateStatus(apply func(*LoadStatus)) {
	s.mu.Lock()
	apply(&s.status)
	s.mu.Unlock()
	s.publish(events.KindSyncChanged, "")
}

func (s *Store) updateSyncState(id string, apply func(*SyncState)) {
	s.mu.Lock()
	state := s.syncStates[id]
	apply(&state)
	s.syncStates[id] = state
	s.mu.Unlock()
	s.publish(events.KindSyncChanged, id)
}

func (s *Store) publish(kind events.Kind, id string) {
	s.hub.Publish(events.Event{
		Topic:    Topic,
		Kind:     kind,
		EntityID: id,
		At:       s.clock().UTC(),
	})
}

func (s *Store) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.remoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.remoteTimeout)
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("tenants store error", attrs...)
}

func tenantID(tenant Tenant) string {
	return tenant.ID
}
