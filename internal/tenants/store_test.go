package tenants

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/syncqueue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testOwnerID = "owner-1"

var errRemoteDown = errors.New("remote unavailable")

type fakeRemote struct {
	mu        sync.Mutex
	rows      []Row
	fetchErr  error
	createErr error
	updateErr error
	deleteErr error
	calls     []string
	updates   map[string]map[string]any
	nextID    int
}

func (r *fakeRemote) FetchTenants(_ context.Context, ownerID string) ([]Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "fetch:"+ownerID)
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	result := make([]Row, 0, len(r.rows))
	for _, row := range r.rows {
		if row.OwnerID == ownerID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (r *fakeRemote) CreateTenant(_ context.Context, row Row) (Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "create")
	if r.createErr != nil {
		return Row{}, r.createErr
	}
	r.nextID++
	row.ID = fmt.Sprintf("remote-%d", r.nextID)
	r.rows = append(r.rows, row)
	return row, nil
}

func (r *fakeRemote) UpdateTenant(_ context.Context, id string, columns map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "update:"+id)
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.updates == nil {
		r.updates = make(map[string]map[string]any)
	}
	r.updates[id] = columns
	return nil
}

func (r *fakeRemote) DeleteTenant(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "delete:"+id)
	return r.deleteErr
}

func (r *fakeRemote) recordedCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fixedIDProvider struct {
	ids []string
	err error
}

func (p *fixedIDProvider) NewID() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	id := p.ids[0]
	p.ids = p.ids[1:]
	return id, nil
}

type storeHarness struct {
	store  *Store
	remote *fakeRemote
	queue  *syncqueue.Queue
	logs   *observer.ObservedLogs
}

func newHarness(t *testing.T, remote *fakeRemote, seed []Tenant) storeHarness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	queue := syncqueue.New(syncqueue.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
		Retryable:      IsRetryable,
	})
	queue.Start(ctx)

	store, err := NewStore(StoreConfig{
		Remote:        remote,
		Queue:         queue,
		Clock:         func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
		IDProvider:    &fixedIDProvider{ids: []string{"local-1", "local-2"}},
		Logger:        logger,
		RemoteTimeout: time.Second,
		Seed:          seed,
	})
	require.NoError(t, err)
	return storeHarness{store: store, remote: remote, queue: queue, logs: logs}
}

func (h storeHarness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.queue.Flush(ctx))
}

func ids(tenants []Tenant) []string {
	result := make([]string, 0, len(tenants))
	for _, tenant := range tenants {
		result = append(result, tenant.ID)
	}
	return result
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	queue := syncqueue.New(syncqueue.Config{})
	testCases := []struct {
		name string
		cfg  StoreConfig
		code string
	}{
		{name: "remote", cfg: StoreConfig{Queue: queue, IDProvider: NewUUIDProvider()}, code: "tenants.store.new.missing_remote"},
		{name: "queue", cfg: StoreConfig{Remote: &fakeRemote{}, IDProvider: NewUUIDProvider()}, code: "tenants.store.new.missing_queue"},
		{name: "id provider", cfg: StoreConfig{Remote: &fakeRemote{}, Queue: queue}, code: "tenants.store.new.missing_id_provider"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := NewStore(testCase.cfg)
			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			require.Equal(t, testCase.code, serviceErr.Code())
		})
	}
}

func TestLoadAllEmptyRemoteKeepsSeed(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())

	require.NoError(t, harness.store.LoadAll(context.Background(), testOwnerID))

	require.Equal(t, []string{"demo-tenant-1", "demo-tenant-2", "demo-tenant-3"}, ids(harness.store.List()))
	status := harness.store.Status()
	require.True(t, status.Synced)
	require.False(t, status.Loading)
	require.Empty(t, status.LastError)
}

func TestLoadAllReplacesCollectionWithRemoteRows(t *testing.T) {
	remote := &fakeRemote{rows: []Row{
		{ID: "r-1", OwnerID: testOwnerID, FirstName: "Ana", Status: "active", RentAmount: decimal.NewFromInt(900)},
		{ID: "r-2", OwnerID: testOwnerID, FirstName: "Ben", Status: "inactive"},
		{ID: "r-3", OwnerID: "someone-else", FirstName: "Cy"},
	}}
	harness := newHarness(t, remote, DemoTenants())

	require.NoError(t, harness.store.LoadAll(context.Background(), testOwnerID))

	require.Equal(t, []string{"r-1", "r-2"}, ids(harness.store.List()))
	tenant, err := harness.store.GetByID("r-2")
	require.NoError(t, err)
	require.Equal(t, StatusInactive, tenant.Status)
	_, err = harness.store.GetByID("demo-tenant-1")
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestLoadAllFailureKeepsLocalData(t *testing.T) {
	harness := newHarness(t, &fakeRemote{fetchErr: errRemoteDown}, DemoTenants())

	err := harness.store.LoadAll(context.Background(), testOwnerID)

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "tenants.load_all.remote_fetch_failed", serviceErr.Code())
	require.ErrorIs(t, err, errRemoteDown)
	require.Len(t, harness.store.List(), 3)
	status := harness.store.Status()
	require.False(t, status.Synced)
	require.False(t, status.Loading)
	require.Equal(t, errRemoteDown.Error(), status.LastError)
	require.Equal(t, 1, harness.logs.FilterField(zap.String("reason", "remote_fetch_failed")).Len())
}

func TestLoadAllRequiresOwnerID(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, nil)

	err := harness.store.LoadAll(context.Background(), "  ")

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "tenants.load_all.missing_owner_id", serviceErr.Code())
	require.Empty(t, harness.remote.recordedCalls())
}

func TestCreateWithOwnerReturnsRemoteIDAndReloads(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())

	id, err := harness.store.Create(context.Background(), NewTenant{
		FirstName:  "Dana",
		LastName:   "Scully",
		RentAmount: decimal.NewFromInt(1400),
	}, testOwnerID)

	require.NoError(t, err)
	require.Equal(t, "remote-1", id)
	require.Equal(t, []string{"create", "fetch:" + testOwnerID}, harness.remote.recordedCalls())
	require.Equal(t, []string{"remote-1"}, ids(harness.store.List()))
	tenant, err := harness.store.GetByID(id)
	require.NoError(t, err)
	require.Equal(t, testOwnerID, tenant.OwnerID)
	require.Equal(t, StatusActive, tenant.Status)
	require.True(t, tenant.Payments.Rent.Total.Equal(decimal.NewFromInt(1400)))
}

func TestCreateFallsBackToLocalWhenRemoteFails(t *testing.T) {
	harness := newHarness(t, &fakeRemote{createErr: errRemoteDown}, nil)

	id, err := harness.store.Create(context.Background(), NewTenant{
		FirstName:  "Fox",
		LastName:   "Mulder",
		RentAmount: decimal.NewFromInt(1200),
	}, testOwnerID)

	require.NoError(t, err)
	require.Equal(t, "local-1", id)
	tenant, err := harness.store.GetByID(id)
	require.NoError(t, err)
	require.Equal(t, "Fox Mulder", tenant.FullName())
	require.Equal(t, DefaultPayments(decimal.NewFromInt(1200)), tenant.Payments)
	require.Equal(t, 1, harness.logs.FilterField(zap.String("reason", "remote_create_failed")).Len())
}

func TestCreateWithoutOwnerSkipsRemote(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, nil)

	id, err := harness.store.Create(context.Background(), NewTenant{FirstName: "Walter", Status: StatusInactive}, "")

	require.NoError(t, err)
	require.Equal(t, "local-1", id)
	require.Empty(t, harness.remote.recordedCalls())
	tenant, err := harness.store.GetByID(id)
	require.NoError(t, err)
	require.Equal(t, StatusInactive, tenant.Status)
}

func TestCreateReportsIDGenerationFailure(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, nil)
	harness.store.idProvider = &fixedIDProvider{err: errors.New("entropy exhausted")}

	_, err := harness.store.Create(context.Background(), NewTenant{FirstName: "X"}, "")

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "tenants.create.id_generation_failed", serviceErr.Code())
	require.Empty(t, harness.store.List())
}

func TestUpdateKeepsLocalChangeWhenRemoteFails(t *testing.T) {
	harness := newHarness(t, &fakeRemote{updateErr: errRemoteDown}, DemoTenants())
	inactive := StatusInactive

	require.NoError(t, harness.store.Update("demo-tenant-1", Patch{Status: &inactive}))

	tenant, err := harness.store.GetByID("demo-tenant-1")
	require.NoError(t, err)
	require.Equal(t, StatusInactive, tenant.Status)

	harness.flush(t)

	require.Equal(t, []string{"update:demo-tenant-1", "update:demo-tenant-1", "update:demo-tenant-1"}, harness.remote.recordedCalls())
	tenant, err = harness.store.GetByID("demo-tenant-1")
	require.NoError(t, err)
	require.Equal(t, StatusInactive, tenant.Status)

	state := harness.store.SyncStateOf("demo-tenant-1")
	require.Zero(t, state.Pending)
	require.True(t, state.Failed)
	require.Equal(t, errRemoteDown.Error(), state.LastError)

	failures := harness.logs.FilterField(zap.String("reason", "remote_sync_failed")).All()
	require.Len(t, failures, 1)
	require.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	require.Equal(t, "tenants.remote_update", failures[0].ContextMap()["operation"])
}

func TestUpdateMirrorsChangedColumns(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())
	unit := "4C"
	rent := decimal.RequireFromString("1725.50")

	require.NoError(t, harness.store.Update("demo-tenant-2", Patch{Unit: &unit, RentAmount: &rent}))
	harness.flush(t)

	harness.remote.mu.Lock()
	columns := harness.remote.updates["demo-tenant-2"]
	harness.remote.mu.Unlock()
	require.Equal(t, map[string]any{"unit": "4C", "rent_amount": rent}, columns)

	state := harness.store.SyncStateOf("demo-tenant-2")
	require.Zero(t, state.Pending)
	require.False(t, state.Failed)
	require.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), state.LastSyncedAt)
}

func TestCreateAndUpdateRejectUnknownStatus(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())

	_, err := harness.store.Create(context.Background(), NewTenant{FirstName: "Gus", Status: "archived"}, testOwnerID)
	require.ErrorIs(t, err, ErrInvalidStatus)

	evicted := Status("evicted")
	err = harness.store.Update("demo-tenant-1", Patch{Status: &evicted})
	require.ErrorIs(t, err, ErrInvalidStatus)
	harness.flush(t)

	require.Empty(t, harness.remote.recordedCalls())
	require.Len(t, harness.store.List(), 3)
	tenant, err := harness.store.GetByID("demo-tenant-1")
	require.NoError(t, err)
	require.Equal(t, StatusActive, tenant.Status)
	require.Equal(t, SyncState{}, harness.store.SyncStateOf("demo-tenant-1"))
}

func TestReloadKeepsChangesStillQueuedForRemote(t *testing.T) {
	remote := &fakeRemote{rows: []Row{
		{ID: "r-1", OwnerID: testOwnerID, FirstName: "Ana", Status: "active"},
		{ID: "r-2", OwnerID: testOwnerID, FirstName: "Ben", Status: "active"},
	}}
	// The worker is never started, so every mirror call stays queued.
	queue := syncqueue.New(syncqueue.Config{Retryable: IsRetryable})
	store, err := NewStore(StoreConfig{
		Remote:     remote,
		Queue:      queue,
		IDProvider: &fixedIDProvider{ids: []string{"local-1"}},
	})
	require.NoError(t, err)
	require.NoError(t, store.LoadAll(context.Background(), testOwnerID))

	inactive := StatusInactive
	require.NoError(t, store.Update("r-1", Patch{Status: &inactive}))
	require.NoError(t, store.Delete("r-2"))

	id, err := store.Create(context.Background(), NewTenant{FirstName: "Cy"}, testOwnerID)
	require.NoError(t, err)

	require.Equal(t, []string{"r-1", id}, ids(store.List()))
	tenant, err := store.GetByID("r-1")
	require.NoError(t, err)
	require.Equal(t, StatusInactive, tenant.Status)
	_, err = store.GetByID("r-2")
	require.ErrorIs(t, err, ErrTenantNotFound)
	require.Equal(t, 2, queue.Len())
}

func TestUpdateWithEmptyPatchSkipsRemote(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())

	require.NoError(t, harness.store.Update("demo-tenant-1", Patch{}))
	harness.flush(t)

	require.Empty(t, harness.remote.recordedCalls())
}

func TestUpdateAndDeleteUnknownIDReturnNotFound(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())
	phone := "555-9999"

	require.ErrorIs(t, harness.store.Update("missing", Patch{Phone: &phone}), ErrTenantNotFound)
	require.ErrorIs(t, harness.store.Delete("missing"), ErrTenantNotFound)
	harness.flush(t)

	require.Empty(t, harness.remote.recordedCalls())
	require.Len(t, harness.store.List(), 3)
}

func TestMirrorCallsReachRemoteInIssueOrder(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())
	email := "maya@example.org"

	require.NoError(t, harness.store.Update("demo-tenant-1", Patch{Email: &email}))
	require.NoError(t, harness.store.Delete("demo-tenant-1"))
	require.NoError(t, harness.store.Delete("demo-tenant-3"))
	harness.flush(t)

	require.Equal(t, []string{"update:demo-tenant-1", "delete:demo-tenant-1", "delete:demo-tenant-3"}, harness.remote.recordedCalls())
	require.Equal(t, []string{"demo-tenant-2"}, ids(harness.store.List()))
	require.Equal(t, SyncState{}, harness.store.SyncStateOf("demo-tenant-1"))
}

func TestRemoteNotFoundIsNotRetried(t *testing.T) {
	harness := newHarness(t, &fakeRemote{deleteErr: ErrRemoteNotFound}, DemoTenants())

	require.NoError(t, harness.store.Delete("demo-tenant-2"))
	harness.flush(t)

	require.Equal(t, []string{"delete:demo-tenant-2"}, harness.remote.recordedCalls())
	state := harness.store.SyncStateOf("demo-tenant-2")
	require.True(t, state.Failed)
	require.Equal(t, 1, harness.logs.FilterField(zap.String("operation", "tenants.remote_delete")).Len())
}

func TestClosedQueueMarksTenantFailed(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())
	harness.queue.Close()
	other := "Other"

	require.NoError(t, harness.store.Update("demo-tenant-1", Patch{LastName: &other}))

	tenant, err := harness.store.GetByID("demo-tenant-1")
	require.NoError(t, err)
	require.Equal(t, "Other", tenant.LastName)
	state := harness.store.SyncStateOf("demo-tenant-1")
	require.Zero(t, state.Pending)
	require.True(t, state.Failed)
	require.Equal(t, 1, harness.logs.FilterField(zap.String("reason", "queue_closed")).Len())
}

func TestListByPropertyAndSearch(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())

	require.Equal(t, []string{"demo-tenant-1", "demo-tenant-2"}, ids(harness.store.ListByProperty("prop-maple")))
	require.Empty(t, harness.store.ListByProperty("prop-none"))
	require.Equal(t, []string{"demo-tenant-3"}, ids(harness.store.Search("harbor")))
	require.Equal(t, []string{"demo-tenant-2"}, ids(harness.store.Search("luis ortega")))
}

func TestSubscribersSeeMutationsAndSyncChanges(t *testing.T) {
	harness := newHarness(t, &fakeRemote{}, DemoTenants())
	var mu sync.Mutex
	var kinds []events.Kind
	unsubscribe := harness.store.Subscribe(func(event events.Event) {
		mu.Lock()
		kinds = append(kinds, event.Kind)
		mu.Unlock()
	})
	defer unsubscribe()
	phone := "555-0000"

	require.NoError(t, harness.store.Update("demo-tenant-1", Patch{Phone: &phone}))
	harness.flush(t)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []events.Kind{events.KindUpdated, events.KindSyncChanged, events.KindSyncChanged}, kinds)
}

func TestPaymentLinePercentage(t *testing.T) {
	testCases := []struct {
		name  string
		line  PaymentLine
		value int
	}{
		{name: "zero total", line: PaymentLine{Paid: decimal.NewFromInt(10), Total: decimal.Zero}, value: 0},
		{name: "paid in full", line: PaymentLine{Paid: decimal.NewFromInt(1850), Total: decimal.NewFromInt(1850)}, value: 100},
		{name: "rounds half up", line: PaymentLine{Paid: decimal.NewFromInt(60), Total: decimal.NewFromInt(90)}, value: 67},
		{name: "nothing paid", line: PaymentLine{Paid: decimal.Zero, Total: decimal.NewFromInt(400)}, value: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.value, testCase.line.Percentage())
		})
	}
}
