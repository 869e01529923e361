package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/database"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/leases"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/maintenance"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/remote"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/syncqueue"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "app_session"
	testOwnerID       = "owner-42"
)

type testServer struct {
	handler http.Handler
	token   string
	queue   *syncqueue.Queue
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "server.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	queue := syncqueue.New(syncqueue.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		AttemptTimeout: time.Second,
		Retryable:      tenants.IsRetryable,
	})
	queue.Start(ctx)

	tenantStore, err := tenants.NewStore(tenants.StoreConfig{
		Remote:        remote.NewTenantStore(db, zap.NewNop()),
		Queue:         queue,
		IDProvider:    tenants.NewUUIDProvider(),
		RemoteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("failed to construct tenant store: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	token, _, err := issuer.Issue(testOwnerID, "owner@example.com", "Owner")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Sessions:    validator,
		Tenants:     tenantStore,
		Leases:      leases.NewStore(leases.StoreConfig{}),
		Maintenance: maintenance.NewStore(maintenance.StoreConfig{}),
		Realtime:    NewRealtimeDispatcher(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return testServer{handler: handler, token: token, queue: queue}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+s.token)
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.Flush(ctx); err != nil {
		t.Fatalf("sync queue did not drain: %v", err)
	}
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return value
}
