package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/leases"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/maintenance"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ownerIDContextKey    = "rentdesk_owner_id"
	accessTokenQueryName = "access_token"
	heartbeatInterval    = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingTenantStore      = errors.New("tenant store dependency required")
	errMissingLeaseStore       = errors.New("lease store dependency required")
	errMissingMaintenanceStore = errors.New("maintenance store dependency required")
)

// SessionValidator resolves the signed-in owner from a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

type Dependencies struct {
	Sessions    SessionValidator
	Tenants     *tenants.Store
	Leases      *leases.Store
	Maintenance *maintenance.Store
	Realtime    *RealtimeDispatcher
	Logger      *zap.Logger
}

// NewHTTPHandler builds the JSON API over the stores. When a dispatcher is supplied it is
// subscribed to every store and served on /events; stores sharing one hub would be forwarded twice.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Tenants == nil {
		return nil, errMissingTenantStore
	}
	if deps.Leases == nil {
		return nil, errMissingLeaseStore
	}
	if deps.Maintenance == nil {
		return nil, errMissingMaintenanceStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:    deps.Sessions,
		tenants:     deps.Tenants,
		leases:      deps.Leases,
		maintenance: deps.Maintenance,
		realtime:    deps.Realtime,
		logger:      logger,
	}
	if handler.realtime != nil {
		deps.Tenants.Subscribe(handler.realtime.Forward)
		deps.Leases.Subscribe(handler.realtime.Forward)
		deps.Maintenance.Subscribe(handler.realtime.Forward)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	tenantRoutes := protected.Group("/tenants")
	tenantRoutes.GET("", handler.handleListTenants)
	tenantRoutes.POST("", handler.handleCreateTenant)
	tenantRoutes.POST("/load", handler.handleLoadTenants)
	tenantRoutes.GET("/status", handler.handleTenantLoadStatus)
	tenantRoutes.GET("/:id", handler.handleGetTenant)
	tenantRoutes.PATCH("/:id", handler.handleUpdateTenant)
	tenantRoutes.DELETE("/:id", handler.handleDeleteTenant)
	tenantRoutes.GET("/:id/sync", handler.handleTenantSyncState)

	applicationRoutes := protected.Group("/applications")
	applicationRoutes.GET("", handler.handleQueryApplications)
	applicationRoutes.POST("", handler.handleSubmitApplication)
	applicationRoutes.GET("/mine", handler.handleMyApplications)
	applicationRoutes.GET("/draft", handler.handleGetDraft)
	applicationRoutes.DELETE("/draft", handler.handleDiscardDraft)
	applicationRoutes.PUT("/draft/:section", handler.handleSaveDraftSection)
	applicationRoutes.POST("/draft/submit", handler.handleSubmitDraft)
	applicationRoutes.GET("/:id", handler.handleGetApplication)
	applicationRoutes.GET("/:id/lease", handler.handleGetDraftLease)
	applicationRoutes.POST("/:id/review", handler.handleStartReview)
	applicationRoutes.POST("/:id/request-info", handler.handleRequestMoreInfo)
	applicationRoutes.POST("/:id/reject", handler.handleReject)
	applicationRoutes.POST("/:id/approve", handler.handleApprove)
	applicationRoutes.POST("/:id/terms", handler.handleAttachTerms)
	applicationRoutes.POST("/:id/sign", handler.handleSignLease)

	maintenanceRoutes := protected.Group("/maintenance")
	maintenanceRoutes.GET("", handler.handleQueryMaintenance)
	maintenanceRoutes.POST("", handler.handleCreateMaintenance)
	maintenanceRoutes.GET("/:id", handler.handleGetMaintenance)
	maintenanceRoutes.POST("/:id/status", handler.handleMaintenanceStatus)
	maintenanceRoutes.POST("/:id/vendor", handler.handleAssignVendor)
	maintenanceRoutes.POST("/:id/notes", handler.handleResolutionNotes)

	if handler.realtime != nil {
		router.GET("/events", handler.authorizeStream, handler.handleEventStream)
	}

	return router, nil
}

type httpHandler struct {
	sessions    SessionValidator
	tenants     *tenants.Store
	leases      *leases.Store
	maintenance *maintenance.Store
	realtime    *RealtimeDispatcher
	logger      *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	h.authorize(c, func() (auth.SessionClaims, error) {
		return h.sessions.ValidateRequest(c.Request)
	})
}

// authorizeStream also accepts access_token in the query string, since EventSource clients
// cannot set headers. A header or cookie session is used when the parameter is absent.
func (h *httpHandler) authorizeStream(c *gin.Context) {
	token := strings.TrimSpace(c.Query(accessTokenQueryName))
	if token == "" {
		h.authorizeRequest(c)
		return
	}
	h.authorize(c, func() (auth.SessionClaims, error) {
		return h.sessions.ValidateToken(token)
	})
}

func (h *httpHandler) authorize(c *gin.Context, validate func() (auth.SessionClaims, error)) {
	claims, err := validate()
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(ownerIDContextKey, claims.OwnerID())
	c.Next()
}

func (h *httpHandler) handleEventStream(c *gin.Context) {
	stream, cleanup := h.realtime.Subscribe(c.Request.Context())
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message := <-stream:
			c.SSEvent(message.EventType, message)
			c.Writer.Flush()
		case now := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend, "timestamp": now.UTC()})
			c.Writer.Flush()
		}
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerIDContextKey)
}
