package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"github.com/gin-gonic/gin"
)

const (
	opListTenants  = "server.list_tenants"
	opCreateTenant = "server.create_tenant"
	opLoadTenants  = "server.load_tenants"
	opGetTenant    = "server.get_tenant"
	opUpdateTenant = "server.update_tenant"
	opDeleteTenant = "server.delete_tenant"
)

type tenantPayload struct {
	tenants.Tenant
	FullName    string            `json:"full_name"`
	Percentages tenantPercentages `json:"payment_percentages"`
	Sync        tenants.SyncState `json:"sync"`
}

type tenantPercentages struct {
	Rent        int `json:"rent"`
	Maintenance int `json:"maintenance"`
	Utility     int `json:"utility"`
	Other       int `json:"other"`
}

type createdPayload struct {
	ID string `json:"id"`
}

func (h *httpHandler) tenantPayload(tenant tenants.Tenant) tenantPayload {
	return tenantPayload{
		Tenant:   tenant,
		FullName: tenant.FullName(),
		Percentages: tenantPercentages{
			Rent:        tenant.Payments.Rent.Percentage(),
			Maintenance: tenant.Payments.Maintenance.Percentage(),
			Utility:     tenant.Payments.Utility.Percentage(),
			Other:       tenant.Payments.Other.Percentage(),
		},
		Sync: h.tenants.SyncStateOf(tenant.ID),
	}
}

func (h *httpHandler) tenantPayloads(list []tenants.Tenant) []tenantPayload {
	payloads := make([]tenantPayload, 0, len(list))
	for _, tenant := range list {
		payloads = append(payloads, h.tenantPayload(tenant))
	}
	return payloads
}

func (h *httpHandler) handleListTenants(c *gin.Context) {
	var list []tenants.Tenant
	switch {
	case c.Query("property_id") != "":
		list = h.tenants.ListByProperty(c.Query("property_id"))
	case c.Query("search") != "":
		list = h.tenants.Search(c.Query("search"))
	default:
		list = h.tenants.List()
	}
	c.JSON(http.StatusOK, gin.H{"tenants": h.tenantPayloads(list), "status": h.tenants.Status()})
}

func (h *httpHandler) handleCreateTenant(c *gin.Context) {
	var request tenants.NewTenant
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	id, err := h.tenants.Create(c.Request.Context(), request, ownerID(c))
	if err != nil {
		h.writeError(c, opCreateTenant, err)
		return
	}
	c.JSON(http.StatusCreated, createdPayload{ID: id})
}

func (h *httpHandler) handleLoadTenants(c *gin.Context) {
	if err := h.tenants.LoadAll(c.Request.Context(), ownerID(c)); err != nil {
		h.writeError(c, opLoadTenants, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": h.tenantPayloads(h.tenants.List()), "status": h.tenants.Status()})
}

func (h *httpHandler) handleTenantLoadStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tenants.Status())
}

func (h *httpHandler) handleGetTenant(c *gin.Context) {
	tenant, err := h.tenants.GetByID(c.Param("id"))
	if err != nil {
		h.writeError(c, opGetTenant, err)
		return
	}
	c.JSON(http.StatusOK, h.tenantPayload(tenant))
}

func (h *httpHandler) handleUpdateTenant(c *gin.Context) {
	var patch tenants.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c)
		return
	}
	id := c.Param("id")
	if err := h.tenants.Update(id, patch); err != nil {
		h.writeError(c, opUpdateTenant, err)
		return
	}
	tenant, err := h.tenants.GetByID(id)
	if err != nil {
		h.writeError(c, opUpdateTenant, err)
		return
	}
	c.JSON(http.StatusOK, h.tenantPayload(tenant))
}

func (h *httpHandler) handleDeleteTenant(c *gin.Context) {
	if err := h.tenants.Delete(c.Param("id")); err != nil {
		h.writeError(c, opDeleteTenant, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleTenantSyncState(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.tenants.GetByID(id); err != nil {
		h.writeError(c, opGetTenant, err)
		return
	}
	c.JSON(http.StatusOK, h.tenants.SyncStateOf(id))
}
