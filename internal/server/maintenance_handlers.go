package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/maintenance"
	"github.com/gin-gonic/gin"
)

const (
	opMaintenanceAction = "server.maintenance_action"
	opGetMaintenance    = "server.get_maintenance"
)

type statusRequest struct {
	Status maintenance.Status `json:"status"`
	Actor  string             `json:"actor"`
}

type vendorRequest struct {
	Vendor string `json:"vendor"`
	Actor  string `json:"actor"`
}

type notesRequest struct {
	Notes string `json:"notes"`
	Actor string `json:"actor"`
}

func (h *httpHandler) handleQueryMaintenance(c *gin.Context) {
	requests := h.maintenance.Query(maintenance.Filter{
		Status: maintenance.Status(c.Query("status")),
		Search: c.Query("search"),
	})
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *httpHandler) handleCreateMaintenance(c *gin.Context) {
	var submission maintenance.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		badRequest(c)
		return
	}
	c.JSON(http.StatusCreated, createdPayload{ID: h.maintenance.Create(submission)})
}

func (h *httpHandler) handleGetMaintenance(c *gin.Context) {
	request, err := h.maintenance.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, opGetMaintenance, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *httpHandler) handleMaintenanceStatus(c *gin.Context) {
	var request statusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	h.respondWithRequest(c, h.maintenance.Transition(c.Param("id"), request.Status, request.Actor))
}

func (h *httpHandler) handleAssignVendor(c *gin.Context) {
	var request vendorRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	h.respondWithRequest(c, h.maintenance.AssignVendor(c.Param("id"), request.Vendor, request.Actor))
}

func (h *httpHandler) handleResolutionNotes(c *gin.Context) {
	var request notesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	h.respondWithRequest(c, h.maintenance.SetResolutionNotes(c.Param("id"), request.Notes, request.Actor))
}

func (h *httpHandler) respondWithRequest(c *gin.Context, actionErr error) {
	if actionErr != nil {
		h.writeError(c, opMaintenanceAction, actionErr)
		return
	}
	request, err := h.maintenance.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, opMaintenanceAction, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
