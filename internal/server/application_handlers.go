package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/leases"
	"github.com/gin-gonic/gin"
)

const (
	opSubmitApplication = "server.submit_application"
	opSaveDraftSection  = "server.save_draft_section"
	opApplicationAction = "server.application_action"
	opGetApplication    = "server.get_application"
)

type submitApplicationRequest struct {
	PropertyID string                  `json:"property_id"`
	Draft      leases.ApplicationDraft `json:"draft"`
}

type submitDraftRequest struct {
	PropertyID string `json:"property_id"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type approveRequest struct {
	Terms *leases.LeaseTerms `json:"terms"`
}

type signRequest struct {
	Signature string `json:"signature"`
}

func (h *httpHandler) handleQueryApplications(c *gin.Context) {
	applications := h.leases.Query(leases.Filter{
		Status: leases.Status(c.Query("status")),
		Search: c.Query("search"),
	})
	c.JSON(http.StatusOK, gin.H{"applications": applications})
}

func (h *httpHandler) handleMyApplications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"applications": h.leases.TenantApplications(ownerID(c))})
}

func (h *httpHandler) handleSubmitApplication(c *gin.Context) {
	var request submitApplicationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	if err := request.Draft.Validate(); err != nil {
		h.writeError(c, opSubmitApplication, err)
		return
	}
	id := h.leases.Submit(ownerID(c), request.PropertyID, request.Draft)
	c.JSON(http.StatusCreated, createdPayload{ID: id})
}

func (h *httpHandler) handleGetDraft(c *gin.Context) {
	draft, err := h.leases.Draft(ownerID(c))
	if err != nil {
		h.writeError(c, opSaveDraftSection, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *httpHandler) handleDiscardDraft(c *gin.Context) {
	if err := h.leases.DiscardDraft(ownerID(c)); err != nil {
		h.writeError(c, opSaveDraftSection, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSaveDraftSection(c *gin.Context) {
	section, ok := bindDraftSection(c)
	if !ok {
		badRequest(c)
		return
	}
	c.JSON(http.StatusOK, h.leases.SaveDraftSection(ownerID(c), section))
}

func bindDraftSection(c *gin.Context) (leases.DraftSection, bool) {
	var (
		section leases.DraftSection
		err     error
	)
	switch c.Param("section") {
	case "personal":
		var value leases.PersonalInfo
		err = c.ShouldBindJSON(&value)
		section = value
	case "residence":
		var value leases.ResidenceHistory
		err = c.ShouldBindJSON(&value)
		section = value
	case "employment":
		var value leases.Employment
		err = c.ShouldBindJSON(&value)
		section = value
	case "household":
		var value leases.Household
		err = c.ShouldBindJSON(&value)
		section = value
	case "documents":
		var value leases.Documents
		err = c.ShouldBindJSON(&value)
		section = value
	default:
		return nil, false
	}
	return section, err == nil
}

func (h *httpHandler) handleSubmitDraft(c *gin.Context) {
	var request submitDraftRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	draft, err := h.leases.Draft(ownerID(c))
	if err != nil {
		h.writeError(c, opSubmitApplication, err)
		return
	}
	if err := draft.Validate(); err != nil {
		h.writeError(c, opSubmitApplication, err)
		return
	}
	id, err := h.leases.SubmitDraft(ownerID(c), request.PropertyID)
	if err != nil {
		h.writeError(c, opSubmitApplication, err)
		return
	}
	c.JSON(http.StatusCreated, createdPayload{ID: id})
}

func (h *httpHandler) handleGetApplication(c *gin.Context) {
	application, err := h.leases.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, opGetApplication, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleGetDraftLease(c *gin.Context) {
	lease, err := h.leases.DraftLease(c.Param("id"))
	if err != nil {
		h.writeError(c, opGetApplication, err)
		return
	}
	c.JSON(http.StatusOK, lease)
}

func (h *httpHandler) handleStartReview(c *gin.Context) {
	h.respondWithApplication(c, h.leases.StartReview(c.Param("id")))
}

func (h *httpHandler) handleRequestMoreInfo(c *gin.Context) {
	var request noteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	h.respondWithApplication(c, h.leases.RequestMoreInfo(c.Param("id"), request.Note))
}

func (h *httpHandler) handleReject(c *gin.Context) {
	var request reasonRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	h.respondWithApplication(c, h.leases.Reject(c.Param("id"), request.Reason))
}

func (h *httpHandler) handleApprove(c *gin.Context) {
	var request approveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequest(c)
			return
		}
	}
	h.respondWithApplication(c, h.leases.Approve(c.Param("id"), request.Terms))
}

func (h *httpHandler) handleAttachTerms(c *gin.Context) {
	var terms leases.LeaseTerms
	if err := c.ShouldBindJSON(&terms); err != nil {
		badRequest(c)
		return
	}
	h.respondWithApplication(c, h.leases.AttachLeaseTerms(c.Param("id"), terms))
}

func (h *httpHandler) handleSignLease(c *gin.Context) {
	var request signRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c)
		return
	}
	h.respondWithApplication(c, h.leases.SignLease(c.Param("id"), request.Signature))
}

func (h *httpHandler) respondWithApplication(c *gin.Context, actionErr error) {
	if actionErr != nil {
		h.writeError(c, opApplicationAction, actionErr)
		return
	}
	application, err := h.leases.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, opApplicationAction, err)
		return
	}
	c.JSON(http.StatusOK, application)
}
