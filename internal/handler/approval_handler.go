package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/si-yapemri/school-admin-api/internal/dto"
	"github.com/si-yapemri/school-admin-api/internal/models"
	appErrors "github.com/si-yapemri/school-admin-api/pkg/errors"
	"github.com/si-yapemri/school-admin-api/pkg/response"
)

type approvalService interface {
	List(ctx context.Context, query dto.ApprovalQuery) ([]models.ApprovalRequest, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ApprovalDetail, error)
	Decide(ctx context.Context, id string, outcome models.ApprovalStatus, reviewerID string) (*models.ApprovalRequest, error)
}

// ApprovalHandler exposes REST endpoints for the approval workflow.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// List godoc
// @Summary List approval requests
// @Tags Approvals
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param mutationType query string false "Mutation type (add, edit, delete)"
// @Param seekedBy query string false "Requester account ID"
// @Param targetKind query string false "Target kind (account, staff, student, parent)"
// @Param targetId query string false "Target entity ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	query := dto.ApprovalQuery{
		MutationType: models.MutationType(strings.ToLower(c.Query("mutationType"))),
		SeekedBy:     strings.TrimSpace(c.Query("seekedBy")),
		TargetKind:   models.TargetKind(strings.ToLower(c.Query("targetKind"))),
		TargetID:     strings.TrimSpace(c.Query("targetId")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ApprovalStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ApprovalStatus(part))
		}
		query.Status = statuses
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.Query("limit")); err == nil {
		query.PageSize = size
	}

	approvals, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approvals, pagination)
}

// Get godoc
// @Summary Get approval detail
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a request
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, models.ApprovalStatusApproved)
}

// Reject godoc
// @Summary Reject a request
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, models.ApprovalStatusRejected)
}

func (h *ApprovalHandler) decide(c *gin.Context, outcome models.ApprovalStatus) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	approval, err := h.service.Decide(c.Request.Context(), c.Param("id"), outcome, claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}
