package handlers

import (
	"net/http"

	"price-alert-engine/internal/models"
	"price-alert-engine/internal/services"
	"price-alert-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AlertHandler handles the admin alert CRUD endpoints.
type AlertHandler struct {
	repo services.Repository
}

// NewAlertHandler creates a new AlertHandler instance
func NewAlertHandler(repo services.Repository) *AlertHandler {
	return &AlertHandler{repo: repo}
}

// CreateAlert handles POST /api/alerts requests
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid JSON in create alert request",
			zap.Error(err),
			zap.String("content_type", c.GetHeader("Content-Type")),
		)
		models.HandleError(c, models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		))
		return
	}

	cond := req.ToCondition()
	if err := cond.Validate(); err != nil {
		log.Warn("Invalid alert in create request", zap.Error(err))
		models.HandleError(c, models.NewAppErrorWithDetails(
			models.ErrorCodeInvalidRequest,
			"Invalid alert",
			err.Error(),
		))
		return
	}

	if err := h.repo.Create(c.Request.Context(), cond); err != nil {
		log.Error("Failed to create alert",
			zap.Error(err),
			zap.String("owner_id", cond.OwnerID),
			zap.String("symbol", cond.Symbol),
		)
		models.HandleError(c, models.NewAppErrorWithCause(
			models.ErrorCodeRepositoryFailure,
			"Failed to create alert",
			err,
		))
		return
	}

	log.Info("Alert created",
		zap.String("alert_id", cond.ID),
		zap.String("owner_id", cond.OwnerID),
		zap.String("symbol", cond.Symbol),
	)
	c.JSON(http.StatusCreated, cond)
}

// ListAlerts handles GET /api/alerts/:owner requests
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	ownerID := c.Param("owner")

	conditions, err := h.repo.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		log.Error("Failed to list alerts",
			zap.Error(err),
			zap.String("owner_id", ownerID),
		)
		models.HandleError(c, models.NewAppErrorWithCause(
			models.ErrorCodeRepositoryFailure,
			"Failed to list alerts",
			err,
		))
		return
	}

	if conditions == nil {
		conditions = []models.Condition{}
	}
	c.JSON(http.StatusOK, gin.H{
		"owner_id": ownerID,
		"alerts":   conditions,
	})
}

// DeleteAlert handles DELETE /api/alerts/:id requests. The owner is
// passed as a query parameter and must match the alert's owner.
func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())
	id := c.Param("id")
	ownerID := c.Query("owner")

	if ownerID == "" {
		models.HandleError(c, models.NewAppErrorWithDetails(
			models.ErrorCodeInvalidRequest,
			"Missing owner",
			"The owner query parameter is required",
		))
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), id, ownerID)
	if err != nil {
		log.Error("Failed to delete alert",
			zap.Error(err),
			zap.String("alert_id", id),
		)
		models.HandleError(c, models.NewAppErrorWithCause(
			models.ErrorCodeRepositoryFailure,
			"Failed to delete alert",
			err,
		))
		return
	}
	if !deleted {
		models.HandleError(c, models.NewAppError(
			models.ErrorCodeAlertNotFound,
			"Alert not found",
		))
		return
	}

	log.Info("Alert deleted",
		zap.String("alert_id", id),
		zap.String("owner_id", ownerID),
	)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
