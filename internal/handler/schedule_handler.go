package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/yourorg/maintenance-sync/internal/model"
	"github.com/yourorg/maintenance-sync/internal/schedule"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScheduleHandler handles maintenance schedule HTTP requests
type ScheduleHandler struct {
	scheduleService *schedule.Service
	logger          *zap.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleService *schedule.Service, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
		logger:          logger,
	}
}

// GetVehicleSchedule handles retrieving one vehicle's schedule summary
// GET /api/v1/vehicles/{id}/schedule
func (h *ScheduleHandler) GetVehicleSchedule(c *gin.Context) {
	vehicleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}

	summary, err := h.scheduleService.Evaluate(c.Request.Context(), vehicleID)
	if err != nil {
		h.logger.Error("Failed to evaluate vehicle schedule",
			zap.Int("vehicle_id", vehicleID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to evaluate vehicle schedule"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// EvaluateFleet handles evaluating several vehicles at once
// POST /api/v1/fleet/schedule
func (h *ScheduleHandler) EvaluateFleet(c *gin.Context) {
	var req struct {
		VehicleIDs []int `json:"vehicle_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := h.scheduleService.EvaluateFleet(c.Request.Context(), req.VehicleIDs)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// RecordCompleted handles logging a completed maintenance service
// POST /api/v1/vehicles/{id}/maintenance
func (h *ScheduleHandler) RecordCompleted(c *gin.Context) {
	vehicleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}

	var input model.RecordCompletedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.scheduleService.RecordCompleted(c.Request.Context(), vehicleID, &input)
	if err != nil {
		if errors.Is(err, schedule.ErrConfigRequired) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to record completed maintenance",
			zap.Int("vehicle_id", vehicleID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to record maintenance"})
		return
	}

	c.JSON(http.StatusCreated, record)
}

// Reconfigure handles the explicit re-configuration of a maintenance type
// PUT /api/v1/vehicles/{id}/maintenance/{typeId}/config
func (h *ScheduleHandler) Reconfigure(c *gin.Context) {
	vehicleID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle ID"})
		return
	}
	typeID, err := strconv.Atoi(c.Param("typeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid maintenance type ID"})
		return
	}

	var input model.ConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.scheduleService.Reconfigure(c.Request.Context(), vehicleID, typeID, &input)
	if err != nil {
		h.logger.Error("Failed to reconfigure maintenance type",
			zap.Int("vehicle_id", vehicleID),
			zap.Int("type_id", typeID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update configuration"})
		return
	}

	c.JSON(http.StatusOK, cfg)
}
