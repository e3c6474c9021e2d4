// internal/handler/haptic_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haptic-service/internal/service"
	"haptic-service/internal/utils"
	"haptic-service/pkg/haptic"
)

// HapticHandler exposes the control loop
type HapticHandler struct {
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
}

// NewHapticHandler creates a new haptic handler
func NewHapticHandler(sessionService *service.SessionService, logger *zap.Logger) *HapticHandler {
	return &HapticHandler{
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "haptic-handler"),
	}
}

// RegisterRoutes registers haptic loop routes
func (h *HapticHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/telemetry", h.GetTelemetry)
	router.GET("/articulations", h.GetArticulations)
	router.POST("/articulations", h.UpdatePosition)
	router.POST("/forces", h.PushForces)
	router.POST("/simulation/:signal", h.Signal)
	router.GET("/device", h.GetDevices)

	loop := router.Group("/loop")
	{
		loop.GET("", h.GetLoop)
		loop.POST("/start", h.StartLoop)
		loop.POST("/stop", h.StopLoop)
	}
}

// ForcesRequest carries the six joint forces computed by the simulation
type ForcesRequest struct {
	Forces *[haptic.NumArticulations]float64 `json:"forces" binding:"required"`
}

// GetTelemetry returns the latest published record
// @Summary Latest telemetry
// @Description Get the record last published by the copy loop with its articulation mapping
// @Tags Haptic
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.Telemetry} "Telemetry retrieved"
// @Failure 503 {object} utils.APIResponse "Devices not opened"
// @Router /telemetry [get]
func (h *HapticHandler) GetTelemetry(c *gin.Context) {
	telemetry, err := h.sessionService.Telemetry()
	if err != nil {
		h.respondError(c, "Telemetry unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Telemetry retrieved", telemetry)
}

// GetArticulations maps the latest record without publishing it
// @Summary Current articulations
// @Tags Haptic
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]number} "Articulations retrieved"
// @Router /articulations [get]
func (h *HapticHandler) GetArticulations(c *gin.Context) {
	telemetry, err := h.sessionService.Telemetry()
	if err != nil {
		h.respondError(c, "Articulations unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Articulations retrieved", telemetry.Articulations)
}

// UpdatePosition publishes the latest articulations to force feedback
// @Summary Publish articulations
// @Description Map the latest record and make it the state seen by force feedback
// @Tags Haptic
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]number} "Position updated"
// @Router /articulations [post]
func (h *HapticHandler) UpdatePosition(c *gin.Context) {
	articulations, err := h.sessionService.UpdatePosition()
	if err != nil {
		h.respondError(c, "Position update failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Position updated", articulations)
}

// PushForces stores the forces computed by the simulation host
// @Summary Push forces
// @Tags Haptic
// @Accept json
// @Produce json
// @Param request body ForcesRequest true "Joint forces"
// @Success 200 {object} utils.APIResponse "Forces accepted"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Router /forces [post]
func (h *HapticHandler) PushForces(c *gin.Context) {
	var req ForcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.sessionService.PushForces(haptic.Forces(*req.Forces)); err != nil {
		h.respondError(c, "Forces rejected", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Forces accepted", nil)
}

// Signal applies a simulation lifecycle signal
// @Summary Simulation signal
// @Tags Haptic
// @Produce json
// @Param signal path string true "Signal" Enums(started, ended, collision)
// @Success 200 {object} utils.APIResponse "Signal applied"
// @Failure 400 {object} utils.APIResponse "Unknown signal"
// @Router /simulation/{signal} [post]
func (h *HapticHandler) Signal(c *gin.Context) {
	signal, err := h.sessionService.Signal(c.Param("signal"))
	if err != nil {
		h.respondError(c, "Signal rejected", err)
		return
	}

	h.logger.Info("Simulation signal applied", zap.Stringer("signal", signal))
	utils.SuccessResponse(c, http.StatusOK, "Signal applied", gin.H{"signal": signal.String()})
}

// GetDevices describes the tool and IBox links
// @Summary Device links
// @Tags Haptic
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]service.DeviceInfo} "Devices retrieved"
// @Router /device [get]
func (h *HapticHandler) GetDevices(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved", h.sessionService.Devices())
}

// GetLoop returns the loop counters and the running session
// @Summary Loop status
// @Tags Loop
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{stats=controller.LoopStats,session=model.HapticSession}} "Loop status"
// @Router /loop [get]
func (h *HapticHandler) GetLoop(c *gin.Context) {
	stats, err := h.sessionService.LoopStats()
	if err != nil {
		h.respondError(c, "Loop unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Loop status", gin.H{
		"stats":   stats,
		"session": h.sessionService.CurrentSession(),
	})
}

// StartLoop starts a new session
// @Summary Start the loop
// @Tags Loop
// @Produce json
// @Success 201 {object} utils.APIResponse{data=model.HapticSession} "Session started"
// @Failure 409 {object} utils.APIResponse "Session already running"
// @Router /loop/start [post]
func (h *HapticHandler) StartLoop(c *gin.Context) {
	session, err := h.sessionService.StartSession(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to start loop", err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Session started", session)
}

// StopLoop stops the running session
// @Summary Stop the loop
// @Tags Loop
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.HapticSession} "Session stopped"
// @Failure 409 {object} utils.APIResponse "No session running"
// @Router /loop/stop [post]
func (h *HapticHandler) StopLoop(c *gin.Context) {
	session, err := h.sessionService.StopSession(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to stop loop", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Session stopped", session)
}

func (h *HapticHandler) respondError(c *gin.Context, message string, err error) {
	status := utils.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	utils.ErrorResponse(c, status, message, err)
}
