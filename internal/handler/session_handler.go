// internal/handler/session_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"haptic-service/internal/model"
	"haptic-service/internal/repository"
	"haptic-service/internal/service"
	"haptic-service/internal/utils"
)

// SessionHandler serves the recorded haptic sessions
type SessionHandler struct {
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "session-handler"),
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
	}
}

// ListSessions lists recorded sessions
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status" Enums(RUNNING, COMPLETED, FAILED)
// @Param start_date query string false "Sessions started at or after (RFC3339)"
// @Param end_date query string false "Sessions started at or before (RFC3339)"
// @Success 200 {object} utils.APIResponse{data=object{sessions=[]model.HapticSession,total=int,page=int,per_page=int}} "Sessions retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	filter := &repository.SessionFilter{Page: 1, PerPage: 20}

	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if perPage := c.Query("per_page"); perPage != "" {
		if pp, err := strconv.Atoi(perPage); err == nil && pp > 0 {
			filter.PerPage = pp
		}
	}
	if status := c.Query("status"); status != "" {
		s := model.SessionStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	for key, target := range map[string]**time.Time{"start_date": &filter.StartDate, "end_date": &filter.EndDate} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid "+key, err)
			return
		}
		*target = &t
	}

	sessions, total, err := h.sessionService.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sessions retrieved", gin.H{
		"sessions": sessions,
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}

// GetSession returns one session
// @Summary Get session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} utils.APIResponse{data=model.HapticSession} "Session retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid session ID"
// @Failure 404 {object} utils.APIResponse "Session not found"
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid session ID", err)
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Session not found", err)
			return
		}
		h.logger.Error("Failed to get session", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session retrieved", session)
}
