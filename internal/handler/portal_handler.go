// internal/handler/portal_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"haptic-service/internal/portal"
	"haptic-service/internal/utils"
)

const win32DevicePrefix = `//./`

var errNoProcedure = errors.New("no portal configuration loaded")

// PortalHandler serves the procedure loaded at start-up
type PortalHandler struct {
	procedure *portal.Procedure
}

// NewPortalHandler creates a portal handler. procedure may be nil.
func NewPortalHandler(procedure *portal.Procedure) *PortalHandler {
	return &PortalHandler{procedure: procedure}
}

// RegisterRoutes registers portal routes
func (h *PortalHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/portals", h.GetProcedure)
	router.GET("/portals/:port", h.GetPortal)
}

// GetProcedure returns the procedure and its portals
// @Summary Portal configuration
// @Tags Portals
// @Produce json
// @Success 200 {object} utils.APIResponse{data=portal.Procedure} "Procedure retrieved"
// @Failure 404 {object} utils.APIResponse "No configuration loaded"
// @Router /portals [get]
func (h *PortalHandler) GetProcedure(c *gin.Context) {
	if h.procedure == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Portal configuration not loaded", errNoProcedure)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Procedure retrieved", h.procedure)
}

// GetPortal returns the portal bound to a COM port
// @Summary Portal by COM port
// @Tags Portals
// @Produce json
// @Param port path string true "COM port, with or without the //./ prefix"
// @Success 200 {object} utils.APIResponse{data=portal.Portal} "Portal retrieved"
// @Failure 404 {object} utils.APIResponse "Portal not found"
// @Router /portals/{port} [get]
func (h *PortalHandler) GetPortal(c *gin.Context) {
	if h.procedure == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Portal configuration not loaded", errNoProcedure)
		return
	}

	port := c.Param("port")
	p, ok := h.procedure.FindByComPort(port)
	if !ok {
		// Device paths such as //./COM3 cannot travel as a path segment.
		p, ok = h.procedure.FindByComPort(win32DevicePrefix + port)
	}
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Portal not found", nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Portal retrieved", p)
}
