// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haptic-service/internal/discovery"
	"haptic-service/internal/utils"
)

// DiscoveryHandler handles port discovery requests
type DiscoveryHandler struct {
	scanners *discovery.ScannerManager
	logger   *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanners *discovery.ScannerManager, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanners: scanners,
		logger:   utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discoveryRoutes := router.Group("/discovery")
	{
		discoveryRoutes.GET("/ports", h.ScanPorts)
		discoveryRoutes.GET("/scanners", h.GetScanners)
	}
}

// ScanPorts lists candidate device ports
// @Summary Scan ports
// @Description List serial and emulated ports, optionally probing the firmware identity
// @Tags Discovery
// @Produce json
// @Param type query string false "Scanner type" Enums(all, serial, emulated) default(all)
// @Success 200 {object} utils.APIResponse{data=object{devices_found=int,devices=[]discovery.DiscoveredDevice}} "Port scan completed"
// @Failure 400 {object} utils.APIResponse "Unknown scanner"
// @Router /discovery/ports [get]
func (h *DiscoveryHandler) ScanPorts(c *gin.Context) {
	scanType := c.DefaultQuery("type", "all")

	var (
		devices []*discovery.DiscoveredDevice
		err     error
	)
	if scanType == "all" {
		devices, err = h.scanners.ScanAll(c.Request.Context())
	} else {
		devices, err = h.scanners.ScanByType(c.Request.Context(), scanType)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Scan failed", err)
			return
		}
	}
	if err != nil {
		h.logger.Error("Failed to scan ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Scan failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"devices_found": len(devices),
		"devices":       devices,
	})
}

// GetScanners lists the available scanner types
// @Summary Available scanners
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]string} "Scanners retrieved"
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", h.scanners.GetAvailableScanners())
}
