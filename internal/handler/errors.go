// internal/handler/errors.go
package handler

import (
	"net/http"

	"haptic-service/internal/protocol"
	"haptic-service/internal/repository"
	"haptic-service/internal/service"
	"haptic-service/internal/utils"
	"haptic-service/pkg/haptic"
)

func init() {
	utils.RegisterError(service.ErrNotOpened, http.StatusServiceUnavailable, "DEVICES_NOT_OPENED")
	utils.RegisterError(protocol.ErrNotConnected, http.StatusServiceUnavailable, "DEVICE_NOT_CONNECTED")
	utils.RegisterError(service.ErrSessionActive, http.StatusConflict, "SESSION_ACTIVE")
	utils.RegisterError(service.ErrNoActiveSession, http.StatusConflict, "NO_ACTIVE_SESSION")
	utils.RegisterError(haptic.ErrUnknownSignal, http.StatusBadRequest, "UNKNOWN_SIGNAL")
	utils.RegisterError(repository.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND")
}
