package handlers

import (
	"errors"
	"net/http"

	"envmon_dashboard/internal/controller"
	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/registry"
	"envmon_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusOpened    = "opened"
	statusClosed    = "closed"
	statusRefreshed = "refreshed"
	statusModeSet   = "mode_set"
	statusSwitched  = "switched"

	errNotApproved     = "action not approved"
	errUnreachable     = "device server unreachable"
	errRejected        = "device server rejected the request"
	errInternal        = "internal error"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		h.logStatus(httpCode, logKey, append([]interface{}{"err", err}, kv...)...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// logStatus logs server-side failures as errors and client-side ones as warnings.
func (h *Handler) logStatus(httpCode int, logKey string, kv ...interface{}) {
	kv = append(kv, "status", httpCode)
	if httpCode >= http.StatusInternalServerError {
		h.log.Errorw(logKey, kv...)
		return
	}
	h.log.Warnw(logKey, kv...)
}

// classify maps a service error to an HTTP status and the text shown to the client.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, controller.ErrAuthDenied):
		return http.StatusForbidden, errNotApproved
	case errors.Is(err, controller.ErrUnknownKind):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, controller.ErrInvalidMode),
		errors.Is(err, controller.ErrInvalidAction),
		errors.Is(err, controller.ErrModeUnsupported),
		errors.Is(err, gateway.ErrModeUnsupported),
		errors.Is(err, registry.ErrEmptyDeviceID),
		service.IsValidationError(err):
		return http.StatusBadRequest, err.Error()
	case gateway.IsNetwork(err):
		return http.StatusBadGateway, errUnreachable
	case gateway.IsProtocol(err):
		if msg := gateway.ServerMessage(err); msg != "" {
			return http.StatusUnprocessableEntity, msg
		}
		return http.StatusUnprocessableEntity, errRejected
	default:
		return http.StatusInternalServerError, errInternal
	}
}

// respondError classifies err and writes it.
func (h *Handler) respondError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code, msg := classify(err)
	h.logAndJSONError(c, code, msg, logKey, err, kv...)
}

// respondPanelError is respondError for panel actions: the panel's view is
// attached so the client can render feedback and the reset state.
func (h *Handler) respondPanelError(c *gin.Context, logKey string, err error, v models.View) {
	code, msg := classify(err)
	h.logStatus(code, logKey, "err", err, "kind", string(v.Identity.Kind), "device_id", v.Identity.DeviceID)
	body := gin.H{"error": msg}
	if v.Identity.Kind != "" {
		body["view"] = v
	}
	c.JSON(code, body)
}

// respondWithStatusAndView writes a successful panel action.
func respondWithStatusAndView(c *gin.Context, status string, v models.View) {
	c.JSON(http.StatusOK, gin.H{"status": status, "view": v})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
