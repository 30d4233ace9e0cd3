package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type contextRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      422  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.Devices.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "devices_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Get active device
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/context [get]
func (h *Handler) getContext(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"device_id": h.services.Panels.ActiveDevice(c.Request.Context())})
}

// @Summary      Select active device
// @Description  Open panels are rebound and refreshed immediately; hidden panels follow on their next open.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      contextRequest  true  "Device payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/context [put]
func (h *Handler) selectDevice(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id, err := h.services.Panels.SelectDevice(c.Request.Context(), req.DeviceID)
	if err != nil {
		h.respondError(c, "context_select_failed", err, "device_id", req.DeviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "device_id": id})
}
