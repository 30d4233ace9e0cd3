package handlers

import (
	"net/http"

	"envmon_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// Request DTO for changing the power mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // eco | balance | safe | always | dev
}

// Request DTO for forcing the sensor on or off.
type switchRequest struct {
	Action string `json:"action" binding:"required"` // on | off
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Power mode. Allowed: eco, balance, safe, always, dev
	Mode string `json:"mode" example:"balance"`
}

// SetSwitchRequest is an exported model for Swagger docs of the setSwitch payload.
type SetSwitchRequest struct {
	// Allowed: on, off
	Action string `json:"action" example:"on"`
}

// @Summary      List panels
// @Description  Views of every panel created in this session, in display order
// @Tags         panels
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "device_id, panels"
// @Router       /api/v1/panels [get]
func (h *Handler) listPanels(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"device_id": h.services.Panels.ActiveDevice(ctx),
		"panels":    h.services.Panels.Views(ctx),
	})
}

// @Summary      Get panel
// @Tags         panels
// @Produce      json
// @Param        kind  path      string  true  "Sensor kind"  Enums(mq2,bmp180,bh1750,ble,oled)
// @Success      200   {object}  models.View
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/panels/{kind} [get]
func (h *Handler) getPanel(c *gin.Context) {
	v, err := h.services.Panels.View(c.Request.Context(), kindFrom(c))
	if err != nil {
		h.respondError(c, "panel_view_failed", err, "kind", string(kindFrom(c)))
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary      Open panel
// @Description  Binds the panel to the active device, starts its countdown and refreshes it. A failed refresh is reflected in the returned view.
// @Tags         panels
// @Produce      json
// @Param        kind  path      string  true  "Sensor kind"
// @Success      200   {object}  map[string]interface{}  "status, view"
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/panels/{kind}/open [post]
func (h *Handler) openPanel(c *gin.Context) {
	kind := kindFrom(c)
	v, err := h.services.Panels.Open(c.Request.Context(), kind)
	if err != nil {
		if v.Identity.Kind == "" {
			h.respondError(c, "panel_open_failed", err, "kind", string(kind))
			return
		}
		h.log.Warnw("panel_open_refresh_failed", "kind", string(kind), "err", err)
	}
	respondWithStatusAndView(c, statusOpened, v)
}

// @Summary      Close panel
// @Tags         panels
// @Produce      json
// @Param        kind  path      string  true  "Sensor kind"
// @Success      200   {object}  map[string]string
// @Router       /api/v1/panels/{kind}/close [post]
func (h *Handler) closePanel(c *gin.Context) {
	h.services.Panels.Close(c.Request.Context(), kindFrom(c))
	c.JSON(http.StatusOK, gin.H{"status": statusClosed})
}

// @Summary      Refresh panel
// @Tags         panels
// @Produce      json
// @Param        kind  path      string  true  "Sensor kind"
// @Success      200   {object}  map[string]interface{}  "status, view"
// @Failure      422   {object}  map[string]interface{}
// @Failure      502   {object}  map[string]interface{}
// @Router       /api/v1/panels/{kind}/refresh [post]
func (h *Handler) refreshPanel(c *gin.Context) {
	v, err := h.services.Panels.Refresh(c.Request.Context(), kindFrom(c))
	if err != nil {
		h.respondPanelError(c, "panel_refresh_failed", err, v)
		return
	}
	respondWithStatusAndView(c, statusRefreshed, v)
}

// @Summary      Set power mode
// @Description  Only MQ2, BMP180 and BH1750 accept modes. Requires the control secret.
// @Tags         panels
// @Accept       json
// @Produce      json
// @Param        kind              path    string          true  "Sensor kind"  Enums(mq2,bmp180,bh1750)
// @Param        X-Control-Secret  header  string          true  "Control secret"
// @Param        body              body    SetModeRequest  true  "Mode payload"
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/v1/panels/{kind}/mode [post]
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	v, err := h.services.Panels.SetMode(c.Request.Context(), kindFrom(c), service.ModeParams{Mode: req.Mode})
	if err != nil {
		h.respondPanelError(c, "panel_set_mode_failed", err, v)
		return
	}
	respondWithStatusAndView(c, statusModeSet, v)
}

// @Summary      Force on/off
// @Description  Requires the control secret.
// @Tags         panels
// @Accept       json
// @Produce      json
// @Param        kind              path    string            true  "Sensor kind"
// @Param        X-Control-Secret  header  string            true  "Control secret"
// @Param        body              body    SetSwitchRequest  true  "Switch payload"
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/v1/panels/{kind}/switch [post]
func (h *Handler) setSwitch(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	v, err := h.services.Panels.SetSwitch(c.Request.Context(), kindFrom(c), service.SwitchParams{Action: req.Action})
	if err != nil {
		h.respondPanelError(c, "panel_set_switch_failed", err, v)
		return
	}
	respondWithStatusAndView(c, statusSwitched, v)
}
