package handlers

import (
	"net/http"

	"envmon_dashboard/internal/accessgate"
	"envmon_dashboard/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	controlSecretHeader = "X-Control-Secret"
	kindKey             = "kind"
)

// kindMiddleware resolves the :kind path parameter ("mq2", "ble", "DISPLAY", ...).
func (h *Handler) kindMiddleware(c *gin.Context) {
	kind, err := models.ParseSensorKind(c.Param("kind"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.Set(kindKey, kind)
	c.Next()
}

// kindFrom returns the kind resolved by kindMiddleware.
func kindFrom(c *gin.Context) models.SensorKind {
	v, _ := c.Get(kindKey)
	kind, _ := v.(models.SensorKind)
	return kind
}

// controlSecretMiddleware answers the access gate from the X-Control-Secret
// header. A missing header cancels the prompt, so the action is denied.
func (h *Handler) controlSecretMiddleware(c *gin.Context) {
	prompter := accessgate.OneShot(c.GetHeader(controlSecretHeader))
	c.Request = c.Request.WithContext(accessgate.WithPrompter(c.Request.Context(), prompter))
	c.Next()
}
