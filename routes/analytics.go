package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) globalAnalytics(c *gin.Context) {
	summary, err := h.Analytics.GlobalSummary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) formAnalytics(c *gin.Context) {
	summary, err := h.Analytics.FormSummary(c.Request.Context(), c.Param("formId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
