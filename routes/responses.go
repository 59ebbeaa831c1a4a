package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"form-analytics-server/models"
	"form-analytics-server/services"
)

func (h *handler) submitResponse(c *gin.Context) {
	var input models.SubmissionInput
	if !h.bindJSON(c, &input) {
		return
	}

	response, err := h.Submissions.Submit(c.Request.Context(), c.Param("id"), input.Responses, clientAddress(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      response.ID,
		"message": "Response submitted successfully",
	})
}

func (h *handler) listResponses(c *gin.Context) {
	responses, err := h.Forms.ListResponses(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, responses)
}

func (h *handler) exportResponses(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", services.ExportFormatCSV))
	if format != services.ExportFormatCSV {
		h.respondError(c, services.UnsupportedFormat(format))
		return
	}

	// Resolve the form before streaming so a 404 is still a JSON body.
	formID := c.Param("id")
	if _, err := h.Forms.Get(c.Request.Context(), formID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="form-%s-responses.csv"`, formID))
	c.Status(http.StatusOK)
	if _, err := h.Export.WriteCSV(c.Request.Context(), c.Writer, formID); err != nil {
		h.Log.WithError(err).WithField("form_id", formID).Error("❌ CSV export aborted")
	}
}

// clientAddress prefers the first X-Forwarded-For hop, then the socket peer.
func clientAddress(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	return c.RemoteIP()
}
