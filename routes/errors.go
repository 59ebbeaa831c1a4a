package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"form-analytics-server/database"
	"form-analytics-server/services"
)

// respondError maps the error taxonomy onto status codes: NotFound 404,
// ValidationFailure 400, anything else 500.
func (h *handler) respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, database.ErrFormNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Form not found"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"errors":  verr.Fields,
		})
	default:
		h.Log.WithError(err).WithField("path", c.Request.URL.Path).Error("❌ Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

func (h *handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, services.BindingError(err))
		return false
	}
	return true
}
