package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"form-analytics-server/models"
)

func (h *handler) listForms(c *gin.Context) {
	forms, err := h.Forms.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, forms)
}

func (h *handler) createForm(c *gin.Context) {
	var input models.FormInput
	if !h.bindJSON(c, &input) {
		return
	}

	form, err := h.Forms.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, form)
}

func (h *handler) getForm(c *gin.Context) {
	form, err := h.Forms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// updateForm applies a partial update; PUT and PATCH behave the same.
func (h *handler) updateForm(c *gin.Context) {
	var patch models.FormPatch
	if !h.bindJSON(c, &patch) {
		return
	}

	form, err := h.Forms.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (h *handler) deleteForm(c *gin.Context) {
	if err := h.Forms.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
