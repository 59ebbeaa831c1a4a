package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"form-analytics-server/utils"
)

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	Password string `json:"password" binding:"required"`
}

// issueToken exchanges the admin password for a signed admin token.
func (h *handler) issueToken(c *gin.Context) {
	if !h.auth.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Authentication is disabled",
		})
		return
	}

	var req TokenRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if !utils.CheckPasswordHash(req.Password, h.auth.AdminPasswordHash) {
		h.Log.WithField("ip", c.ClientIP()).Warn("🔒 Admin sign-in failed")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid password",
		})
		return
	}

	token, expiresAt, err := utils.GenerateAdminToken(h.auth.JWTSecret, "admin", time.Duration(h.auth.ExpiryHours)*time.Hour)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC(),
	})
}
