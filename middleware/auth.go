package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"form-analytics-server/utils"
)

const AdminSubjectKey = "admin_subject"

// AdminAuth requires a valid admin JWT, read from "Authorization: Bearer"
// or the token query parameter (browsers cannot set headers on WebSocket
// upgrades). An empty secret disables the check.
func AdminAuth(secret string, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error":   "Token must be in format: Bearer <token>",
				})
				return
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authorization required",
			})
			return
		}

		claims, err := utils.ParseAdminToken(secret, tokenString)
		if err != nil {
			log.WithError(err).WithField("path", c.Request.URL.Path).Warn("🔒 Rejected admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Token is invalid or expired",
			})
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}
