package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"form-analytics-server/config"
	"form-analytics-server/database"
	"form-analytics-server/middleware"
	"form-analytics-server/services"
	"form-analytics-server/websocket"
)

// Dependencies are the constructed components the HTTP layer serves.
type Dependencies struct {
	Store       database.Store
	Forms       *services.FormService
	Submissions *services.SubmissionService
	Analytics   *services.AnalyticsService
	Export      *services.ExportService
	Hub         *websocket.Hub
	Limiter     *middleware.RateLimiter
	Log         *logrus.Entry
}

type handler struct {
	Dependencies
	auth     config.AuthConfig
	upgrader *gws.Upgrader
}

// NewRouter builds the gin engine with the REST surface under the API prefix,
// the notification channel at /ws/analytics/ and the health/metrics probes.
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		services.RegisterValidations(v)
	}

	h := &handler{
		Dependencies: deps,
		auth:         cfg.Auth,
		upgrader:     websocket.NewUpgrader(cfg.Server.AllowedOrigins),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Log.WithField("component", "http")))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.InputValidation())

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := middleware.AdminAuth(cfg.Auth.JWTSecret, deps.Log)
	limited := middleware.RateLimit(deps.Limiter, deps.Log)

	router.GET("/ws/analytics/", admin, h.analyticsSocket)

	api := router.Group(cfg.Server.APIPrefix)
	{
		api.POST("/auth/token", limited, h.issueToken)

		forms := api.Group("/forms")
		{
			forms.GET("/", h.listForms)
			forms.POST("/", admin, h.createForm)
			forms.GET("/:id/", h.getForm)
			forms.PUT("/:id/", admin, h.updateForm)
			forms.PATCH("/:id/", admin, h.updateForm)
			forms.DELETE("/:id/", admin, h.deleteForm)

			forms.POST("/:id/responses/", limited, h.submitResponse)
			forms.GET("/:id/responses/", admin, h.listResponses)
			forms.GET("/:id/export/", admin, h.exportResponses)
		}

		analytics := api.Group("/analytics", admin)
		{
			analytics.GET("/", h.globalAnalytics)
			analytics.GET("/:formId/", h.formAnalytics)
		}
	}

	return router
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.Store.Ping(ctx); err != nil {
		h.Log.WithError(err).Warn("❌ Health check: storage unreachable")
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  status,
		"backend": h.Store.Backend(),
		"time":    time.Now().UTC(),
	})
}

func (h *handler) analyticsSocket(c *gin.Context) {
	websocket.ServeWebSocket(h.Hub, h.upgrader, c.Writer, c.Request)
}
