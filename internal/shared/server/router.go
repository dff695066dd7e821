package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-feedback/internal/resumes"
	"resume-feedback/internal/services/health"
	"resume-feedback/internal/shared/config"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/server/middleware"
	"resume-feedback/internal/shared/server/respond"
)

const apiPrefix = "/api/v1"

// RouterDeps carries the handlers and services the router mounts.
type RouterDeps struct {
	Config        config.Config
	Verifier      middleware.TokenVerifier
	ResumeHandler *resumes.Handler
	Health        *health.Service
	RateLimiter   *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group(apiPrefix)
	api.GET("/metrics", metrics.Handler())
	api.GET("/health", func(c *gin.Context) {
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	authed := api.Group("")
	authed.Use(middleware.Auth(middleware.AuthOptions{
		Verifier:   deps.Verifier,
		AllowGuest: deps.Config.AllowGuest,
	}))
	registerMeRoutes(authed)

	if deps.ResumeHandler != nil {
		rules := map[string]middleware.RateLimitRule{}
		if deps.Config.UploadRatePerMinute > 0 {
			rules["UPLOAD"] = middleware.PerMinute(deps.Config.UploadRatePerMinute, max(deps.Config.UploadBurst, 1))
		}
		upload := middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: "UPLOAD",
			Limiter:      deps.RateLimiter,
		})
		deps.ResumeHandler.RegisterRoutes(authed, upload)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
