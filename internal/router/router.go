package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/botops-api/internal/handler/campaign"
	"github.com/jwalitptl/botops-api/internal/handler/health"
	"github.com/jwalitptl/botops-api/internal/handler/prometheus"
	"github.com/jwalitptl/botops-api/internal/handler/scheduledmessage"
	"github.com/jwalitptl/botops-api/internal/middleware"
)

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	AllowedOrigins   []string
}

type Router struct {
	engine *gin.Engine
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	messageH *scheduledmessage.Handler,
	campaignH *campaign.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.CORS(middleware.CORSConfig{AllowOrigins: config.AllowedOrigins}))

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	healthH.RegisterRoutes(engine.Group(""))
	engine.GET("/metrics", metricsH.Handler())

	api := engine.Group("/api/v1")
	api.Use(auth.Authenticate())
	messageH.RegisterRoutes(api)
	campaignH.RegisterRoutes(api)

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
