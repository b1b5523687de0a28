package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/proktor-id/proktor-backend/internal/config"
	"github.com/proktor-id/proktor-backend/internal/handler"
	"github.com/proktor-id/proktor-backend/internal/middleware"
	"github.com/proktor-id/proktor-backend/internal/response"
	"github.com/proktor-id/proktor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokenService *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally. Question payloads compress well.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for ticket redemption (30 requests per minute per IP)
	// to slow down ticket code guessing.
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Exam Group (Ticket-Gated, Public Entry) ────────────────────
	examAPI := router.Group("/api/v1/exam")
	{
		examAPI.POST("/sessions", startLimiter.Middleware(), handlers.Session.StartSession)
		examAPI.GET("/tickets/:ticket_code/result", handlers.Session.GetResult)

		// Live snapshot requires the session token issued at start.
		examAPI.GET("/sessions/:session_id",
			middleware.RequireSessionToken(tokenService),
			handlers.Session.GetState,
		)
	}

	// ─── 2. WebSocket Group (Session Token via Query) ──────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exam/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
