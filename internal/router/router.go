package router

import (
	"time"

	"gymadmin/internal/config"
	"gymadmin/internal/handler"
	"gymadmin/internal/middleware"
	"gymadmin/internal/repository"
	"gymadmin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Wiring ───────────────────────────────────────────────────────────────
	cashRepo := repository.NewCashRepository(db)
	cashSvc := service.NewCashService(cashRepo, rdb)
	cashH := handler.NewCashHandler(cashSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Protected routes — tokens issued by the main platform
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		cash := v1.Group("/cash")
		{
			cash.POST("/open", middleware.RequireRole("operator", "admin"), cashH.Open)
			cash.GET("/active", middleware.RequireRole("operator", "admin"), cashH.GetActive)
			cash.POST("/movements", middleware.RequireRole("operator", "admin"), cashH.AppendMovement)
			cash.GET("/:id/movements", middleware.RequireRole("operator", "admin"), cashH.ListMovements)
			cash.GET("/:id/breakdown", middleware.RequireRole("operator", "admin"), cashH.GetBreakdown)
			cash.GET("/:id", middleware.RequireRole("operator", "admin"), cashH.GetReport)
			cash.POST("/close", middleware.RequireRole("operator", "admin"), cashH.Close)
			cash.GET("/history", middleware.RequireRole("admin"), cashH.History)
		}
	}

	return r
}
