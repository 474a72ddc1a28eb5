package main

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jtuchinsky/MCP-Auth/internal/auth"
	"github.com/jtuchinsky/MCP-Auth/internal/guard"
	"github.com/jtuchinsky/MCP-Auth/internal/handler"
	"github.com/jtuchinsky/MCP-Auth/internal/middleware"
	"github.com/jtuchinsky/MCP-Auth/internal/service"
	"github.com/jtuchinsky/MCP-Auth/internal/store"
	"github.com/jtuchinsky/MCP-Auth/pkg/config"
	"github.com/jtuchinsky/MCP-Auth/pkg/database"
	"github.com/jtuchinsky/MCP-Auth/pkg/logger"
	"github.com/jtuchinsky/MCP-Auth/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables.
	// Undersized signing keys are rejected here, before anything runs.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting MCP auth service...", cfg.LogConfig()...)

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	tokens, err := auth.NewTokenManager(cfg.JWT.SigningKey, cfg.JWT.AccessTokenTTL)
	if err != nil {
		log.Fatal("Failed to initialize token manager", zap.Error(err))
	}

	hasher := auth.NewHasher(cfg.Password.BcryptCost)
	totp := auth.NewTOTP(cfg.TOTP.Issuer)

	tenants := service.NewTenantService(db, hasher, log)
	sessions := service.NewSessionService(db, tenants, tokens, totp, hasher, cfg.Token.RefreshTokenTTL, log)
	lifecycle := service.NewLifecycleService(db, log)
	profiles := service.NewProfileService(db, hasher, log)

	authGuard := guard.New(tokens, db, log)

	authHandler := handler.NewAuthHandler(sessions)
	totpHandler := handler.NewTOTPHandler(sessions)
	tenantHandler := handler.NewTenantHandler(db, lifecycle)
	profileHandler := handler.NewProfileHandler(profiles)

	go expiredTokenGC(db, log)

	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/.well-known/oauth-authorization-server", handler.OAuthMetadata)

	// Authentication routes - they produce tokens rather than consume them
	authGroup := e.Group("/auth")
	authGroup.POST("/login", authHandler.LoginTenant)
	authGroup.POST("/login/user", authHandler.LoginUser)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// Protected routes - all require a valid access token
	api := e.Group("/api")
	api.Use(authGuard.Middleware())

	api.GET("/profile", profileHandler.GetProfile)
	api.PATCH("/profile", profileHandler.UpdateProfile)

	totpGroup := api.Group("/totp")
	totpGroup.POST("/setup", totpHandler.Setup)
	totpGroup.POST("/verify", totpHandler.Verify)
	totpGroup.POST("/disable", totpHandler.Disable)

	tenantGroup := api.Group("/tenants")
	tenantGroup.GET("/me", tenantHandler.GetMyTenant)
	tenantGroup.PUT("/me", tenantHandler.UpdateTenant)
	tenantGroup.PATCH("/me/status", tenantHandler.SetTenantStatus)
	tenantGroup.DELETE("/me", tenantHandler.DeleteTenant)
	tenantGroup.GET("/me/users", tenantHandler.ListTenantUsers)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// expiredTokenGC periodically deletes refresh tokens past their expiry.
// Revoked-but-unexpired rows are kept so double-use stays observable.
func expiredTokenGC(db *gorm.DB, log *zap.Logger) {
	tokens := store.NewTokenStore(db)
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		n, err := tokens.DeleteExpired(context.Background(), time.Now())
		if err != nil {
			log.Error("Refresh token GC failed", zap.Error(err))
			continue
		}
		if n > 0 {
			log.Info("Deleted expired refresh tokens", zap.Int64("count", n))
		}
	}
}
