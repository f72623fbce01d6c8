package main

import (
	"context"
	"log"
	"time"

	"lims/internal/config"
	"lims/internal/database"
	"lims/internal/handler"
	"lims/internal/middleware"
	"lims/internal/repository"
	"lims/internal/service"
	"lims/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           LIMS API
// @version         1.0
// @description     Laboratory information management backend: group-scoped sample access, account security, refresh tokens and an immutable audit trail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := config.Load()

	db, err := database.NewConnection(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub for security-event notifications
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sampleRepo := repository.NewSampleRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditService := service.NewAuditService(auditRepo, wsHub)
	hierarchyService := service.NewHierarchyService(groupRepo, cfg.HierarchyCacheTTL)
	accessService := service.NewAccessService(roleRepo, hierarchyService, auditService, cfg.AdminRoleName)
	tokenService := service.NewTokenService(tokenRepo, userRepo, auditService, txManager, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, tokenService, auditService, txManager, cfg)
	userService := service.NewUserService(userRepo, auditService, txManager)
	groupService := service.NewGroupService(groupRepo, hierarchyService, auditService, txManager)
	roleService := service.NewRoleService(roleRepo, auditService, txManager)
	sampleService := service.NewSampleService(sampleRepo, accessService, hierarchyService, txManager, cfg.AdminRoleName)

	// Periodic sweep of expired refresh tokens. Expiry is enforced lazily on
	// every validation; this only keeps the table from growing unbounded.
	go func() {
		ticker := time.NewTicker(cfg.TokenPurgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			purged, err := tokenService.PurgeExpired(context.Background())
			if err != nil {
				log.Printf("Refresh token purge failed: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("Purged %d expired refresh tokens", purged)
			}
		}
	}()

	middleware.Init(cfg.JWTSecret, cfg.AdminRoleName, roleRepo)
	loginLimit := middleware.LoginRateLimit(cfg.LoginRatePerSecond, cfg.LoginBurst)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, userService, loginLimit)
	userHandler := handler.NewUserHandler(userService)
	groupHandler := handler.NewGroupHandler(groupService)
	roleHandler := handler.NewRoleHandler(roleService)
	sampleHandler := handler.NewSampleHandler(sampleService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.WithTimeout(cfg.StoreTimeout))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint for admin dashboards
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, []byte(cfg.JWTSecret))
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	userHandler.RegisterRoutes(router.Group(""))
	groupHandler.RegisterRoutes(router.Group(""))
	roleHandler.RegisterRoutes(router.Group(""))
	sampleHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
