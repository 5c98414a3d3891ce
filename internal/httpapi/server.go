package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/casafind/casafind/internal/account"
	"github.com/casafind/casafind/internal/listing"
	"github.com/casafind/casafind/pkg/membership"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services bundles the application services the HTTP layer fronts.
type Services struct {
	Accounts   *account.Service
	Membership *membership.Service
	Listings   *listing.Service
}

func (services Services) validate() error {
	if services.Accounts == nil {
		return fmt.Errorf("account service is required")
	}
	if services.Membership == nil {
		return fmt.Errorf("membership service is required")
	}
	if services.Listings == nil {
		return fmt.Errorf("listing service is required")
	}
	return nil
}

// Run boots the HTTP API and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, cfg Config, services Services, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := services.validate(); err != nil {
		return fmt.Errorf("http services: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := setupRouter(cfg, &httpHandler{logger: logger, services: services, cfg: cfg})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/agents/register", handler.handleRegisterAgent)
	auth.POST("/agents/login", handler.handleLoginAgent)
	auth.POST("/users/register", handler.handleRegisterUser)
	auth.POST("/users/login", handler.handleLoginUser)

	api.POST("/webhooks/payments", handler.handlePaymentWebhook)

	api.GET("/properties", handler.handleListProperties)
	api.GET("/properties/:id", handler.handleGetProperty)
	api.GET("/projects", handler.handleListProjects)
	api.GET("/projects/:id", handler.handleGetProject)

	agents := api.Group("")
	agents.Use(requireRole(cfg, account.RoleAgent))
	agents.GET("/membership", handler.handleMembership)
	agents.POST("/properties", handler.handleCreateProperty)
	agents.PUT("/properties/:id", handler.handleUpdateProperty)
	agents.DELETE("/properties/:id", handler.handleDeleteProperty)
	agents.POST("/projects", handler.handleCreateProject)
	agents.PUT("/projects/:id", handler.handleUpdateProject)
	agents.DELETE("/projects/:id", handler.handleDeleteProject)

	users := api.Group("")
	users.Use(requireRole(cfg, account.RoleUser))
	users.GET("/saved-properties", handler.handleListSavedProperties)
	users.POST("/saved-properties/:id", handler.handleSaveProperty)
	users.DELETE("/saved-properties/:id", handler.handleUnsaveProperty)

	return router
}

type httpHandler struct {
	logger   *zap.Logger
	services Services
	cfg      Config
}
