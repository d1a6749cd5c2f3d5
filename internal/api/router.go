package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/app"
	iauth "github.com/easylesson/easylesson-server/internal/auth"
	"github.com/easylesson/easylesson-server/internal/handlers"
	"github.com/easylesson/easylesson-server/internal/middleware"
	"github.com/easylesson/easylesson-server/internal/services"
	"github.com/easylesson/easylesson-server/pkg/mail"
)

// Dependencies bundles everything the router needs. All services are built
// here from the injected handles so the wiring stays in one place.
type Dependencies struct {
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Config *app.Config
	Mailer mail.Mailer
	Google services.GoogleAuthenticator
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	authOpts := []services.AuthOption{services.WithCodeTTL(deps.Config.Auth.CodeTTL())}
	if deps.Google != nil {
		authOpts = append(authOpts, services.WithGoogleAuthenticator(deps.Google))
	}
	authSvc, err := services.NewAuthService(deps.DB, deps.JWT, deps.Mailer, authOpts...)
	if err != nil {
		return nil, err
	}
	workspaceSvc, err := services.NewWorkspaceService(deps.DB)
	if err != nil {
		return nil, err
	}
	inviteSvc, err := services.NewInviteService(deps.DB, deps.Mailer)
	if err != nil {
		return nil, err
	}
	boardSvc, err := services.NewBoardService(deps.DB)
	if err != nil {
		return nil, err
	}
	elementSvc, err := services.NewElementService(deps.DB, boardSvc)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(authSvc)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceSvc)
	inviteHandler := handlers.NewInviteHandler(inviteSvc)
	boardHandler := handlers.NewBoardHandler(boardSvc)
	elementHandler := handlers.NewElementHandler(elementSvc)

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))

	// Health endpoint (public)
	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}

	// Public auth routes
	r.POST("/api/register", authHandler.Register)
	r.POST("/api/login", authHandler.Login)
	r.POST("/api/verify-email", authHandler.VerifyEmail)
	r.POST("/api/resend-code", authHandler.ResendCode)
	r.POST("/api/check-user", authHandler.CheckUser)

	reset := r.Group("/api/password-reset")
	{
		reset.POST("/request", authHandler.RequestPasswordReset)
		reset.POST("/verify", authHandler.VerifyResetCode)
		reset.POST("/confirm", authHandler.ResetPassword)
	}

	r.GET("/api/auth/google/url", authHandler.GoogleAuthURL)
	r.POST("/api/auth/google", authHandler.GoogleLogin)

	// Protected routes
	requireAuth := middleware.Auth(deps.JWT, deps.DB)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	workspaces := api.Group("/workspaces")
	{
		workspaces.GET("", workspaceHandler.List)
		workspaces.POST("", workspaceHandler.Create)

		// Invite listing/consumption must register before the :id routes.
		workspaces.GET("/invites/pending", inviteHandler.Pending)
		workspaces.POST("/invites/accept/:token", inviteHandler.Accept)
		workspaces.DELETE("/invites/:token", inviteHandler.Reject)

		workspaces.GET("/:id", workspaceHandler.Get)
		workspaces.PUT("/:id", workspaceHandler.Update)
		workspaces.DELETE("/:id", workspaceHandler.Delete)
		workspaces.PATCH("/:id/favourite", workspaceHandler.ToggleFavourite)
		workspaces.PATCH("/:id/set-active", workspaceHandler.SetActive)
		workspaces.GET("/:id/members", workspaceHandler.ListMembers)
		workspaces.DELETE("/:id/members/:userID", workspaceHandler.RemoveMember)
		workspaces.PATCH("/:id/members/:userID/role", workspaceHandler.UpdateMemberRole)
		workspaces.POST("/:id/leave", workspaceHandler.Leave)
		workspaces.POST("/:id/invite", inviteHandler.Create)
	}

	boards := api.Group("/boards")
	{
		boards.GET("", boardHandler.List)
		boards.POST("", boardHandler.Create)
		boards.PUT("/:id", boardHandler.Update)
		boards.DELETE("/:id", boardHandler.Delete)
		boards.POST("/:id/toggle-favourite", boardHandler.ToggleFavourite)
		boards.POST("/:id/online", boardHandler.SetOnline)
		boards.POST("/:id/offline", boardHandler.SetOffline)
		boards.GET("/:id/online-users", boardHandler.OnlineUsers)
		boards.GET("/:id/owner", boardHandler.OwnerInfo)
		boards.GET("/:id/last-modified-by", boardHandler.LastModifierInfo)
		boards.GET("/:id/last-opened", boardHandler.LastOpenedInfo)
		boards.POST("/:id/elements/batch", elementHandler.SaveBatch)
		boards.GET("/:id/elements", elementHandler.List)
		boards.DELETE("/:id/elements/:elementID", elementHandler.Delete)
	}

	// Metrics endpoint
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
