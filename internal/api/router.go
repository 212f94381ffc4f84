package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/votegate/internal/app"
	iauth "github.com/charlesng35/votegate/internal/auth"
	"github.com/charlesng35/votegate/internal/handlers"
	"github.com/charlesng35/votegate/internal/middleware"
	"github.com/charlesng35/votegate/internal/monitoring"
	"github.com/charlesng35/votegate/internal/services"
)

// Dependencies are the services exposed over HTTP.
type Dependencies struct {
	Voting     *services.VotingService
	Enrollment *services.EnrollmentService
	Audit      *services.AuditService
	Tokens     *iauth.BallotTokenService
	Health     *monitoring.HealthManager
	RateStore  middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the voter,
// enrollment and admin routes.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config must be provided")
	case deps.Voting == nil:
		return nil, errors.New("voting service must be provided")
	case deps.Enrollment == nil:
		return nil, errors.New("enrollment service must be provided")
	case deps.Audit == nil:
		return nil, errors.New("audit service must be provided")
	case deps.Tokens == nil:
		return nil, errors.New("ballot token service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	r.GET("/health", handlers.Health(deps.Health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if limit := cfg.Server.RateLimit; limit.Enabled && deps.RateStore != nil {
		api.Use(middleware.RateLimit(deps.RateStore, limit.Requests, limit.Window))
	}

	voter := handlers.NewVoterHandler(deps.Voting)
	auth := api.Group("/auth", middleware.Actor("voter"))
	{
		auth.POST("/authenticate", voter.Authenticate)
		auth.POST("/verify-otp", voter.VerifyOTP)
		auth.POST("/vote", middleware.RequireBallotToken(deps.Tokens), voter.Vote)
	}

	requireAdmin := middleware.RequireAdminToken(cfg.Server.AdminToken)

	enrollment := handlers.NewEnrollmentHandler(deps.Enrollment)
	enroll := api.Group("/enrollment", requireAdmin, middleware.Actor("admin"))
	{
		enroll.POST("/validate-image", enrollment.ValidateImage)
		enroll.PUT("/registrants/:id/photo", enrollment.UploadPhoto)
		enroll.GET("/registrants/:id/photo", enrollment.GetPhoto)
	}

	audit := handlers.NewAuditHandler(deps.Audit)
	admin := api.Group("/admin", requireAdmin, middleware.Actor("admin"))
	{
		admin.GET("/audit", audit.List)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
