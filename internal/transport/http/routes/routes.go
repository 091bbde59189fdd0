package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/infra/config"
	"github.com/spaceuser/iam-service/internal/infra/security"
	"github.com/spaceuser/iam-service/internal/transport/http/handlers"
	"github.com/spaceuser/iam-service/internal/transport/http/middleware"
	"github.com/spaceuser/iam-service/internal/usecase"
)

// AdminRole gates the account listing endpoint.
const AdminRole = "Admin"

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Registration *usecase.RegistrationService
	Auth         *usecase.AuthService
	Accounts     *usecase.AccountService
	Recovery     *usecase.PasswordRecoveryService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Sessions    *security.SessionTokenService
	Services    ServiceSet
	Metrics     *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Sessions)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accountHandler := handlers.NewAccountHandler(deps.Services.Registration, deps.Services.Accounts)
	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Config.JWT.SessionTTL)
	passwordHandler := handlers.NewPasswordHandler(deps.Services.Recovery)

	loginLimit := loginRateLimit(deps)
	forgotLimit := forgotPasswordRateLimit(deps)

	// The account surface is mounted under /api/Account and aliased at the
	// root so mailed links keep working without the API prefix.
	for _, group := range []*gin.RouterGroup{r.Group("/api/Account"), r.Group("/")} {
		group.POST("/Register", accountHandler.Register)
		group.GET("/ConfirmEmail", accountHandler.ConfirmEmail)
		group.POST("/ResendConfirmation", accountHandler.ResendConfirmation)

		group.POST("/Login", append(loginLimit, authHandler.Login)...)
		group.POST("/Logout", authHandler.Logout)

		group.POST("/ForgotPassword", append(forgotLimit, passwordHandler.ForgotPassword)...)
		group.GET("/ResetPassword", passwordHandler.ResetPasswordForm)
		group.POST("/ResetPassword", passwordHandler.ResetPassword)

		group.POST("/Update", authMiddleware, accountHandler.Update)
		group.POST("/Delete", authMiddleware, accountHandler.Delete)

		group.GET("/Users", authMiddleware, middleware.RequireRole(AdminRole), accountHandler.Users)
	}

	return r
}

func loginRateLimit(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.Limit(middleware.RateLimitRule{
		Name:       "login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}

func forgotPasswordRateLimit(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.ForgotPasswordMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	return []gin.HandlerFunc{deps.RateLimiter.Limit(middleware.RateLimitRule{
		Name:       "forgot_password_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
