package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/infra/config"
	"github.com/spaceuser/iam-service/internal/infra/database"
	"github.com/spaceuser/iam-service/internal/infra/logger"
	"github.com/spaceuser/iam-service/internal/infra/mail"
	redisinfra "github.com/spaceuser/iam-service/internal/infra/redis"
	"github.com/spaceuser/iam-service/internal/infra/security"
	"github.com/spaceuser/iam-service/internal/infra/storage"
	postgresrepo "github.com/spaceuser/iam-service/internal/repository/postgres"
	redisrepo "github.com/spaceuser/iam-service/internal/repository/redis"
	"github.com/spaceuser/iam-service/internal/transport/http/middleware"
	"github.com/spaceuser/iam-service/internal/transport/http/routes"
	"github.com/spaceuser/iam-service/internal/usecase"
)

// seedRoles is the role catalog ensured at startup.
var seedRoles = []string{"Admin", "Basic", "Premium"}

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	purposeTokens, err := security.NewPurposeTokenService(cfg.Tokens.Secret, cfg.Tokens.ConfirmTTL, cfg.Tokens.ResetTTL)
	if err != nil {
		return nil, fmt.Errorf("init purpose token service: %w", err)
	}

	sessionTokens, err := security.NewSessionTokenService(cfg.JWT.Key, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("init session token service: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	mailer := mail.NewService(cfg.Mail, log)

	imageStore, err := storage.NewImageStore(ctx, cfg.Storage, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init image store: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	if err := repos.Roles.EnsureRoles(ctx, seedRoles); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.KeyPrefix, rateLimitWindow*2)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	store := usecase.NewIdentityStore(repos.Users, repos.Roles)
	policy := security.NewPasswordPolicy()
	if cfg.Password.MinStrengthScore > 0 {
		policy = policy.WithMinStrength(cfg.Password.MinStrengthScore)
	}

	registrationService := usecase.NewRegistrationService(store, purposeTokens, policy, mailer, imageStore, log, cfg.App.BaseURL, cfg.Storage.DefaultProfileImage)
	authService := usecase.NewAuthService(store, sessionTokens, cfg.Lockout.MaxFailures, cfg.Lockout.Duration, log)
	accountService := usecase.NewAccountService(store, imageStore, policy, log)
	recoveryService := usecase.NewPasswordRecoveryService(store, purposeTokens, policy, mailer, log, cfg.App.BaseURL)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Sessions:    sessionTokens,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Registration: registrationService,
			Auth:         authService,
			Accounts:     accountService,
			Recovery:     recoveryService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
