package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/Bharath2805/healthassistant/internal/adapter/cache"
	mailadapter "github.com/Bharath2805/healthassistant/internal/adapter/mail"
	oauthadapter "github.com/Bharath2805/healthassistant/internal/adapter/oauth"
	smsadapter "github.com/Bharath2805/healthassistant/internal/adapter/sms"
	"github.com/Bharath2805/healthassistant/internal/bootstrap"
	"github.com/Bharath2805/healthassistant/internal/config"
	httptransport "github.com/Bharath2805/healthassistant/internal/http"
	"github.com/Bharath2805/healthassistant/internal/http/handler"
	httpmiddleware "github.com/Bharath2805/healthassistant/internal/http/middleware"
	apimiddleware "github.com/Bharath2805/healthassistant/internal/middleware"
	"github.com/Bharath2805/healthassistant/internal/notify"
	"github.com/Bharath2805/healthassistant/internal/repository"
	"github.com/Bharath2805/healthassistant/internal/server"
	"github.com/Bharath2805/healthassistant/internal/service"
	"github.com/Bharath2805/healthassistant/internal/telemetry"
	"github.com/Bharath2805/healthassistant/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newRefreshTokenRepository,
			newRedisClient,
			newLoginStateStore,
			newTokenService,
			newGoogleVerifier,
			newGoogleOAuthClient,
			newMailer,
			newSMSSender,
			newRateLimiter,
			service.NewAuthService,
			newAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newLoginStateStore(client redis.UniversalClient) repository.LoginStateStore {
	return cacheadapter.NewRedisLoginStateStore(client)
}

func newTokenService(cfg config.Config) *token.Service {
	return token.NewService(
		[]byte(cfg.JWTSecret),
		[]byte(cfg.RefreshSecret),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.EmailTokenTTL,
	)
}

func newGoogleVerifier(cfg config.Config) token.IdentityVerifier {
	return token.NewGoogleVerifier(cfg.GoogleClientID)
}

func newGoogleOAuthClient(cfg config.Config) oauthadapter.Exchanger {
	return oauthadapter.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI())
}

func newMailer(cfg config.Config, logger *zap.Logger) notify.Mailer {
	if cfg.SendGridAPIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set, outbound email disabled")
		return notify.NopMailer{}
	}
	return mailadapter.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailFrom, "Health Assistant")
}

func newSMSSender(cfg config.Config, logger *zap.Logger) notify.SMSSender {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		logger.Warn("Twilio credentials not set, outbound SMS disabled")
		return notify.NopSMSSender{}
	}
	return smsadapter.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthHandler(authService *service.AuthService, logger *zap.Logger) *handler.AuthHandler {
	return handler.NewAuthHandler(authService, logger)
}

func newAuthMiddleware(authService *service.AuthService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{AuthService: authService}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
