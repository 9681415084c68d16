package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Bharath2805/healthassistant/internal/config"
	"github.com/Bharath2805/healthassistant/internal/domain"
	"github.com/Bharath2805/healthassistant/internal/password"
	"github.com/Bharath2805/healthassistant/internal/repository"
)

const adminRole = "admin"

// EnsureAdmin creates a pre-verified admin account at startup when
// ADMIN_EMAIL and ADMIN_PASSWORD are configured. Without them it is a no-op.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("bootstrap lookup admin: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashed,
		Role:         adminRole,
		AuthProvider: domain.ProviderEmail,
		IsVerified:   true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.String("user_id", created.ID.String()),
		)
	}
	return nil
}
