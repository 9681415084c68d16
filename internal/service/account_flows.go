package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Bharath2805/healthassistant/internal/domain"
	"github.com/Bharath2805/healthassistant/internal/notify"
	pw "github.com/Bharath2805/healthassistant/internal/password"
	"github.com/Bharath2805/healthassistant/internal/token"
)

// VerifyEmail redeems an email-verification token. Verifying an already
// verified account is a no-op success.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	userID, err := s.tokens.VerifyEmailToken(rawToken, token.KindEmailVerify)
	if err != nil {
		return nil, newAuthError("invalid_token", "Invalid or expired verification token", 400)
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, newAuthError("user_not_found", "User not found", 404)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("verify email: %w", err)
	}

	s.audit("email.verified", "user_id", userID)
	return &MessageResponse{Message: "Email verified successfully!"}, nil
}

// ResendVerification reissues the verification link. The response is the
// same whether or not the address has an account, so the endpoint cannot be
// used to enumerate emails; misses are only logged.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ResendVerification")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log().Info("resend verification for unknown email", zap.String("email", normalizeEmail(email)))
			return &MessageResponse{Message: "Verification email resent successfully"}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("resend verification lookup: %w", err)
	}

	if user.IsVerified {
		return &MessageResponse{Message: "Email is already verified"}, nil
	}

	s.sendVerificationEmail(ctx, user)
	return &MessageResponse{Message: "Verification email resent successfully"}, nil
}

// ForgotPassword emails a reset link. Same anti-enumeration posture as
// ResendVerification.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	uniform := &MessageResponse{Message: "Password reset link sent to your email"}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log().Info("password reset for unknown email", zap.String("email", normalizeEmail(email)))
			return uniform, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("forgot password lookup: %w", err)
	}

	resetToken, err := s.tokens.IssueEmailToken(user.ID, token.KindPasswordReset)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue reset token: %w", err)
	}
	link := s.cfg.FrontendURL + "/reset-password?token=" + resetToken
	s.sendMail(ctx, notify.Email{
		To:      user.Email,
		Subject: "Reset your password",
		Plain:   "Click here to reset your password: " + link,
	})

	s.audit("password.reset.requested", "user_id", user.ID)
	return uniform, nil
}

// ResetPassword redeems a password-reset token and stores the new hash. A
// verification-kind token is rejected here, the two link flows are not
// interchangeable.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	userID, err := s.tokens.VerifyEmailToken(rawToken, token.KindPasswordReset)
	if err != nil {
		return nil, newAuthError("invalid_token", "Invalid or expired reset token", 400)
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, newAuthError("user_not_found", "User not found", 404)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("reset password: %w", err)
	}

	s.audit("password.reset.success", "user_id", userID)
	return &MessageResponse{Message: "Password reset successful"}, nil
}

// UpdatePassword changes the password of an authenticated user after
// re-checking the old one.
func (s *AuthService) UpdatePassword(ctx context.Context, user domain.User, oldPassword, newPassword string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UpdatePassword")
	defer span.End()

	valid, err := pw.Verify(oldPassword, user.PasswordHash)
	if err != nil || !valid {
		return nil, newAuthError("old_password_incorrect", "Old password is incorrect", 403)
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update password: %w", err)
	}

	s.audit("password.updated", "user_id", user.ID)
	return &MessageResponse{Message: "Password updated successfully"}, nil
}

// SetPassword gives a federated-only account a local password, making it
// dual-mode. Only allowed while the Google account has no hash yet.
func (s *AuthService) SetPassword(ctx context.Context, user domain.User, newPassword string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.SetPassword")
	defer span.End()

	if user.AuthProvider != domain.ProviderGoogle {
		return nil, newAuthError("not_google_account", "Password can only be set for Google accounts", 400)
	}
	if user.HasPassword() {
		return nil, newAuthError("password_already_set", "Password already set", 403)
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("set password: %w", err)
	}

	s.audit("password.set", "user_id", user.ID)
	return &MessageResponse{Message: "Password set successfully"}, nil
}

// UpdatePhone stores the user's phone number.
func (s *AuthService) UpdatePhone(ctx context.Context, user domain.User, phone string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.UpdatePhone")
	defer span.End()

	if err := s.users.UpdatePhone(ctx, user.ID, phone); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update phone: %w", err)
	}
	return &MessageResponse{Message: "Phone number updated successfully"}, nil
}

// SetNotificationMethod stores the user's alert-channel preference.
func (s *AuthService) SetNotificationMethod(ctx context.Context, user domain.User, method string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.SetNotificationMethod")
	defer span.End()

	if !domain.ValidNotificationMethod(method) {
		return nil, newAuthError("invalid_method", "Invalid method. Choose from 'email', 'sms', or 'both'", 400)
	}
	if err := s.users.UpdateNotificationMethod(ctx, user.ID, method); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("set notification method: %w", err)
	}
	return &MessageResponse{Message: fmt.Sprintf("Notification method set to '%s'", method)}, nil
}
