package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	userserrors "locafy/internal/users/errors"
	"locafy/internal/users/repository"
	"locafy/internal/users/validator"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/mail"
	"locafy/pkg/model"
	"locafy/pkg/sanitizer"
	"locafy/pkg/validation"
)

const otpDigits = 6

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResult, error)
	SendOTP(ctx context.Context, req *model.EmailRequest) error
	VerifyOTP(ctx context.Context, req *model.VerifyOTPRequest) error
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error)
	ForgotPassword(ctx context.Context, req *model.EmailRequest) error
	ResetPassword(ctx context.Context, token string, req *model.ResetPasswordRequest) error
	ContactUs(ctx context.Context, identity auth.Identity, req *model.ContactRequest) error
}

type userService struct {
	users     repository.UserRepository
	otps      repository.OTPRepository
	tokens    *auth.TokenManager
	mailer    mail.Mailer
	validator *validator.UserValidator
	cfg       *config.Config
	now       func() time.Time
	newOTP    func() (string, error)
}

func NewUserService(
	users repository.UserRepository,
	otps repository.OTPRepository,
	tokens *auth.TokenManager,
	mailer mail.Mailer,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		users:     users,
		otps:      otps,
		tokens:    tokens,
		mailer:    mailer,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
		newOTP:    generateOTP,
	}
}

func (s *userService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResult, error) {
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)

	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return nil, apperrors.InvalidInput("Invalid role")
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing.IsVerified:
		return nil, apperrors.Conflict("User already exists")
	case err == nil:
		return nil, apperrors.Forbidden("Email already registered but not verified").
			WithDetails(map[string]any{"unverified": true})
	case !errors.Is(err, userserrors.ErrNotFound):
		s.cfg.Log.Error("Failed to check existing user", "email", req.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("User already exists")
		}
		s.cfg.Log.Error("Failed to create user", "email", req.Email, "error", err)
		return nil, apperrors.StorageFailure("Failed to register user", err)
	}

	token, err := s.tokens.Issue(user, s.cfg.RegisterTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}

	s.cfg.Log.Info("User registered", "user_id", user.ID.Hex(), "role", user.Role)
	return &model.AuthResult{User: user.Summary(), Token: token}, nil
}

func (s *userService) SendOTP(ctx context.Context, req *model.EmailRequest) error {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	code, err := s.newOTP()
	if err != nil {
		return apperrors.Internal("Failed to generate OTP", err)
	}

	otp := &model.OTP{
		Email:     req.Email,
		Code:      code,
		ExpiresAt: s.now().Add(s.cfg.OTPTTL).UTC(),
	}
	if err := s.otps.Upsert(ctx, otp); err != nil {
		s.cfg.Log.Error("Failed to store OTP", "email", req.Email, "error", err)
		return apperrors.StorageFailure("Failed to store OTP", err)
	}

	msg, err := mail.OTPEmail(req.Email, code, s.cfg.OTPTTL)
	if err != nil {
		return apperrors.Internal("Failed to render OTP email", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to send OTP email", "email", req.Email, "error", err)
		return apperrors.Unavailable("Email")
	}

	s.cfg.Log.Info("OTP sent", "email", req.Email)
	return nil
}

func (s *userService) VerifyOTP(ctx context.Context, req *model.VerifyOTPRequest) error {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	otp, err := s.otps.ClaimAttempt(ctx, req.Email, s.cfg.OTPMaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, userserrors.ErrOTPNotFound):
			return apperrors.NotFound("OTP")
		case errors.Is(err, userserrors.ErrOTPAttemptsExceeded):
			s.cfg.Log.Warn("OTP attempts exhausted", "email", req.Email)
			return apperrors.TooManyRequests("Too many attempts, request a new OTP")
		}
		return apperrors.Internal("Failed to retrieve OTP", err)
	}
	if otp.Code != req.OTP {
		return apperrors.InvalidInput("Invalid OTP")
	}
	if otp.Expired(s.now()) {
		return apperrors.InvalidInput("OTP has expired")
	}

	if err := s.users.MarkVerified(ctx, req.Email); err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return apperrors.NotFound("User")
		}
		return apperrors.StorageFailure("Failed to verify user", err)
	}

	if err := s.otps.Delete(ctx, req.Email); err != nil {
		s.cfg.Log.Warn("Failed to delete used OTP", "email", req.Email, "error", err)
	}

	s.cfg.Log.Info("Email verified", "email", req.Email)
	return nil
}

func (s *userService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.InvalidInput("Invalid credentials")
		}
		return nil, apperrors.Internal("Failed to log in", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		s.cfg.Log.Warn("Login failed", "email", req.Email, "reason", "password mismatch")
		return nil, apperrors.InvalidInput("Invalid credentials")
	}
	if !user.IsVerified {
		return nil, apperrors.Forbidden("Please verify your email first").
			WithDetails(map[string]any{"unverified": true})
	}

	token, err := s.tokens.Issue(user, s.cfg.LoginTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}

	s.cfg.Log.Info("User logged in", "user_id", user.ID.Hex())
	return &model.AuthResult{User: user.Summary(), Token: token}, nil
}

func (s *userService) ForgotPassword(ctx context.Context, req *model.EmailRequest) error {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return apperrors.NotFound("User")
		}
		return apperrors.Internal("Failed to retrieve user", err)
	}

	token, err := s.tokens.IssueReset(user, s.cfg.ResetTokenTTL)
	if err != nil {
		return apperrors.Internal("Failed to issue reset token", err)
	}

	link := fmt.Sprintf("%s/api/auth/reset-password/%s", s.cfg.BaseURL, token)
	msg, err := mail.PasswordResetEmail(user.Email, user.Name, link, s.cfg.ResetTokenTTL)
	if err != nil {
		return apperrors.Internal("Failed to render reset email", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to send reset email", "user_id", user.ID.Hex(), "error", err)
		return apperrors.Unavailable("Email")
	}

	s.cfg.Log.Info("Password reset requested", "user_id", user.ID.Hex())
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, token string, req *model.ResetPasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	claims, err := s.tokens.ParseReset(token)
	if err != nil {
		return apperrors.InvalidInput("Invalid or expired token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid or expired token")
		}
		return apperrors.Internal("Failed to retrieve user", err)
	}
	if !claims.MatchesPassword(user.PasswordHash) {
		return apperrors.InvalidInput("Invalid or expired token")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return apperrors.Internal("Failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.cfg.Log.Error("Failed to update password", "user_id", user.ID.Hex(), "error", err)
		return apperrors.StorageFailure("Failed to reset password", err)
	}

	s.cfg.Log.Info("Password reset", "user_id", user.ID.Hex())
	return nil
}

func (s *userService) ContactUs(ctx context.Context, identity auth.Identity, req *model.ContactRequest) error {
	req.Subject = sanitizer.TrimAndNormalize(req.Subject)
	req.Message = sanitizer.NormalizeText(req.Message)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}
	if s.cfg.SupportEmail == "" {
		return apperrors.Unavailable("Support inbox")
	}

	msg, err := mail.ContactEmail(s.cfg.SupportEmail, identity.Name, identity.Email, req.Subject, req.Message)
	if err != nil {
		return apperrors.Internal("Failed to render contact email", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to send contact email", "user_id", identity.ID, "error", err)
		return apperrors.Unavailable("Email")
	}

	s.cfg.Log.Info("Contact message sent", "user_id", identity.ID)
	return nil
}

func generateOTP() (string, error) {
	limit := big.NewInt(1)
	for range otpDigits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
