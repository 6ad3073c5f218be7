package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	userserrors "locafy/internal/users/errors"
	"locafy/internal/users/validator"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/logger"
	"locafy/pkg/mail"
	"locafy/pkg/model"
)

// memoryUsers is an in-memory UserRepository keyed by email.
type memoryUsers struct {
	byEmail   map[string]*model.User
	createErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byEmail: map[string]*model.User{}}
}

func (m *memoryUsers) Create(_ context.Context, user *model.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = primitive.NewObjectID()
	m.byEmail[user.Email] = user
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range m.byEmail {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return nil, userserrors.ErrNotFound
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, userserrors.ErrNotFound
}

func (m *memoryUsers) MarkVerified(_ context.Context, email string) error {
	u, ok := m.byEmail[email]
	if !ok {
		return userserrors.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return userserrors.ErrNotFound
}

type memoryOTPs struct {
	codes map[string]*model.OTP
}

func (m *memoryOTPs) Upsert(_ context.Context, otp *model.OTP) error {
	m.codes[otp.Email] = otp
	return nil
}

func (m *memoryOTPs) ClaimAttempt(_ context.Context, email string, maxAttempts int) (*model.OTP, error) {
	otp, ok := m.codes[email]
	if !ok {
		return nil, userserrors.ErrOTPNotFound
	}
	if otp.Attempts >= maxAttempts {
		return nil, userserrors.ErrOTPAttemptsExceeded
	}
	otp.Attempts++
	return otp, nil
}

func (m *memoryOTPs) Delete(_ context.Context, email string) error {
	delete(m.codes, email)
	return nil
}

type mockMailer struct {
	sent []mail.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	users  *memoryUsers
	otps   *memoryOTPs
	mailer *mockMailer
	tokens *auth.TokenManager
	svc    *userService
	clock  time.Time
}

func newFixture() *fixture {
	f := &fixture{
		users:  newMemoryUsers(),
		otps:   &memoryOTPs{codes: map[string]*model.OTP{}},
		mailer: &mockMailer{},
		tokens: auth.NewTokenManager("test-secret-0123456789"),
		clock:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{
		Log:              logger.Discard(),
		BaseURL:          "https://locafy.example",
		SupportEmail:     "support@locafy.example",
		LoginTokenTTL:    config.DefaultLoginTokenTTL,
		RegisterTokenTTL: config.DefaultRegisterTokenTTL,
		ResetTokenTTL:    config.DefaultResetTokenTTL,
		OTPTTL:           config.DefaultOTPTTL,
		OTPMaxAttempts:   3,
	}
	f.svc = NewUserService(f.users, f.otps, f.tokens, f.mailer, validator.NewUserValidator(), cfg).(*userService)
	f.svc.now = func() time.Time { return f.clock }
	f.svc.newOTP = func() (string, error) { return "123456", nil }
	return f
}

func (f *fixture) addUser(t *testing.T, email, password string, verified bool) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	u := &model.User{ID: primitive.NewObjectID(), Name: "Meera", Email: email, PasswordHash: hash, Role: model.RoleUser, IsVerified: verified}
	f.users.byEmail[email] = u
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "  Ravi Kumar ",
		Email:    " Ravi@Example.com ",
		Password: "secret123",
		Role:     "provider",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.users.byEmail["ravi@example.com"]
	if stored == nil {
		t.Fatal("user not stored under normalised email")
	}
	if stored.PasswordHash == "secret123" || auth.ComparePassword(stored.PasswordHash, "secret123") != nil {
		t.Error("password must be stored as a bcrypt hash")
	}
	if stored.Role != model.RoleProvider || stored.IsVerified {
		t.Errorf("unexpected user %+v", stored)
	}

	identity, err := f.tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if identity.ID != stored.ID.Hex() || identity.Role != model.RoleProvider {
		t.Errorf("unexpected identity %+v", identity)
	}
}

func TestRegister_DefaultsToUserRole(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Register(context.Background(), &model.RegisterRequest{Name: "Meera", Email: "m@example.com", Password: "secret123"}); err != nil {
		t.Fatal(err)
	}
	if f.users.byEmail["m@example.com"].Role != model.RoleUser {
		t.Error("expected default role user")
	}
}

func TestRegister_Existing(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
		wantCode string
	}{
		{name: "verified", verified: true, wantCode: apperrors.CodeConflict},
		{name: "unverified", verified: false, wantCode: apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.addUser(t, "m@example.com", "secret123", tt.verified)

			_, err := f.svc.Register(context.Background(), &model.RegisterRequest{Name: "Meera", Email: "m@example.com", Password: "secret123"})
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if !tt.verified && apperrors.AsAppError(err).Details["unverified"] != true {
				t.Error("expected unverified detail")
			}
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), &model.RegisterRequest{Name: "M", Email: "not-an-email", Password: "123"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestOTPFlow(t *testing.T) {
	f := newFixture()
	f.addUser(t, "m@example.com", "secret123", false)

	if err := f.svc.SendOTP(context.Background(), &model.EmailRequest{Email: "m@example.com"}); err != nil {
		t.Fatalf("SendOTP() error = %v", err)
	}
	if len(f.mailer.sent) != 1 || !strings.Contains(f.mailer.sent[0].HTML, "123456") {
		t.Fatal("OTP email not sent")
	}
	if got := f.otps.codes["m@example.com"].ExpiresAt; !got.Equal(f.clock.Add(config.DefaultOTPTTL)) {
		t.Errorf("ExpiresAt = %s", got)
	}

	err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "654321"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("wrong code: expected INVALID_INPUT, got %v", err)
	}

	if err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "123456"}); err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	if !f.users.byEmail["m@example.com"].IsVerified {
		t.Error("user not marked verified")
	}
	if _, ok := f.otps.codes["m@example.com"]; ok {
		t.Error("used OTP not deleted")
	}
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newFixture()
	f.addUser(t, "m@example.com", "secret123", false)
	if err := f.svc.SendOTP(context.Background(), &model.EmailRequest{Email: "m@example.com"}); err != nil {
		t.Fatal(err)
	}

	f.clock = f.clock.Add(config.DefaultOTPTTL)
	err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "123456"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if f.users.byEmail["m@example.com"].IsVerified {
		t.Error("expired OTP verified the user")
	}
}

func TestVerifyOTP_Missing(t *testing.T) {
	f := newFixture()
	err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "123456"})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestVerifyOTP_AttemptLimit(t *testing.T) {
	f := newFixture()
	f.addUser(t, "m@example.com", "secret123", false)
	if err := f.svc.SendOTP(context.Background(), &model.EmailRequest{Email: "m@example.com"}); err != nil {
		t.Fatal(err)
	}

	for i := range 3 {
		err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "000000"})
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Fatalf("guess %d: expected INVALID_INPUT, got %v", i, err)
		}
	}

	err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "123456"})
	if !apperrors.HasCode(err, apperrors.CodeTooManyRequests) {
		t.Fatalf("correct code after limit: expected TOO_MANY_REQUESTS, got %v", err)
	}
	if f.users.byEmail["m@example.com"].IsVerified {
		t.Error("user verified after attempts were exhausted")
	}

	if err := f.svc.SendOTP(context.Background(), &model.EmailRequest{Email: "m@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "m@example.com", OTP: "123456"}); err != nil {
		t.Fatalf("fresh code should reset attempts, got %v", err)
	}
}

func TestSendOTP_MailFailure(t *testing.T) {
	f := newFixture()
	f.mailer.err = errors.New("smtp down")
	err := f.svc.SendOTP(context.Background(), &model.EmailRequest{Email: "m@example.com"})
	if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
		email    string
		password string
		wantCode string
	}{
		{name: "success", verified: true, email: "m@example.com", password: "secret123"},
		{name: "email is case insensitive", verified: true, email: "M@Example.com", password: "secret123"},
		{name: "wrong password", verified: true, email: "m@example.com", password: "nope", wantCode: apperrors.CodeInvalidInput},
		{name: "unknown email", verified: true, email: "x@example.com", password: "secret123", wantCode: apperrors.CodeInvalidInput},
		{name: "unverified", verified: false, email: "m@example.com", password: "secret123", wantCode: apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			user := f.addUser(t, "m@example.com", "secret123", tt.verified)

			res, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: tt.email, Password: tt.password})
			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			identity, err := f.tokens.Parse(res.Token)
			if err != nil || identity.ID != user.ID.Hex() || identity.Email != user.Email {
				t.Errorf("unexpected token identity %+v (%v)", identity, err)
			}
		})
	}
}

func TestPasswordReset(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "m@example.com", "secret123", true)

	if err := f.svc.ForgotPassword(context.Background(), &model.EmailRequest{Email: "m@example.com"}); err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatal("reset email not sent")
	}

	token, err := f.tokens.IssueReset(user, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.mailer.sent[0].HTML, "https://locafy.example/api/auth/reset-password/") {
		t.Errorf("reset link missing from email")
	}

	if err := f.svc.ResetPassword(context.Background(), token, &model.ResetPasswordRequest{Password: "brand-new"}); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if auth.ComparePassword(user.PasswordHash, "brand-new") != nil {
		t.Error("password hash not replaced")
	}

	err = f.svc.ResetPassword(context.Background(), token, &model.ResetPasswordRequest{Password: "again-new"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("reusing a reset token: expected INVALID_INPUT, got %v", err)
	}
}

func TestResetPassword_InvalidToken(t *testing.T) {
	f := newFixture()
	user := f.addUser(t, "m@example.com", "secret123", true)
	access, _ := f.tokens.Issue(user, time.Hour)

	for _, token := range []string{"garbage", access} {
		err := f.svc.ResetPassword(context.Background(), token, &model.ResetPasswordRequest{Password: "brand-new"})
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Errorf("token %q: expected INVALID_INPUT, got %v", token, err)
		}
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture()
	err := f.svc.ForgotPassword(context.Background(), &model.EmailRequest{Email: "x@example.com"})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestContactUs(t *testing.T) {
	f := newFixture()
	identity := auth.Identity{ID: "u1", Name: "Meera", Email: "m@example.com"}

	if err := f.svc.ContactUs(context.Background(), identity, &model.ContactRequest{Subject: "Refund", Message: "Please help with my refund"}); err != nil {
		t.Fatalf("ContactUs() error = %v", err)
	}
	msg := f.mailer.sent[0]
	if msg.To[0] != "support@locafy.example" || msg.ReplyTo != "m@example.com" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestGenerateOTP(t *testing.T) {
	for range 20 {
		code, err := generateOTP()
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != otpDigits || strings.Trim(code, "0123456789") != "" {
			t.Fatalf("generateOTP() = %q", code)
		}
	}
}
