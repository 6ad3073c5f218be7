package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"locafy/pkg/model"
)

const testSecret = "test-secret-0123456789"

func testUser() *model.User {
	return &model.User{
		ID:           primitive.NewObjectID(),
		Name:         "Ravi",
		Email:        "ravi@example.com",
		Role:         model.RoleProvider,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
	}
}

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager(testSecret)
	u := testUser()

	token, err := m.Issue(u, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	id, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if id.ID != u.ID.Hex() || id.Email != u.Email || id.Role != model.RoleProvider {
		t.Errorf("unexpected identity %+v", id)
	}
	if !id.IsProvider() {
		t.Error("expected provider identity")
	}
}

func TestParseExpired(t *testing.T) {
	m := NewTokenManager(testSecret)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.Issue(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Parse() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, err := NewTokenManager(testSecret).Issue(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := NewTokenManager("another-secret-0123456789").Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := NewTokenManager(testSecret).Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
	}
}

func TestResetTokenPurpose(t *testing.T) {
	m := NewTokenManager(testSecret)
	u := testUser()

	reset, err := m.IssueReset(u, 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueReset() error = %v", err)
	}
	if _, err := m.Parse(reset); !errors.Is(err, ErrWrongPurpose) {
		t.Errorf("reset token accepted as access token: %v", err)
	}

	access, _ := m.Issue(u, time.Hour)
	if _, err := m.ParseReset(access); !errors.Is(err, ErrWrongPurpose) {
		t.Errorf("access token accepted as reset token: %v", err)
	}

	claims, err := m.ParseReset(reset)
	if err != nil {
		t.Fatalf("ParseReset() error = %v", err)
	}
	if claims.UserID != u.ID.Hex() {
		t.Errorf("claims.UserID = %s, want %s", claims.UserID, u.ID.Hex())
	}
	if !claims.MatchesPassword(u.PasswordHash) {
		t.Error("fingerprint should match the current password hash")
	}
	if claims.MatchesPassword("$2a$10$changed") {
		t.Error("fingerprint must not match after the password changes")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := ComparePassword(hash, "s3cret!"); err != nil {
		t.Errorf("ComparePassword() error = %v", err)
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("ComparePassword() error = %v, want ErrPasswordMismatch", err)
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should carry no identity")
	}
	ctx := WithIdentity(context.Background(), Identity{ID: "u1", Role: model.RoleUser})
	id, ok := FromContext(ctx)
	if !ok || id.ID != "u1" || id.IsProvider() {
		t.Errorf("unexpected identity %+v ok=%v", id, ok)
	}
}
