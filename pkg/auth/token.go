package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"locafy/pkg/model"
)

const (
	PurposeAccess = "access"
	PurposeReset  = "reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongPurpose = errors.New("token issued for another purpose")
)

type Claims struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp,omitempty"`
	jwt.StandardClaims
}

// TokenManager signs and verifies HS256 tokens with a shared secret.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

func (m *TokenManager) Issue(user *model.User, ttl time.Duration) (string, error) {
	return m.sign(Claims{
		UserID:  user.ID.Hex(),
		Email:   user.Email,
		Name:    user.Name,
		Role:    string(user.Role),
		Purpose: PurposeAccess,
	}, ttl)
}

// IssueReset binds the token to the current password hash, so it stops
// verifying once the password has been changed.
func (m *TokenManager) IssueReset(user *model.User, ttl time.Duration) (string, error) {
	return m.sign(Claims{
		UserID:      user.ID.Hex(),
		Email:       user.Email,
		Purpose:     PurposeReset,
		Fingerprint: fingerprint(user.PasswordHash),
	}, ttl)
}

func (m *TokenManager) Parse(tokenString string) (Identity, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return Identity{}, err
	}
	if claims.Purpose != PurposeAccess {
		return Identity{}, ErrWrongPurpose
	}
	role, ok := model.ParseRole(claims.Role)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: claims.UserID, Email: claims.Email, Name: claims.Name, Role: role}, nil
}

// ParseReset returns the user id of a reset token. The caller must check the
// returned fingerprint against the stored password hash with MatchesPassword.
func (m *TokenManager) ParseReset(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeReset {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

func (c *Claims) MatchesPassword(passwordHash string) bool {
	return c.Fingerprint != "" && c.Fingerprint == fingerprint(passwordHash)
}

func (m *TokenManager) sign(claims Claims, ttl time.Duration) (string, error) {
	now := m.now()
	claims.Subject = claims.UserID
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}
