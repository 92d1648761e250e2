package services

import (
	"testing"
	"time"

	"churn-prediction-api/config"
	"churn-prediction-api/models"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuthService() *AuthService {
	return NewAuthService(config.JWTConfig{
		Secret:      "test-secret-key",
		ExpiryHours: 24,
	})
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestAuthService()

	hash, err := svc.HashPassword("retention-2024")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == "retention-2024" {
		t.Fatalf("HashPassword returned %q", hash)
	}
	if !svc.CheckPassword(hash, "retention-2024") {
		t.Error("CheckPassword should accept the correct password")
	}
	if svc.CheckPassword(hash, "retention-2025") {
		t.Error("CheckPassword should reject a wrong password")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestAuthService()
	user := models.User{ID: 42, Username: "analyst", Email: "analyst@example.com", Role: models.RoleAdmin}

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	tests := []struct {
		name, got, want string
	}{
		{"username", claims.Username, "analyst"},
		{"email", claims.Email, "analyst@example.com"},
		{"role", claims.Role, models.RoleAdmin},
		{"subject", claims.Subject, "42"},
		{"issuer", claims.Issuer, tokenIssuer},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if !claims.IsAdmin() {
		t.Error("IsAdmin() = false for admin role")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("ExpiresAt and IssuedAt should be set")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(config.JWTConfig{Secret: "another-secret", ExpiryHours: 24})
	foreign, _ := other.GenerateToken(models.User{ID: 1, Role: models.RoleUser})

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("test-secret-key"))

	noIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret-key"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid.token.string"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"missing issuer", noIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHashPasswordSalted(t *testing.T) {
	svc := newTestAuthService()

	hash1, _ := svc.HashPassword("same-password")
	hash2, _ := svc.HashPassword("same-password")
	if hash1 == hash2 {
		t.Error("hashes of the same password should differ")
	}
	if !svc.CheckPassword(hash1, "same-password") || !svc.CheckPassword(hash2, "same-password") {
		t.Error("both hashes should validate")
	}
}
