package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
)

func TestJWTManagerGenerateAndVerify(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("super-secret", time.Minute, "bankledger")

	id := domain.Identity{UserID: "manager-1", Role: domain.RoleManager, BankID: "bank-1"}

	token, err := manager.Generate(id)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}

	if claims.Identity() != id {
		t.Fatalf("expected claims to match identity, got %+v", claims)
	}
	if claims.ID == "" || claims.Issuer != "bankledger" {
		t.Fatalf("expected jti and issuer, got %+v", claims.RegisteredClaims)
	}
}

func TestJWTManagerGenerateRejectsIncompleteIdentity(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute, "")

	for _, id := range []domain.Identity{
		{Role: domain.RoleCustomer},
		{UserID: "u", Role: "admin"},
		{UserID: "m", Role: domain.RoleManager},
	} {
		if _, err := manager.Generate(id); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %+v, got %v", id, err)
		}
	}
}

func TestJWTManagerVerifyErrors(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute, "bankledger")

	expiredClaims := auth.Claims{
		UserID: "expired",
		Role:   domain.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bankledger",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}
	if _, err := manager.Verify(expired); !errors.Is(err, domain.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	other := auth.NewJWTManager("other-secret", time.Minute, "bankledger")
	foreign, err := other.Generate(domain.Identity{UserID: "u", Role: domain.RoleCustomer})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Verify(foreign); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	wrongIssuer := auth.NewJWTManager("secret", time.Minute, "someone-else")
	token, err := wrongIssuer.Generate(domain.Identity{UserID: "u", Role: domain.RoleCustomer})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}

	if _, err := manager.Verify("not-a-jwt"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestJWTManagerVerifyRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	claims := auth.Claims{
		UserID: "u",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	manager := auth.NewJWTManager("secret", time.Minute, "")
	if _, err := manager.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
