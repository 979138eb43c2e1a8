package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

func TestMintAndParseToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret: "secret",
		Issuer: "vendas",
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := TokenPayload{
		UserID: userID,
		Roles:  []enums.Role{enums.RoleCustomer, enums.RoleOperator},
		Kind:   enums.TokenKindAccess,
		JTI:    "jti-1",
	}

	token, err := MintToken(cfg, now, 30*time.Minute, payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Kind != enums.TokenKindAccess {
		t.Fatalf("unexpected kind %s", claims.Kind)
	}
	if !claims.HasRole(enums.RoleOperator) {
		t.Fatal("roles not preserved")
	}
	if claims.ID != "jti-1" {
		t.Fatalf("unexpected jti %s", claims.ID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret: "secret",
		Issuer: "vendas",
	}

	token, err := MintToken(cfg, time.Now(), time.Minute, TokenPayload{
		UserID: uuid.New(),
		Kind:   enums.TokenKindAccess,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := ParseToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseTokenExpired(t *testing.T) {
	cfg := config.JWTConfig{
		Secret: "secret",
		Issuer: "vendas",
	}

	token, err := MintToken(cfg, time.Now().Add(-2*time.Hour), time.Minute, TokenPayload{
		UserID: uuid.New(),
		Kind:   enums.TokenKindAccess,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := ParseToken(cfg, token); err == nil {
		t.Fatal("expected expired token error")
	}
}

func TestParseTokenAcceptsPreviousKeyDuringRotation(t *testing.T) {
	oldCfg := config.JWTConfig{
		Secret: "old-secret",
		Issuer: "vendas",
	}
	token, err := MintToken(oldCfg, time.Now(), time.Minute, TokenPayload{
		UserID: uuid.New(),
		Kind:   enums.TokenKindAccess,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	rotated := config.JWTConfig{
		Secret:         "new-secret",
		PreviousSecret: "old-secret",
		Issuer:         "vendas",
	}
	if _, err := ParseToken(rotated, token); err != nil {
		t.Fatalf("expected previous key to validate during overlap, got %v", err)
	}

	retired := config.JWTConfig{
		Secret: "new-secret",
		Issuer: "vendas",
	}
	if _, err := ParseToken(retired, token); err == nil {
		t.Fatal("expected token signed by retired key to fail")
	}
}

func TestParseTokenPreviousKeyDoesNotMaskExpiry(t *testing.T) {
	oldCfg := config.JWTConfig{
		Secret: "old-secret",
		Issuer: "vendas",
	}
	token, err := MintToken(oldCfg, time.Now().Add(-2*time.Hour), time.Minute, TokenPayload{
		UserID: uuid.New(),
		Kind:   enums.TokenKindAccess,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	rotated := config.JWTConfig{
		Secret:         "new-secret",
		PreviousSecret: "old-secret",
		Issuer:         "vendas",
	}
	if _, err := ParseToken(rotated, token); err == nil {
		t.Fatal("expected expired token to fail regardless of key overlap")
	}
}
