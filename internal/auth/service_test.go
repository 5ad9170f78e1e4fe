package auth

import (
	"context"
	"testing"
	"time"

	"github.com/agora-community/agora_wallet/internal/config"
	"github.com/agora-community/agora_wallet/internal/identity"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func TestLoginRefreshRoundTrip(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	svc := NewService(testConfig(), repo)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{Email: "kim@example.com", Username: "kim_k", Password: "longenough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := ParseToken(pair.AccessToken, "test-access-secret")
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "kim_k" || claims.Role != identity.RoleMember {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	svc := NewService(testConfig(), repo)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{Email: "lee@example.com", Username: "lee_l", Password: "longenough"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("expected refresh rejection after logout")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	repo := identity.NewMemoryRepository()
	svc := NewService(testConfig(), repo)

	pair, err := svc.Login(identity.User{ID: "11111111-1111-1111-1111-111111111111", Username: "mallory", Role: identity.RoleMember})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := ParseToken(pair.AccessToken, "some-other-secret"); err == nil {
		t.Fatal("expected signature rejection")
	}
}
