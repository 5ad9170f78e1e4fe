package auth

import (
	"context"
	"time"

	"github.com/agora-community/agora_wallet/internal/config"
	"github.com/agora-community/agora_wallet/internal/identity"
)

// Service issues and refreshes token pairs for authenticated users.
type Service struct {
	cfg  config.Config
	repo identity.Repository
}

// NewService builds the auth service.
func NewService(cfg config.Config, repo identity.Repository) *Service {
	return &Service{cfg: cfg, repo: repo}
}

// TokenPair bundles an access token with its refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an already-authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, accessExp, err := signToken(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := signToken(user, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}, nil
}

// Refresh verifies the refresh token and returns a new access token if the
// token version is still current.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := ParseToken(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", 0, ErrInvalidToken
	}
	if user.TokenVersion != claims.Version {
		return "", 0, ErrInvalidToken
	}

	access, _, err := signToken(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments the token version so outstanding tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
