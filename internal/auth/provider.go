package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
	"github.com/cloudidian/mailsort/internal/store"
)

// ErrNoCredentials is returned when a user has no stored Google tokens.
var ErrNoCredentials = errors.New("auth: user has no stored credentials")

// tokenStore is the slice of the store the provider needs.
type tokenStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SaveUserTokens(ctx context.Context, id, encryptedAccess, encryptedRefresh string, expiry *time.Time) error
}

// CredentialProvider turns stored encrypted tokens into live oauth2
// token sources. Refreshed access tokens are written back before use
// so a crash mid-job never loses a rotation.
type CredentialProvider struct {
	store  tokenStore
	cipher *TokenCipher
	conf   *oauth2.Config
	logger *slog.Logger
}

// NewCredentialProvider wires the provider to the user store and the
// OAuth config used for refreshing.
func NewCredentialProvider(s *store.Store, cipher *TokenCipher, flow *Flow, logger *slog.Logger) *CredentialProvider {
	return &CredentialProvider{
		store:  s,
		cipher: cipher,
		conf:   flow.Config(),
		logger: logging.WithComponent(logger, "auth"),
	}
}

// SaveTokens encrypts and persists a user's OAuth tokens.
func (p *CredentialProvider) SaveTokens(ctx context.Context, userID string, token *oauth2.Token) error {
	access, err := p.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	refresh, err := p.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		t := token.Expiry.UTC()
		expiry = &t
	}
	return p.store.SaveUserTokens(ctx, userID, access, refresh, expiry)
}

// TokenSource returns a refreshing token source for the user. The
// source persists rotated tokens back to the store.
func (p *CredentialProvider) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	user, err := p.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EncryptedAccessToken == "" && user.EncryptedRefreshToken == "" {
		return nil, ErrNoCredentials
	}

	access, err := p.cipher.Decrypt(user.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}
	refresh, err := p.cipher.Decrypt(user.EncryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting refresh token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if user.TokenExpiry != nil {
		token.Expiry = *user.TokenExpiry
	}

	return &persistingSource{
		provider: p,
		userID:   userID,
		inner:    p.conf.TokenSource(ctx, token),
		last:     token,
	}, nil
}

// persistingSource saves tokens to the store whenever the inner source
// rotates them.
type persistingSource struct {
	provider *CredentialProvider
	userID   string

	mu    sync.Mutex
	inner oauth2.TokenSource
	last  *oauth2.Token
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.inner.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if token.AccessToken != s.last.AccessToken {
		if err := s.provider.SaveTokens(context.Background(), s.userID, token); err != nil {
			return nil, fmt.Errorf("persisting refreshed token: %w", err)
		}
		s.provider.logger.Info("refreshed access token",
			logging.Operation("token.refresh"),
			slog.String("user_id", s.userID))
		s.last = token
	}
	return token, nil
}
