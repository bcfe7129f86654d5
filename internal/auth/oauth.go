package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/cloudidian/mailsort/internal/config"
)

// GoogleProfile is the identity returned by the provider after a
// successful code exchange.
type GoogleProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// Flow drives the Google OAuth authorization-code flow for the web UI.
type Flow struct {
	conf *oauth2.Config
}

// NewFlow builds the flow from the application config. Label writes
// require the modify scope; the identity scopes feed the user record.
func NewFlow(cfg *config.Config) *Flow {
	return &Flow{
		conf: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				gmail.GmailModifyScope,
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
	}
}

// AuthCodeURL returns the provider consent URL. Offline access with
// forced consent is requested so a refresh token is always issued.
func (f *Flow) AuthCodeURL(state string) string {
	return f.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades the authorization code for tokens and fetches the
// user's profile with the fresh access token.
func (f *Flow) Exchange(ctx context.Context, code string) (*oauth2.Token, *GoogleProfile, error) {
	token, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchanging auth code: %w", err)
	}

	svc, err := oauth2v2.NewService(ctx, option.WithTokenSource(f.conf.TokenSource(ctx, token)))
	if err != nil {
		return nil, nil, fmt.Errorf("creating userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("fetching userinfo: %w", err)
	}

	return token, &GoogleProfile{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// Config exposes the underlying oauth2 config for token refreshing.
func (f *Flow) Config() *oauth2.Config {
	return f.conf
}
