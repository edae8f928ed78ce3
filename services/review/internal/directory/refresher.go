package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

// ErrNoRefreshToken is returned when a token pair carries no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token")

// TokenRefresher exchanges refresh tokens at the directory's OAuth token endpoint.
type TokenRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewTokenRefresher creates a refresher for the given OAuth client. Token
// requests go through httpClient.
func NewTokenRefresher(clientID, clientSecret, tokenURL string, httpClient *http.Client) *TokenRefresher {
	return &TokenRefresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// Refresh performs a refresh_token grant. The refresh token is kept unless the
// endpoint rotates it.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*domain.TokenState, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token grant: %w", err)
	}

	state := &domain.TokenState{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
	if state.RefreshToken == "" {
		state.RefreshToken = refreshToken
	}
	return state, nil
}
