package services

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// TokenRefreshFunc receives a token whenever the underlying source issues a new access token.
type TokenRefreshFunc func(token *oauth2.Token)

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports new tokens to callback,
// letting callers persist refreshed credentials.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback TokenRefreshFunc

	mu   sync.Mutex
	last string
}

// Token implements [oauth2.TokenSource].
func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}

// newTokenSource builds a reuse-until-expiry token source for config, reporting refreshes to callback.
//
// Refresh requests use httpClient via the [oauth2.HTTPClient] context key.
func newTokenSource(ctx context.Context, config *oauth2.Config, token *oauth2.Token, httpClient *http.Client, callback TokenRefreshFunc) oauth2.TokenSource {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	return &refreshableTokenSource{
		source:   config.TokenSource(ctx, token),
		callback: callback,
		last:     token.AccessToken,
	}
}
