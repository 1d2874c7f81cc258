package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = 3600 * time.Second

// OAuth2Fetcher obtains tokens with the OAuth2 client-credentials grant,
// posting the client id and secret in the form body.
type OAuth2Fetcher struct {
	tokenURL string
	client   *http.Client
	clock    clockwork.Clock
}

// NewOAuth2Fetcher creates a fetcher for the given token endpoint. The
// client is shared with the source adapters.
func NewOAuth2Fetcher(tokenURL string, client *http.Client, clock clockwork.Clock) *OAuth2Fetcher {
	return &OAuth2Fetcher{tokenURL: tokenURL, client: client, clock: clock}
}

// FetchToken implements TokenFetcher. A 400 or 401 from the endpoint is
// reported as *TokenRejectedError.
func (f *OAuth2Fetcher) FetchToken(ctx context.Context, cred Credential) (Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     cred.ID,
		ClientSecret: cred.Secret,
		TokenURL:     f.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	tok, err := cfg.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			switch status := retrieveErr.Response.StatusCode; status {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return Token{}, &TokenRejectedError{Status: status}
			}
		}
		return Token{}, fmt.Errorf("request token: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, errors.New("token response has no access_token")
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = f.clock.Now().Add(defaultTokenLifetime)
	}
	return Token{Value: tok.AccessToken, ExpiresAt: expiresAt, CredentialID: cred.ID}, nil
}
