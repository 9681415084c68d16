package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Bharath2805/healthassistant/internal/domain"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// TokenResponse is the payload Google's token endpoint returns for an
// authorization-code exchange. Only the ID token matters to the login flow.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Exchanger encapsulates the outbound calls of the authorization-code flow.
type Exchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (TokenResponse, error)
}

// GoogleClient is the default HTTP implementation of Exchanger.
type GoogleClient struct {
	clientID     string
	clientSecret string
	redirectURI  string

	// TokenURL points at Google's token endpoint. Tests override it.
	TokenURL string

	httpClient *http.Client
}

var _ Exchanger = (*GoogleClient)(nil)

func NewGoogleClient(clientID, clientSecret, redirectURI string) *GoogleClient {
	return &GoogleClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		TokenURL:     googleTokenURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL builds the consent-screen URL the browser is sent to.
func (c *GoogleClient) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "openid email")
	q.Set("state", state)
	return googleAuthURL + "?" + q.Encode()
}

// ExchangeCode swaps an authorization code for Google's token response.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%w: build token request: %v", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%w: token exchange request: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%w: read token response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return TokenResponse{}, fmt.Errorf("%w: token exchange status=%d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		// 4xx means the code itself was bad or already used.
		return TokenResponse{}, fmt.Errorf("%w: token exchange status=%d", domain.ErrInvalidFederatedToken, resp.StatusCode)
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return TokenResponse{}, fmt.Errorf("%w: decode token response: %v", domain.ErrProviderUnavailable, err)
	}
	if token.IDToken == "" {
		return TokenResponse{}, fmt.Errorf("%w: token response missing id_token", domain.ErrInvalidFederatedToken)
	}
	return token, nil
}
