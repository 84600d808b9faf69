package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// TokenProvider hands out bearer tokens for the spreadsheet API.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenFetcher performs one full assertion exchange.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (*models.AccessToken, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// ServiceAccountTokenProvider signs a fresh assertion and exchanges it on every
// call. Wrap it in a CachingTokenProvider to reuse tokens.
type ServiceAccountTokenProvider struct {
	creds      Credentials
	httpClient *http.Client
	now        func() time.Time
}

func NewServiceAccountTokenProvider(creds Credentials, httpClient *http.Client) *ServiceAccountTokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if creds.TokenURL == "" {
		creds.TokenURL = DefaultTokenURL
	}
	creds.PrivateKey = NormalizePrivateKey(creds.PrivateKey)
	return &ServiceAccountTokenProvider{
		creds:      creds,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// ClientEmail identifies the account the tokens are issued to.
func (p *ServiceAccountTokenProvider) ClientEmail() string {
	return p.creds.ClientEmail
}

func (p *ServiceAccountTokenProvider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.FetchToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// FetchToken validates the credentials, signs the assertion and exchanges it.
// Configuration and key problems are reported before any network call.
func (p *ServiceAccountTokenProvider) FetchToken(ctx context.Context) (*models.AccessToken, error) {
	if err := p.creds.validate(); err != nil {
		return nil, err
	}

	key, err := parsePrivateKey(p.creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	issuedAt := p.now()
	assertion, err := signAssertion(p.creds, key, issuedAt)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", ErrAuth, &APIError{
			Method:     http.MethodPost,
			URL:        p.creds.TokenURL,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 512),
		})
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %w", ErrAuth, err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access_token", ErrAuth)
	}

	lifetime := time.Duration(parsed.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = AssertionLifetime
	}

	return &models.AccessToken{
		Token:     parsed.AccessToken,
		ExpiresAt: issuedAt.Add(lifetime),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
