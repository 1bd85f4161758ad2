package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	// DefaultTokenURL is the exchange endpoint used when the service account
	// file does not carry one.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// ScopeMessaging authorizes calls to the push message endpoint.
	ScopeMessaging = "https://www.googleapis.com/auth/firebase.messaging"

	grantJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionLifetime keeps the signed assertion comfortably inside the
	// one hour maximum the exchange endpoint accepts.
	assertionLifetime = 55 * time.Minute

	// safetyMargin is subtracted from the token expiry so a token is never
	// handed out moments before the gateway would reject it.
	safetyMargin = 60 * time.Second
)

// TokenSource yields a bearer token valid for at least safetyMargin.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Refresher is implemented by token sources able to discard their cache and
// mint a fresh token, used after the gateway rejects a bearer token.
type Refresher interface {
	ForceRefresh(ctx context.Context) (string, error)
}

// ExchangeError reports a non-2xx response from the token endpoint.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("auth: token exchange failed: status %d: %s", e.StatusCode, e.Body)
}

// signAssertion signs the exchange assertion. Declared as a variable so tests
// can count signatures without standing up a key per case.
var signAssertion = func(key *rsa.PrivateKey, keyID string, claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if keyID != "" {
		tok.Header["kid"] = keyID
	}
	return tok.SignedString(key)
}

// Manager exchanges a service account credential for short-lived bearer
// tokens and caches them. Safe for concurrent use; concurrent refreshes after
// expiry may each hit the exchange endpoint, which is harmless since every
// minted token is independently valid.
type Manager struct {
	creds  ServiceAccount
	key    *rsa.PrivateKey
	scopes []string
	hc     *http.Client
	now    func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token
}

// NewManager parses the credential's private key and returns a manager
// requesting the messaging scope.
func NewManager(creds ServiceAccount) (*Manager, error) {
	return NewManagerWithClient(creds, &http.Client{Timeout: 10 * time.Second})
}

// NewManagerWithClient is NewManager with a caller-supplied HTTP client.
func NewManagerWithClient(creds ServiceAccount, hc *http.Client) (*Manager, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	return &Manager{
		creds:  creds,
		key:    key,
		scopes: []string{ScopeMessaging},
		hc:     hc,
		now:    time.Now,
	}, nil
}

// ProjectID exposes the credential's project for URL construction.
func (m *Manager) ProjectID() string { return m.creds.ProjectID }

// Token returns a cached bearer token when one is still valid for at least
// safetyMargin, otherwise it mints a new one. The exchange runs outside the
// lock so a slow endpoint never blocks readers of a still-valid token.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh discards the cached token and mints a fresh one.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return m.refresh(ctx)
}

// SetAuthHeader places a valid bearer token on the request, minting one if
// needed. The request's own context bounds the exchange.
func (m *Manager) SetAuthHeader(r *http.Request) error {
	tok, err := m.Token(r.Context())
	if err != nil {
		return err
	}
	r.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (m *Manager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil || m.token.AccessToken == "" {
		return "", false
	}
	if !m.now().Add(safetyMargin).Before(m.token.Expiry) {
		return "", false
	}
	return m.token.AccessToken, true
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	tok, err := m.exchange(ctx)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
	return tok.AccessToken, nil
}

func (m *Manager) exchange(ctx context.Context) (*oauth2.Token, error) {
	issued := m.now()
	assertion, err := signAssertion(m.key, m.creds.PrivateKeyID, jwt.MapClaims{
		"iss":   m.creds.ClientEmail,
		"scope": strings.Join(m.scopes, " "),
		"aud":   m.creds.TokenURI,
		"iat":   issued.Unix(),
		"exp":   issued.Add(assertionLifetime).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("auth: sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {grantJWTBearer},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("auth: build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: read exchange response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("auth: decode exchange response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("auth: exchange response carried no access token")
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}
	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Expiry:      issued.Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
