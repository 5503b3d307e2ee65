package roar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
)

// fallbackTokenTTL is used when the bearer token carries no exp claim
const fallbackTokenTTL = 5 * time.Minute

// tokenSkew re-authenticates slightly before the token actually expires
const tokenSkew = 30 * time.Second

// Config holds target-system connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Credentials are the operator-entered target-system credentials
type Credentials struct {
	Username string
	Secret   string
}

// LoadCredentials resolves the target credentials from the secret store.
// Fails with ErrCredentialsMissing when either half is absent.
func LoadCredentials(ctx context.Context, store pipeline.SecretStore) (Credentials, error) {
	username, err := store.Get(ctx, pipeline.SecretRoarUsername)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read username: %w", err)
	}
	secret, err := store.Get(ctx, pipeline.SecretRoarSecret)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read secret: %w", err)
	}
	if username == "" || secret == "" {
		return Credentials{}, pipeline.ErrCredentialsMissing
	}
	return Credentials{Username: username, Secret: secret}, nil
}

// endpoints maps an object type to its target-system save endpoint
var endpoints = map[string]string{
	"tax":             "tax",
	"currency":        "save-currency",
	"warehouse":       "save-warehouse",
	"deliveryContact": "delivery-contact",
	"deliveryName":    "delivery-name",
	"customer":        "save-customer",
	"salesPerson":     "sales-person",
	"salesOrderGroup": "sales-group",
}

// MappingResult is one resolved sub-entity identifier
type MappingResult struct {
	ID         string `json:"id"`
	ObjectType string `json:"objectType"`
}

// AuthResult is the outcome of an authentication health check
type AuthResult struct {
	OK      bool
	Message string
}

// Client talks to the target CRM. Every write authenticates with a bearer
// token plus the clientid/clientsecret headers; tokens are cached until their
// JWT exp claim.
type Client struct {
	cfg        Config
	creds      Credentials
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a target-system client bound to one set of credentials
func NewClient(cfg Config, creds Credentials, logger *zap.Logger, opts ...ClientOption) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		creds:      creds,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("roar"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// loginResponse is the shape of POST /login
type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// apiResponse is the common envelope of the save endpoints
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	} `json:"data"`
}

// Login authenticates and returns a bearer token
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", fmt.Errorf("roar base URL not configured")
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.creds.Username,
		"password": c.creds.Secret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth failed with status %d", resp.StatusCode)
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse auth response: %w", err)
	}
	if parsed.Data.Token == "" {
		return "", fmt.Errorf("auth response carried no token")
	}
	return parsed.Data.Token, nil
}

// bearerToken returns a cached token, re-authenticating when it is close to
// its exp claim
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp.Add(-tokenSkew)) {
		return c.token, nil
	}

	token, err := c.Login(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.tokenExp = tokenExpiry(token)
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// is opaque to us and only cached, never trusted.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Now().Add(fallbackTokenTTL)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Now().Add(fallbackTokenTTL)
	}
	return exp.Time
}

// call POSTs body to an endpoint with the full authentication header set
func (c *Client) call(ctx context.Context, endpoint string, body []byte) (*apiResponse, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("clientid", c.creds.Username)
	req.Header.Set("clientsecret", c.creds.Secret)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to call %s with status %d", endpoint, resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return &parsed, nil
}

// MapObject resolves one sub-entity to its target-system identifier. The
// credentials ride in the body as well as the headers; the target expects
// both.
func (c *Client) MapObject(ctx context.Context, objectType string, data any) (*MappingResult, error) {
	endpoint, ok := endpoints[objectType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown object type %q", pipeline.ErrMappingFailed, objectType)
	}

	body, err := withCredentialFields(data, c.creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrMappingFailed, objectType, err)
	}

	resp, err := c.call(ctx, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrMappingFailed, objectType, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s: %s", pipeline.ErrMappingFailed, objectType, resp.Message)
	}

	return &MappingResult{ID: resp.Data.ID, ObjectType: objectType}, nil
}

// UpsertSalesOrder submits the assembled sales order and returns the target
// identifier
func (c *Client) UpsertSalesOrder(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := c.call(ctx, "create-sales-order", body)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("upsert rejected: %s", resp.Message)
	}
	return resp.Data.MongoID, nil
}

// Auth verifies the credentials against the target, for the health dashboard
func (c *Client) Auth(ctx context.Context) *AuthResult {
	if c.creds.Username == "" || c.creds.Secret == "" {
		return &AuthResult{OK: false, Message: "missing credentials"}
	}
	if c.cfg.BaseURL == "" {
		return &AuthResult{OK: false, Message: "base URL not set"}
	}
	if _, err := c.Login(ctx); err != nil {
		c.logger.Warn("auth check failed", zap.Error(err))
		return &AuthResult{OK: false, Message: err.Error()}
	}
	return &AuthResult{OK: true}
}

// withCredentialFields re-encodes data with clientid/clientsecret overlaid
func withCredentialFields(data any, creds Credentials) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc["clientid"] = creds.Username
	doc["clientsecret"] = creds.Secret

	return json.Marshal(doc)
}
