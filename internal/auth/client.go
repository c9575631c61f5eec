package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/domain/repositories"
)

// ErrNoCredentials is returned when no usable token is stored.
var ErrNoCredentials = errors.New("no valid credentials stored")

// Client calls the backend's auth endpoints and keeps the resulting
// credentials in the local store.
type Client struct {
	baseURL string
	http    *http.Client
	store   repositories.CredentialStore
	logger  *zap.Logger
}

func NewClient(baseURL string, store repositories.CredentialStore, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		logger:  logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login authenticates against the backend and stores the bearer token and
// user id locally.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/api/v1/auth/login", email, password)
}

// Register creates an account. The backend logs the new account in, so the
// returned credentials are stored the same way.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/api/v1/auth/register", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) error {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth failed: status %d: %s", resp.StatusCode, raw)
	}

	var payload loginResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	if payload.Token == "" {
		return fmt.Errorf("auth response missing token")
	}

	if err := c.store.Put(repositories.KeyToken, payload.Token); err != nil {
		return err
	}
	if payload.UserID != "" {
		if err := c.store.Put(repositories.KeyUserID, payload.UserID); err != nil {
			return err
		}
	}

	c.logger.Info("Authenticated", zap.String("userID", payload.UserID))
	return nil
}

// Token returns the stored bearer token, rejecting expired ones so a
// session never dials with a token the backend will refuse.
func (c *Client) Token() (string, error) {
	token, err := c.store.Get(repositories.KeyToken)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", err
	}
	if Expired(token, time.Now()) {
		c.logger.Warn("Stored token expired")
		return "", ErrNoCredentials
	}
	return token, nil
}

// UserID returns the stored user id, or empty when not logged in.
func (c *Client) UserID() string {
	id, err := c.store.Get(repositories.KeyUserID)
	if err != nil {
		return ""
	}
	return id
}

// Logout discards stored credentials.
func (c *Client) Logout() error {
	if err := c.store.Delete(repositories.KeyToken); err != nil {
		return err
	}
	return c.store.Delete(repositories.KeyUserID)
}
