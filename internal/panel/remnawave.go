package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// remnawaveClient drives a Remnawave panel. Authentication is a bearer
// token obtained from the login endpoint.
type remnawaveClient struct {
	baseURL  string
	login    string
	password string
	client   *http.Client

	mu    sync.Mutex
	token string
}

func newRemnawaveClient(baseURL, login, password string, client *http.Client) *remnawaveClient {
	return &remnawaveClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		login:    login,
		password: password,
		client:   client,
	}
}

func (c *remnawaveClient) Login(ctx context.Context) error {
	payload := map[string]string{
		"username": c.login,
		"password": c.password,
	}
	var parsed struct {
		Response struct {
			AccessToken string `json:"accessToken"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", payload, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if parsed.Response.AccessToken == "" {
		return ErrAuthFailed
	}
	c.mu.Lock()
	c.token = parsed.Response.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *remnawaveClient) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return nil
	}
	return c.Login(ctx)
}

func (c *remnawaveClient) CreateClient(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"username":             params.Email,
		"trafficLimitStrategy": "NO_RESET",
		"expireAt":             time.UnixMilli(params.ExpiryMs).UTC().Format("2006-01-02T15:04:05") + "Z",
		"telegramId":           params.OwnerID,
		"activeUserInbounds":   []string{params.InboundID},
	}
	var parsed struct {
		Response struct {
			UUID            string `json:"uuid"`
			SubscriptionURL string `json:"subscriptionUrl"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/users", payload, &parsed); err != nil {
		return nil, err
	}
	if parsed.Response.UUID == "" {
		return nil, ErrCreateFailed
	}
	return &CreateResult{
		ClientID:        parsed.Response.UUID,
		SubscriptionURL: parsed.Response.SubscriptionURL,
	}, nil
}

func (c *remnawaveClient) DeleteClient(ctx context.Context, inboundID, email, clientID string) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/users/"+clientID, nil, nil)
}

func (c *remnawaveClient) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request %s failed: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
