package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// xuiClient drives an XUI-style panel. Authentication is session-cookie
// based, so each client keeps its own cookie jar.
type xuiClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client

	mu       sync.Mutex
	loggedIn bool
}

func newXUIClient(baseURL, username, password string, base *http.Client) *xuiClient {
	jar, _ := cookiejar.New(nil)
	return &xuiClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client: &http.Client{
			Timeout:   base.Timeout,
			Transport: base.Transport,
			Jar:       jar,
		},
	}
}

type xuiResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

func (c *xuiClient) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login status %d", ErrAuthFailed, resp.StatusCode)
	}
	var parsed xuiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("%w: %s", ErrAuthFailed, parsed.Msg)
	}
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

func (c *xuiClient) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	loggedIn := c.loggedIn
	c.mu.Unlock()
	if loggedIn {
		return nil
	}
	return c.Login(ctx)
}

// xuiInboundClient mirrors the client object an XUI panel stores inside an
// inbound's settings blob.
type xuiInboundClient struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Enable     bool   `json:"enable"`
	ExpiryTime int64  `json:"expiryTime"`
	Flow       string `json:"flow"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	TgID       int64  `json:"tgId"`
	SubID      string `json:"subId"`
}

func (c *xuiClient) CreateClient(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}
	inboundID, err := strconv.Atoi(params.InboundID)
	if err != nil {
		return nil, fmt.Errorf("parse inbound id %q: %w", params.InboundID, err)
	}

	settings, err := json.Marshal(map[string]any{
		"clients": []xuiInboundClient{{
			ID:         params.ClientID,
			Email:      params.Email,
			Enable:     true,
			ExpiryTime: params.ExpiryMs,
			Flow:       "xtls-rprx-vision",
			TgID:       params.OwnerID,
			SubID:      params.Email,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal client settings: %w", err)
	}

	payload := map[string]any{
		"id":       inboundID,
		"settings": string(settings),
	}
	var parsed xuiResponse
	if err := c.postJSON(ctx, "/panel/api/inbounds/addClient", payload, &parsed); err != nil {
		return nil, err
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, parsed.Msg)
	}
	return &CreateResult{ClientID: params.ClientID}, nil
}

func (c *xuiClient) DeleteClient(ctx context.Context, inboundID, email, clientID string) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	path := fmt.Sprintf("/panel/api/inbounds/%s/delClient/%s", inboundID, clientID)
	var parsed xuiResponse
	if err := c.postJSON(ctx, path, nil, &parsed); err != nil {
		return err
	}
	if !parsed.Success {
		return fmt.Errorf("delete client %s: %s", email, parsed.Msg)
	}
	return nil
}

func (c *xuiClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s failed: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
