package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const baseURL = "https://api.cloudflare.com/client/v4"

// Client is a minimal Cloudflare API client for credential verification.
// It authenticates with either a scoped API token or a global API key.
type Client struct {
	apiToken   string
	email      string
	apiKey     string
	httpClient *http.Client
}

// Zone is a Cloudflare zone visible to the credentials.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NewClient creates a client authenticating with an API token.
func NewClient(apiToken string) *Client {
	return &Client{
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewGlobalKeyClient creates a client authenticating with an account email
// and global API key.
func NewGlobalKeyClient(email, apiKey string) *Client {
	return &Client{
		email:      email,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifyToken checks that the API token is valid and active.
func (c *Client) VerifyToken(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/user/tokens/verify", nil)
	if err != nil {
		return err
	}

	var resp apiResponse
	if err := c.do(req, &resp); err != nil {
		return fmt.Errorf("verify token: %w", err)
	}

	var status tokenStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return fmt.Errorf("parse token status: %w", err)
	}
	if status.Status != "active" {
		return fmt.Errorf("token is %s", status.Status)
	}
	return nil
}

// ListZones returns the first page of zones the credentials can read.
func (c *Client) ListZones(ctx context.Context) ([]Zone, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/zones?per_page=50", nil)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	var zones []Zone
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return nil, fmt.Errorf("parse zones: %w", err)
	}
	return zones, nil
}

// Verify checks the credentials the way the ACME DNS challenge will use
// them: token status (token auth only) and zone visibility.
func (c *Client) Verify(ctx context.Context) error {
	if c.apiToken != "" {
		if err := c.VerifyToken(ctx); err != nil {
			return err
		}
	}
	zones, err := c.ListZones(ctx)
	if err != nil {
		return err
	}
	if len(zones) == 0 {
		return fmt.Errorf("credentials cannot read any zone")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else {
		req.Header.Set("X-Auth-Email", c.email)
		req.Header.Set("X-Auth-Key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out *apiResponse) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (status %d)", err, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.Success {
		if len(out.Errors) > 0 {
			return fmt.Errorf("API error (status %d): %d %s", resp.StatusCode, out.Errors[0].Code, out.Errors[0].Message)
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
