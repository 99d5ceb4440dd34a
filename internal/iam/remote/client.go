// Package remote implements iam.Client against the permission service's
// HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"accessgate.org/internal/iam"
)

// Client talks JSON over HTTP to the permission service. Status codes map
// onto the iam sentinel errors; everything else is surfaced as-is and
// treated as transient by the retry layer.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ iam.Client = (*Client)(nil)

// New creates a client with the given base URL and per-call timeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("iam remote: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("iam remote: parse base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type roleResponse struct {
	Name string `json:"name"`
	ARN  string `json:"arn"`
}

type policiesResponse struct {
	Policies []string `json:"policies"`
}

func (c *Client) ListAttachedPolicies(ctx context.Context, roleName string) ([]string, error) {
	var out policiesResponse
	err := c.call(ctx, http.MethodGet, c.rolePath(roleName)+"/policies", nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Policies, nil
}

func (c *Client) CreateRole(ctx context.Context, name, description string) (iam.Role, error) {
	body := map[string]string{"name": name, "description": description}
	var out roleResponse
	if err := c.call(ctx, http.MethodPost, "/v1/roles", body, &out); err != nil {
		return iam.Role{}, err
	}
	return iam.Role{Name: out.Name, ARN: out.ARN}, nil
}

func (c *Client) AttachPolicy(ctx context.Context, roleName, policyARN string) error {
	return c.call(ctx, http.MethodPut, c.policyPath(roleName, policyARN), nil, nil)
}

func (c *Client) DetachPolicy(ctx context.Context, roleName, policyARN string) error {
	return c.call(ctx, http.MethodDelete, c.policyPath(roleName, policyARN), nil, nil)
}

func (c *Client) DeleteRole(ctx context.Context, roleName string) error {
	return c.call(ctx, http.MethodDelete, c.rolePath(roleName), nil, nil)
}

func (c *Client) rolePath(roleName string) string {
	return "/v1/roles/" + url.PathEscape(roleName)
}

func (c *Client) policyPath(roleName, policyARN string) string {
	return c.rolePath(roleName) + "/policies/" + url.PathEscape(policyARN)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("iam remote: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("iam remote: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("iam remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("iam remote: decode response: %w", err)
		}
	}
	return nil
}

func mapStatusError(resp *http.Response) error {
	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", iam.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", iam.ErrAlreadyExists, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", iam.ErrAccessDenied, msg)
	default:
		return fmt.Errorf("iam remote: service returned %d: %s", resp.StatusCode, msg)
	}
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4<<10))
	if err != nil || len(data) == 0 {
		return "no detail"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
