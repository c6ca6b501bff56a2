package opecstatego

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to one opecstate service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption represents a functional option for configuring the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, option := range options {
		option(client)
	}
	return client
}

func (c *Client) GetBaseURL() string {
	return c.baseURL
}

// State mirrors the service's saved state.
type State struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
}

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ModelStatus struct {
	Table   string `json:"table"`
	Ensured bool   `json:"ensured"`
}

type Status struct {
	Target string        `json:"target"`
	Models []ModelStatus `json:"models"`
}

// do sends body as JSON and decodes a successful response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Type: ErrorTypeValidation, Message: "failed to encode request", Cause: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Type: ErrorTypeValidation, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return WrapHTTPError(resp, fmt.Sprintf("%s %s", method, path))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Type: ErrorTypeAPI, Message: "failed to decode response", StatusCode: resp.StatusCode, Cause: err}
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// -- States --

func (c *Client) CreateState(ctx context.Context, value string) (*State, error) {
	var st State
	if err := c.do(ctx, http.MethodPost, "/service/state", map[string]string{"value": value}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) GetState(ctx context.Context, id int64) (*State, error) {
	var st State
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/service/state/%d", id), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) ListStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.do(ctx, http.MethodGet, "/service/state", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// PutState stores value under id, replacing any previous value.
func (c *Client) PutState(ctx context.Context, id int64, value string) (*State, error) {
	var st State
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/service/state/%d", id), map[string]string{"value": value}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) DeleteState(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/service/state/%d", id), nil, nil)
}

// -- Users --

func (c *Client) CreateUser(ctx context.Context, name string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/service/user", map[string]string{"name": name}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/service/user/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
