package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"corrode-course/internal/domain"
	httpapi "corrode-course/internal/transport/http"
)

const (
	DefaultServerURL = "https://course.corrode.dev"
	EnvServerURL     = "CORRODE_SERVER_URL"
	defaultTimeout   = 30 * time.Second
)

// ServerURL returns the server base URL, honouring CORRODE_SERVER_URL.
func ServerURL() string {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		return strings.TrimRight(v, "/")
	}
	return DefaultServerURL
}

// Client talks to the course server's JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DashboardURL is the browser page for token.
func (c *Client) DashboardURL(token domain.Token) string {
	return c.baseURL + "/dashboard/" + url.PathEscape(token.String())
}

// Register creates a participant and returns its token.
func (c *Client) Register(ctx context.Context, name domain.Name) (domain.Token, error) {
	resp, err := c.post(ctx, "/api/register", httpapi.RegisterRequest{Name: name.String()})
	if err != nil {
		return domain.Token{}, &NetworkError{Op: OpRegister, ServerURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.Token{}, newStatusError(OpRegister, resp)
	}
	var body httpapi.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Token{}, fmt.Errorf("decode registration response: %w", err)
	}
	return domain.NewToken(body.ULID), nil
}

// Submit uploads one exercise result.
func (c *Client) Submit(ctx context.Context, req httpapi.SubmitRequest) error {
	resp, err := c.post(ctx, "/api/submit", req)
	if err != nil {
		return &NetworkError{Op: OpSubmit, ServerURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newStatusError(OpSubmit, resp)
	}
	return nil
}

// Progress fetches the participant's status view.
func (c *Client) Progress(ctx context.Context, token domain.Token) (httpapi.ProgressResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status/"+url.PathEscape(token.String()), nil)
	if err != nil {
		return httpapi.ProgressResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return httpapi.ProgressResponse{}, &NetworkError{Op: OpStatus, ServerURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpapi.ProgressResponse{}, newStatusError(OpStatus, resp)
	}
	var progress httpapi.ProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		return httpapi.ProgressResponse{}, fmt.Errorf("decode progress: %w", err)
	}
	return progress, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}
