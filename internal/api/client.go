// internal/api/client.go
//
// The single outbound HTTP client. Every request carries the current bearer
// token when one is available. A 401 gets exactly one token refresh and one
// replay; a failed refresh propagates the authentication error so the
// caller can start the login flow. Nothing else is ever retried.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TokenSource supplies bearer tokens. The session adapter satisfies it.
type TokenSource interface {
	// Token returns a currently valid access token.
	Token(ctx context.Context) (string, error)
	// Refresh forces a refresh and returns the new access token.
	Refresh(ctx context.Context) (string, error)
}

// Client talks to the backend gateway.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// NewClient builds a client for the given gateway base URL. tokens may be
// nil for unauthenticated use.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

// Get issues a GET and decodes the response into out when non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request body: %w", err)
		}
		payload = encoded
	}

	token := c.currentToken(ctx)
	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		refreshed, refreshErr := c.refreshToken(ctx)
		if refreshErr != nil {
			c.log.Warn().Str("method", method).Str("path", path).Msg("401 and token refresh failed")
			return c.errorFromResponse(resp)
		}
		drain(resp)
		c.log.Debug().Str("method", method).Str("path", path).Msg("retrying request after token refresh")
		resp, err = c.send(ctx, method, path, payload, refreshed)
		if err != nil {
			return err
		}
		// The replayed request is never retried again.
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}
	return decodeBody(resp, out)
}

// send performs a single HTTP exchange. Transport failures come back as
// network-kind errors.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("api request")
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("method", method).Str("path", path).Msg("api request failed")
		return nil, &Error{Kind: KindNetwork, err: err}
	}
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("api response")
	return resp, nil
}

// currentToken fetches a token when a source is wired; requests simply go
// out unauthenticated otherwise.
func (c *Client) currentToken(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("no token available for request")
		return ""
	}
	return token
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", fmt.Errorf("api: no token source")
	}
	return c.tokens.Refresh(ctx)
}

// errorFromResponse classifies a non-2xx response, pulling any message out
// of the backend's error envelope.
func (c *Client) errorFromResponse(resp *http.Response) error {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}

	return &Error{
		Kind:          classify(resp.StatusCode),
		Status:        resp.StatusCode,
		ServerMessage: message,
	}
}

func decodeBody(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
