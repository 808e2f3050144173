// Package api is a typed client for the polyclinic backend.
//
// Authentication is attached per request by BearerTransport from a
// CredentialSource; the client itself holds no credential.
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

	"github.com/google/uuid"
	"github.com/mehmetcc/polyconsole/internal/httpx"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBody        = 4 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Device  httpx.DeviceMeta
	// Transport is the underlying round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
	// OnUnauthorized is forwarded to BearerTransport.
	OnUnauthorized func(credential string)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

func New(cfg Config, source CredentialSource, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &BearerTransport{
				Base:           cfg.Transport,
				Source:         source,
				Device:         cfg.Device,
				OnUnauthorized: cfg.OnUnauthorized,
			},
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(httpx.HeaderRequestID, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRemoteError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func fetch[T any](ctx context.Context, c *Client, method, path string, in any) (T, error) {
	var out T
	err := c.do(ctx, method, path, in, &out)
	return out, err
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token. It never carries the current
// session's credential.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	res, err := fetch[loginResponse](withoutCredential(ctx), c, http.MethodPost, "/login",
		loginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(res.Token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
