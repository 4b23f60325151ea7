// Package httpclient provides a pooled, retrying HTTP client used by the optional
// remote model-selection client, adapted from the proxy's api_client.go. The provider
// gateways do not use it; they talk to their providers through the vendor SDKs.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/bytebufferpool"
)

// Client is an HTTP client with a pooled transport and built-in retry/backoff.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string
}

// RequestOptions customizes a single call.
type RequestOptions struct {
	Headers      map[string]string
	QueryParams  map[string]string
	Timeout      time.Duration
	Context      context.Context
	ResponseType string // "json", "text", "binary"
	Retries      int
	RetryDelay   time.Duration
}

// Config tunes the pooled transport.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns pooling defaults suitable for high-throughput provider calls.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:             baseURL,
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// New creates a Client with default pooling for baseURL.
func New(baseURL string) *Client {
	return NewWithConfig(DefaultConfig(baseURL))
}

// NewWithConfig creates a Client from an explicit Config.
func NewWithConfig(config *Config) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		BaseURL: config.BaseURL,
		HTTPClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "adaptive-mcp/1.0",
		},
	}
}

func (c *Client) Get(path string, result any, opts *RequestOptions) error {
	return c.doRequest(http.MethodGet, path, nil, result, opts)
}

func (c *Client) Post(path string, body, result any, opts *RequestOptions) error {
	return c.doRequest(http.MethodPost, path, body, result, opts)
}

func (c *Client) doRequest(method, path string, body, result any, opts *RequestOptions) error {
	url := c.BaseURL + path

	if opts == nil {
		opts = &RequestOptions{}
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * opts.RetryDelay)
		}

		err := c.executeRequest(method, url, body, result, opts)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", opts.Retries+1, lastErr)
}

func (c *Client) executeRequest(method, url string, body, result any, opts *RequestOptions) error {
	ctx := context.Background()
	if opts.Context != nil {
		ctx = opts.Context
	} else if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var reqBody io.Reader
	var bodySize int64
	if body != nil {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(buf.Bytes())
		bodySize = int64(buf.Len())
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if bodySize > 0 {
		req.ContentLength = bodySize
	}

	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if len(opts.QueryParams) > 0 {
		q := req.URL.Query()
		for k, v := range opts.QueryParams {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fiberlog.Errorf("error closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return c.handleResponse(resp, result, opts)
}

func (c *Client) handleResponse(resp *http.Response, result any, opts *RequestOptions) error {
	responseType := "json"
	if opts.ResponseType != "" {
		responseType = opts.ResponseType
	}

	switch responseType {
	case "json":
		if result == nil {
			_, err := io.Copy(io.Discard, resp.Body)
			return err
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error reading response body: %w", err)
		}
		return json.Unmarshal(bodyBytes, result)
	case "text":
		stringResult, ok := result.(*string)
		if !ok {
			return fmt.Errorf("result must be *string for text response")
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*stringResult = string(bodyBytes)
		return nil
	default:
		return fmt.Errorf("unsupported response type: %s", responseType)
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	if transport, ok := c.HTTPClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
