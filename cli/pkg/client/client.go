// Package client talks to a streamd server. Uploads and downloads of known
// size go through fixed-length streams, so a body that ends early or runs
// long fails instead of being silently truncated.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/net/http2"

	"worker/cli/pkg/config"
	coreconfig "worker/core/config"
	"worker/core/errs"
	"worker/core/streaming"
)

// Client is a streamd HTTP client.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	chunkSize  int
}

// APIError is an error response returned by the server.
type APIError struct {
	Status  int    `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Kind, e.Message)
}

// PutResult is the server's answer to an upload.
type PutResult struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// New creates a client for cfg.
func New(cfg *config.Config) (*Client, error) {
	base, err := coreconfig.ValidateURL(cfg.Server.URL)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Server.Timeout}
	if cfg.Server.H2C {
		httpClient.Transport = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	}

	return &Client{baseURL: base, httpClient: httpClient, chunkSize: cfg.Stream.ChunkSize}, nil
}

// NewWithHTTPClient creates a client with a caller-supplied HTTP client.
func NewWithHTTPClient(cfg *config.Config, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	c.httpClient = httpClient
	return c, nil
}

// Put uploads size bytes from r under key.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*PutResult, error) {
	resp, err := c.send(ctx, http.MethodPut, c.keyPath(key), r, size, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result PutResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.FromJSON(err)
	}
	return &result, nil
}

// Get downloads the value stored under key into w and returns the number of
// bytes written.
func (c *Client) Get(ctx context.Context, key string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, c.keyPath(key), nil, 0, "")
	if err != nil {
		return 0, err
	}
	return c.copyBody(ctx, w, resp)
}

// GetJSON fetches the compact JSON rendering of key and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, key string, out any) error {
	resp, err := c.send(ctx, http.MethodGet, c.keyPath(key)+"/json", nil, 0, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.FromJSON(err)
	}
	return nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.send(ctx, http.MethodDelete, c.keyPath(key), nil, 0, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// List returns stored keys with the given prefix.
func (c *Client) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	q := url.Values{}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/kv"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil, 0, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.FromJSON(err)
	}
	return body.Keys, nil
}

// Echo sends size bytes from r to the echo route and copies the reply to w.
// A negative size sends the body chunked.
func (c *Client) Echo(ctx context.Context, r io.Reader, size int64, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodPost, "/v1/echo", r, size, "application/octet-stream")
	if err != nil {
		return 0, err
	}
	return c.copyBody(ctx, w, resp)
}

// send issues a request and returns the response for 2xx statuses. A body
// with a non-negative size is wrapped in a fixed-length stream of that size.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, size int64, contentType string) (*http.Response, error) {
	target, err := c.baseURL.Parse(path)
	if err != nil {
		return nil, errs.FromURL(err)
	}

	var reqBody io.Reader
	switch {
	case body == nil:
	case size == 0:
		reqBody = http.NoBody
	default:
		seq := streaming.FromReader(body, c.chunkSize)
		if size > 0 {
			seq = streaming.NewFixedLengthStream(seq, uint64(size))
		}
		reqBody = streaming.NewReader(ctx, seq)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil && size != 0 {
		req.ContentLength = max(size, -1)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// copyBody writes the response body to w. Bodies with a declared length are
// checked against it.
func (c *Client) copyBody(ctx context.Context, w io.Writer, resp *http.Response) (int64, error) {
	defer resp.Body.Close()

	seq := streaming.FromReader(resp.Body, c.chunkSize)
	if resp.ContentLength >= 0 {
		seq = streaming.NewFixedLengthStream(seq, uint64(resp.ContentLength))
	}

	var written int64
	for chunk, err := range streaming.All(ctx, seq) {
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *Client) keyPath(key string) string {
	return "/v1/kv/" + url.PathEscape(key)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Kind: "unknown"}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
