// Package apiclient provides a client for the DittoVFS REST API.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LockTokenHeader carries the lock token of mutating requests.
const LockTokenHeader = "X-Lock-Token"

// Client is the DittoVFS API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken returns a new client with the given token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		token:      token,
	}
}

// SetToken sets the authentication token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetHTTPClient replaces the underlying HTTP client, e.g. to lift the
// timeout for large transfers.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// request describes one API call.
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	lockToken   string
}

// send performs the request and returns the response when its status is
// below 400. The caller closes the body.
func (c *Client) send(r request) (*http.Response, error) {
	req, err := http.NewRequest(r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.lockToken != "" {
		req.Header.Set(LockTokenHeader, r.lockToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// do performs a JSON request and decodes the response into result.
func (c *Client) do(method, path string, body, result any) error {
	r := request{method: method, path: path}
	if body != nil {
		data, err := marshalBody(body)
		if err != nil {
			return err
		}
		r.body = data
		r.contentType = "application/json"
	}
	_, err := c.doRequest(r, result)
	return err
}

func marshalBody(body any) (io.Reader, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(data), nil
}

// doRequest sends r, decodes a JSON response into result and returns the
// response status.
func (c *Client) doRequest(r request, result any) (int, error) {
	resp, err := c.send(r)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
