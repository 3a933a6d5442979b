// SPDX-License-Identifier: MPL-2.0

package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the OSSRH staging service.
	DefaultBaseURL = "https://s01.oss.sonatype.org/service/local"

	// DefaultConnectTimeout bounds TCP connection setup.
	DefaultConnectTimeout = time.Minute

	// DefaultClientTimeout bounds a full request including the upload body.
	DefaultClientTimeout = 10 * time.Minute

	// maxJSONResponseBytes is the upper bound on JSON API response size.
	maxJSONResponseBytes = 10 << 20

	// maxErrorBodyBytes caps the response body kept in a ResponseError.
	maxErrorBodyBytes = 8 << 10
)

// ErrRepositoryNotFound is returned by Repository when the service answers
// 404, which also happens after a promoted repository was auto-dropped.
var ErrRepositoryNotFound = errors.New("staging repository not found")

type (
	// RepositoryType is the lifecycle type reported by the service.
	RepositoryType string

	// Repository is the state of a staging repository.
	Repository struct {
		ID            string         `json:"repositoryId"`
		ProfileID     string         `json:"profileId"`
		Type          RepositoryType `json:"type"`
		Transitioning bool           `json:"transitioning"`
		// Notifications counts validation rule failures on the last close.
		Notifications int    `json:"notifications"`
		Description   string `json:"description"`
	}

	// ResponseError is returned for any non-2xx response.
	ResponseError struct {
		Method string
		URL    string
		Status int
		Body   string
	}

	// Client talks to one Nexus staging service.
	Client struct {
		httpClient *http.Client
		baseURL    string
		username   string
		password   string
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)

	dataEnvelope[T any] struct {
		Data T `json:"data"`
	}

	startRequest struct {
		Description string `json:"description"`
	}

	startResponse struct {
		StagedRepositoryID string `json:"stagedRepositoryId"`
	}

	bulkRequest struct {
		StagedRepositoryIDs  []string `json:"stagedRepositoryIds"`
		Description          string   `json:"description"`
		AutoDropAfterRelease bool     `json:"autoDropAfterRelease"`
	}
)

// Repository types.
const (
	TypeOpen     RepositoryType = "open"
	TypeClosed   RepositoryType = "closed"
	TypeReleased RepositoryType = "released"
)

// Error implements error.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// WithHTTPClient sets a custom HTTP client, replacing the default timeouts.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(n *Client) { n.httpClient = c }
}

// WithBaseURL overrides the service base URL.
func WithBaseURL(base string) ClientOption {
	return func(n *Client) { n.baseURL = strings.TrimRight(base, "/") }
}

// WithCredentials sets basic auth credentials sent with every request.
func WithCredentials(username, password string) ClientOption {
	return func(n *Client) {
		n.username = username
		n.password = password
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(n *Client) { n.userAgent = ua }
}

// NewHTTPClient returns an http.Client with the given connect and overall
// request timeouts.
func NewHTTPClient(connectTimeout, clientTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport.
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	return &http.Client{Transport: transport, Timeout: clientTimeout}
}

// NewClient creates a Client with the default base URL and timeouts.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: NewHTTPClient(DefaultConnectTimeout, DefaultClientTimeout),
		baseURL:    DefaultBaseURL,
		userAgent:  "natrelease/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens a new staging repository for profileID and returns its id.
func (c *Client) Start(ctx context.Context, profileID, description string) (string, error) {
	reqURL := fmt.Sprintf("%s/staging/profiles/%s/start", c.baseURL, url.PathEscape(profileID))
	var out dataEnvelope[startResponse]
	if err := c.doJSON(ctx, http.MethodPost, reqURL, dataEnvelope[startRequest]{Data: startRequest{Description: description}}, &out); err != nil {
		return "", fmt.Errorf("starting staging repository: %w", err)
	}
	if out.Data.StagedRepositoryID == "" {
		return "", fmt.Errorf("starting staging repository: response has no stagedRepositoryId")
	}
	return out.Data.StagedRepositoryID, nil
}

// Upload deploys body to relPath inside the staging repository.
func (c *Client) Upload(ctx context.Context, repositoryID, relPath string, body io.Reader, size int64) error {
	reqURL := fmt.Sprintf("%s/staging/deployByRepositoryId/%s/%s", c.baseURL, url.PathEscape(repositoryID), escapePath(relPath))

	req, err := c.newRequest(ctx, http.MethodPut, reqURL, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", relPath, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxJSONResponseBytes)) //nolint:errcheck // Drain only.
	return nil
}

// Close requests validation and closing of the staging repository.
func (c *Client) Close(ctx context.Context, repositoryID, description string) error {
	return c.bulk(ctx, "close", repositoryID, description)
}

// Promote requests release of a closed staging repository. The repository is
// dropped automatically once released.
func (c *Client) Promote(ctx context.Context, repositoryID, description string) error {
	return c.bulk(ctx, "promote", repositoryID, description)
}

func (c *Client) bulk(ctx context.Context, action, repositoryID, description string) error {
	reqURL := fmt.Sprintf("%s/staging/bulk/%s", c.baseURL, action)
	body := dataEnvelope[bulkRequest]{Data: bulkRequest{
		StagedRepositoryIDs:  []string{repositoryID},
		Description:          description,
		AutoDropAfterRelease: true,
	}}
	if err := c.doJSON(ctx, http.MethodPost, reqURL, body, nil); err != nil {
		return fmt.Errorf("%s %s: %w", action, repositoryID, err)
	}
	return nil
}

// Repository fetches the current state of a staging repository.
func (c *Client) Repository(ctx context.Context, repositoryID string) (Repository, error) {
	reqURL := fmt.Sprintf("%s/staging/repository/%s", c.baseURL, url.PathEscape(repositoryID))

	var repo Repository
	err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &repo)
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Status == http.StatusNotFound {
		return Repository{}, ErrRepositoryNotFound
	}
	if err != nil {
		return Repository{}, fmt.Errorf("getting repository %s: %w", repositoryID, err)
	}
	return repo, nil
}

// doJSON sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, reqURL string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// newRequest creates a request with the common headers and credentials.
func (c *Client) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)) //nolint:errcheck // Best-effort error detail.
	return &ResponseError{
		Method: resp.Request.Method,
		URL:    redactURL(resp.Request.URL),
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(data)),
	}
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// redactURL strips user info, query and fragment for safe inclusion in errors.
func redactURL(u *url.URL) string {
	clean := *u
	clean.User = nil
	clean.RawQuery = ""
	clean.Fragment = ""
	return clean.String()
}
