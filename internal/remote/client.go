// Package remote is the HTTP client for the file service that owns the
// original images. It lists folders, resolves fetchable URLs, uploads
// thumbnails and checks for existence.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"thumbsync/internal/metrics"
)

// ErrEndpointNotConfigured is returned by every call when no base URL is set.
var ErrEndpointNotConfigured = errors.New("remote file service endpoint not configured")

const (
	listPath      = "/api/files/list"
	downloadPath  = "/api/files/download"
	signedURLPath = "/api/files/signed-url"
	uploadPath    = "/api/files/upload"
	existsPath    = "/api/files/exists"
)

// Folder is a subfolder entry in a listing.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// File is a file entry in a listing. Modified is passed through verbatim.
type File struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// Listing is the content of one folder.
type Listing struct {
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
	// Protected makes ResolveURL request a signed URL.
	Protected bool
	// APIKey, when set, is sent as a bearer token.
	APIKey    string
	UserAgent string
}

// Client talks to the remote file service.
type Client struct {
	baseURL    string
	protected  bool
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

// New creates a client. A client with an empty BaseURL is valid but every
// call returns ErrEndpointNotConfigured.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "thumbsync"
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		protected: cfg.Protected,
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	if c.baseURL == "" {
		return "", ErrEndpointNotConfigured
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// errorBody is the service's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// doJSON sends req and decodes a JSON response into out. Non-2xx
// responses and bodies carrying an "error" field become errors.
func (c *Client) doJSON(req *http.Request, name string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("%s request: %w", name, err)
	}
	defer resp.Body.Close()

	metrics.RemoteRequestsTotal.WithLabelValues(name, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%s read body: %w", name, err)
	}

	var envelope errorBody
	_ = json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if envelope.Error != "" {
			return fmt.Errorf("%s: server returned %d: %s", name, resp.StatusCode, envelope.Error)
		}
		return fmt.Errorf("%s: server returned %d", name, resp.StatusCode)
	}
	if envelope.Error != "" {
		return fmt.Errorf("%s: %s", name, envelope.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode: %w", name, err)
	}
	return nil
}

// List returns the folders and files directly inside path. An empty path
// lists the root.
func (c *Client) List(ctx context.Context, path string) (*Listing, error) {
	u, err := c.endpoint(listPath, url.Values{"path": {path}})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var listing Listing
	if err := c.doJSON(req, "list", &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ResolveURL returns a URL the original at path can be fetched from. In
// protected mode it asks the service for a signed, time-limited URL.
func (c *Client) ResolveURL(ctx context.Context, path string) (string, error) {
	if !c.protected {
		return c.endpoint(downloadPath, url.Values{"path": {path}})
	}

	u, err := c.endpoint(signedURLPath, url.Values{"path": {path}})
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(req, "signed_url", &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("signed_url: empty url for %s", path)
	}
	if strings.HasPrefix(out.URL, "/") {
		return c.baseURL + out.URL, nil
	}
	return out.URL, nil
}

// Upload stores data at path on the service and returns its URL.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	u, err := c.endpoint(uploadPath, nil)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("path", path); err != nil {
		return "", fmt.Errorf("upload form: %w", err)
	}
	part, err := mw.CreatePart(fileHeader(path, contentType))
	if err != nil {
		return "", fmt.Errorf("upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, u, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(req, "upload", &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Exists reports whether a file is stored at path.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	u, err := c.endpoint(existsPath, url.Values{"path": {path}})
	if err != nil {
		return false, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.doJSON(req, "exists", &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func fileHeader(path, contentType string) textproto.MIMEHeader {
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, name)},
		"Content-Type":        {contentType},
	}
}
