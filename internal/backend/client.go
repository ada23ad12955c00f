// Package backend provides the HTTP client for the accio video backend.
package backend

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

	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
)

const (
	defaultTimeout = 30 * time.Second

	// Fallback messages when a rejection carries no detail.
	parseRejected    = "Failed to parse video."
	downloadRejected = "Failed to start download task"
)

// Config holds the configuration for a backend client.
type Config struct {
	// APIURL is the API root, e.g. http://localhost:8000/api/v1.
	APIURL string
	// StaticURL is the root that task local_url paths resolve against.
	StaticURL string
	Timeout   time.Duration
}

// Client talks to the accio backend over its JSON API.
type Client struct {
	apiURL     string
	staticURL  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new backend client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		staticURL: strings.TrimRight(cfg.StaticURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "backend").Logger(),
	}
}

// Parse asks the backend to extract metadata for rawURL.
func (c *Client) Parse(ctx context.Context, rawURL string) (*types.VideoInfo, error) {
	const op = "parse"

	resp, err := c.postJSON(ctx, "/video/parse", types.ParseRequest{URL: rawURL})
	if err != nil {
		return nil, &types.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejection(op, resp, parseRejected)
	}

	var info types.VideoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &types.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if info.Formats == nil {
		info.Formats = []types.Format{}
	}
	info.OriginURL = rawURL

	c.logger.Debug().
		Str("url", rawURL).
		Str("title", info.Title).
		Int("formats", len(info.Formats)).
		Msg("Parsed video")

	return &info, nil
}

// Download queues a new backend task and returns its identifier.
func (c *Client) Download(ctx context.Context, rawURL, formatID string) (string, error) {
	const op = "download"

	if formatID == "" {
		formatID = types.DefaultFormatID
	}

	resp, err := c.postJSON(ctx, "/video/download", types.DownloadRequest{URL: rawURL, FormatID: formatID})
	if err != nil {
		return "", &types.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", rejection(op, resp, downloadRejected)
	}

	var result types.DownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &types.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.TaskID == "" {
		return "", &types.RemoteRejectionError{Op: op, StatusCode: resp.StatusCode, Detail: "backend returned no task id"}
	}

	c.logger.Info().
		Str("url", rawURL).
		Str("formatId", formatID).
		Str("taskId", result.TaskID).
		Msg("Queued download")

	return result.TaskID, nil
}

// ListTasks fetches the backend's ordered task list. Every failure is a *types.PollFailure.
func (c *Client) ListTasks(ctx context.Context) ([]types.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/video/tasks", http.NoBody)
	if err != nil {
		return nil, &types.PollFailure{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.PollFailure{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &types.PollFailure{StatusCode: resp.StatusCode}
	}

	var tasks []types.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, &types.PollFailure{Err: fmt.Errorf("decode tasks: %w", err)}
	}
	if tasks == nil {
		tasks = []types.Task{}
	}

	return tasks, nil
}

// CookieStatus fetches the per-provider cookie availability snapshot.
func (c *Client) CookieStatus(ctx context.Context) (types.CookieStatus, error) {
	const op = "cookie status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/video/cookies/status", http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejection(op, resp, "")
	}

	status := types.CookieStatus{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode cookie status: %w", err)
	}

	return status, nil
}

// ArtifactURL resolves a task's local_url against the static-file root.
func (c *Client) ArtifactURL(localURL string) string {
	return ResolveArtifactURL(c.staticURL, localURL)
}

// StaticURL returns the static-file root.
func (c *Client) StaticURL() string {
	return c.staticURL
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// rejection builds a RemoteRejectionError from a non-200 response.
func rejection(op string, resp *http.Response, fallback string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	detail := fallback
	var payload types.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	}

	return &types.RemoteRejectionError{Op: op, StatusCode: resp.StatusCode, Detail: detail}
}

// ResolveArtifactURL joins an opaque local_url onto the static root.
// Absolute URLs are returned unchanged; an empty localURL yields "".
func ResolveArtifactURL(staticRoot, localURL string) string {
	if localURL == "" {
		return ""
	}

	if u, err := url.Parse(localURL); err == nil && u.IsAbs() {
		return localURL
	}

	root := strings.TrimRight(staticRoot, "/")
	if root == "" {
		return localURL
	}
	return root + "/" + strings.TrimLeft(localURL, "/")
}
