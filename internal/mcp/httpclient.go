package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/trainaspower/internal/upload"
)

// HTTPClient implements DataSource by calling the trainaspower REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but the
// state database lives with the server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// get returns the body of a 200 response. A 404 maps to upload.ErrNotFound.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, upload.ErrNotFound
	}
	return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
}

func (c *HTTPClient) ListSynced(ctx context.Context, limit int) ([]upload.SyncedWorkout, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v1/workouts", params)
	if err != nil {
		return nil, err
	}

	var workouts []upload.SyncedWorkout
	if err := json.Unmarshal(body, &workouts); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return workouts, nil
}

func (c *HTTPClient) GetSynced(ctx context.Context, workoutID string) (*upload.SyncedWorkout, error) {
	body, err := c.get(ctx, "/api/v1/workouts/"+url.PathEscape(workoutID), nil)
	if err != nil {
		return nil, err
	}

	// The REST API inlines the stored document as JSON.
	var detail struct {
		upload.SyncedWorkout
		Document json.RawMessage `json:"document"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	w := detail.SyncedWorkout
	if len(detail.Document) > 0 && string(detail.Document) != "null" {
		w.DocumentJSON = string(detail.Document)
	}
	return &w, nil
}
