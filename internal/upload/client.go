package upload

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
)

// DefaultBaseURL is the Final Surge API root.
const DefaultBaseURL = "https://beta.finalsurge.com/api"

// Client talks to the Final Surge calendar and workout-builder API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration

	token   string
	userKey string
}

var _ Destination = (*Client)(nil)

// NewClient creates a Final Surge client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retryDelay: time.Second,
	}
}

type loginResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Token   string `json:"token"`
		UserKey string `json:"user_key"`
	} `json:"data"`
}

// Login authenticates and stores the bearer token and user key.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{
		"email":                  email,
		"password":               password,
		"deviceManufacturer":     "",
		"deviceModel":            "Netscape",
		"deviceOperatingSystem":  "Win32",
		"deviceUniqueIdentifier": "",
	}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &resp); err != nil {
		return fmt.Errorf("logging in to final surge: %w", err)
	}
	if !resp.Success || resp.Data.Token == "" {
		return fmt.Errorf("logging in to final surge: rejected for %s", email)
	}
	c.token = resp.Data.Token
	c.userKey = resp.Data.UserKey
	return nil
}

type workoutListResponse struct {
	Data []struct {
		Key               string  `json:"key"`
		Description       *string `json:"description"`
		WorkoutCompletion int     `json:"workout_completion"`
	} `json:"data"`
}

// ExistingWorkout returns the key of an uncompleted workout on date that
// this tool created earlier.
func (c *Client) ExistingWorkout(ctx context.Context, date time.Time) (string, bool, error) {
	day := date.Format("2006-01-02")
	params := url.Values{
		"scope":         {"USER"},
		"scopekey":      {c.userKey},
		"startdate":     {day},
		"enddate":       {day},
		"ishistory":     {"false"},
		"completedonly": {"false"},
	}
	var resp workoutListResponse
	if err := c.do(ctx, http.MethodGet, "/WorkoutList", params, nil, &resp); err != nil {
		return "", false, fmt.Errorf("listing workouts on %s: %w", day, err)
	}
	for _, w := range resp.Data {
		if w.WorkoutCompletion == 1 || w.Description == nil {
			continue
		}
		if strings.Contains(*w.Description, SyncMarker) {
			return w.Key, true, nil
		}
	}
	return "", false, nil
}

// SaveWorkout creates or updates a calendar entry and returns its key.
func (c *Client) SaveWorkout(ctx context.Context, save WorkoutSave) (string, error) {
	params := url.Values{"scope": {"USER"}, "scope_key": {c.userKey}}
	var resp struct {
		NewWorkoutKey string `json:"new_workout_key"`
	}
	if err := c.do(ctx, http.MethodPost, "/WorkoutSave", params, save, &resp); err != nil {
		return "", fmt.Errorf("saving workout %q: %w", save.Name, err)
	}
	if save.Key != nil {
		return *save.Key, nil
	}
	if resp.NewWorkoutKey == "" {
		return "", fmt.Errorf("saving workout %q: no key returned", save.Name)
	}
	return resp.NewWorkoutKey, nil
}

// SaveBuilder stores the structured steps of the workout with key.
func (c *Client) SaveBuilder(ctx context.Context, key string, req BuilderRequest) error {
	params := url.Values{"scope": {"USER"}, "scopekey": {c.userKey}, "workout_key": {key}}
	if err := c.do(ctx, http.MethodPost, "/WorkoutBuilderSave", params, req, nil); err != nil {
		return fmt.Errorf("saving steps for %s: %w", key, err)
	}
	return nil
}

// DeleteWorkout removes the workout with key.
func (c *Client) DeleteWorkout(ctx context.Context, key string) error {
	params := url.Values{"scope": {"USER"}, "scopekey": {c.userKey}, "workout_key": {key}}
	if err := c.do(ctx, http.MethodGet, "/WorkoutDelete", params, nil, nil); err != nil {
		return fmt.Errorf("deleting workout %s: %w", key, err)
	}
	return nil
}

// do sends one request, retrying up to 3 times with exponential backoff on
// transport errors and 5xx responses, and decodes the JSON reply into out.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay << uint(attempt-1)):
			}
		}

		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, respBody)
			continue
		case resp.StatusCode >= 300:
			return fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, respBody)
		}
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("after 3 attempts: %w", lastErr)
}
