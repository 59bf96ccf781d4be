// Package trainasone fetches planned workouts from TrainAsOne.
package trainasone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the TrainAsOne site root.
const DefaultBaseURL = "https://beta.trainasone.com"

// Client is a cookie-authenticated TrainAsOne web session.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client for the site at baseURL.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
		},
	}, nil
}

// BaseURL returns the site root used to resolve relative links.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// Login posts the login form. The site answers a successful login with a
// redirect, so redirects are not followed.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return fmt.Errorf("logging in to trainasone: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return errors.New("logging in to trainasone: credentials rejected")
	}
	return nil
}

// Calendar returns the calendar page.
func (c *Client) Calendar(ctx context.Context) ([]byte, error) {
	return c.Page(ctx, c.resolve("/calendarView"))
}

// Page fetches an absolute or site-relative page.
func (c *Client) Page(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(pageURL), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.read(req)
}

// DownloadFIT downloads a planned workout as a FIT file with speed targets
// on every step.
func (c *Client) DownloadFIT(ctx context.Context, workoutID string, includeRunBack bool) ([]byte, error) {
	form := url.Values{
		"workoutId":             {workoutID},
		"temperature":           {""},
		"undulation":            {""},
		"sourceFormat":          {"FIT"},
		"includeRunBackStep":    {strconv.FormatBool(includeRunBack)},
		"_includeRunBackStep":   {"on"},
		"workoutStepEnd":        {"DURATION"},
		"workoutStepName":       {"STEP_NAME"},
		"workoutSlowStepTarget": {"SPEED"},
		"workoutEasyStepTarget": {"SPEED"},
		"workoutFastStepTarget": {"SPEED"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("/plannedWorkoutDownload"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.read(req)
}

func (c *Client) read(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("%s %s failed (status %d)", req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return c.baseURL.String() + ref
	}
	return c.baseURL.ResolveReference(u).String()
}
