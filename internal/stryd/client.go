package stryd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production Stryd API host.
const DefaultBaseURL = "https://www.stryd.com"

const predictionPath = "/b/api/v1/users/race/prediction"

// predictionParams are the fixed course conditions every prediction is asked
// for: a flat road mile at mild temperature.
var predictionParams = map[string]string{
	"course_id":            "0",
	"race_distance":        "1609.34",
	"surface":              "road",
	"training_elevation":   "288",
	"race_elevation":       "288",
	"training_temperature": "22",
	"race_temperature":     "22",
	"training_humidity":    "0.5",
	"race_humidity":        "0.5",
	"target_time":          "330",
	"depth":                "complete",
}

// PredictionServiceError reports a failed Stryd lookup. StatusCode is 0 when
// the request never got a response.
type PredictionServiceError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *PredictionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stryd: %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("stryd: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *PredictionServiceError) Unwrap() error {
	return e.Err
}

// Client talks to the Stryd web API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	userID     string
}

// Compile-time check: Client satisfies Service.
var _ Service = (*Client)(nil)

// NewClient creates a Stryd client targeting baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type signinResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

// Login signs in and stores the bearer token for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("marshaling signin: %w", err)
	}

	_, body, err := c.do(ctx, http.MethodPost, "/b/email/signin", nil, payload)
	if err != nil {
		return err
	}

	var resp signinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("stryd: decode signin: %w", err)
	}
	if resp.Token == "" {
		return errors.New("stryd: signin returned no token")
	}
	c.token = resp.Token
	c.userID = resp.ID
	return nil
}

// do returns the status and body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload []byte) (int, []byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("stryd: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		// Stryd expects the colon after Bearer.
		req.Header.Set("Authorization", "Bearer: "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &PredictionServiceError{Endpoint: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &PredictionServiceError{Endpoint: path, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &PredictionServiceError{Endpoint: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.StatusCode, body, nil
}

// decode unmarshals a 2xx body into v. Undecodable bodies are reported as
// PredictionServiceError so callers classify them with service failures.
func decode(path string, status int, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &PredictionServiceError{Endpoint: path, StatusCode: status, Body: string(body), Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// missing reports a 2xx reply that lacks field.
func missing(path string, status int, body []byte, field string) error {
	return &PredictionServiceError{Endpoint: path, StatusCode: status, Body: string(body), Err: fmt.Errorf("response has no %s", field)}
}

func prediction(overrides map[string]string) url.Values {
	v := url.Values{}
	for k, val := range predictionParams {
		v.Set(k, val)
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

type predictionResponse struct {
	PowerRange *struct {
		Target *float64 `json:"target"`
	} `json:"power_range"`
	PowerRangeSuggested *struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"power_range_suggested"`
}

// PowerForTime returns the predicted power for running one mile in seconds.
func (c *Client) PowerForTime(ctx context.Context, seconds int) (float64, error) {
	status, body, err := c.do(ctx, http.MethodGet, predictionPath, prediction(map[string]string{
		"target_time": strconv.Itoa(seconds),
	}), nil)
	if err != nil {
		return 0, err
	}

	var resp predictionResponse
	if err := decode(predictionPath, status, body, &resp); err != nil {
		return 0, err
	}
	if resp.PowerRange == nil || resp.PowerRange.Target == nil {
		return 0, missing(predictionPath, status, body, "power_range.target")
	}
	return *resp.PowerRange.Target, nil
}

// SuggestedRangeForDistance returns Stryd's suggested race power range for a
// race of the given distance.
func (c *Client) SuggestedRangeForDistance(ctx context.Context, meters float64) (float64, float64, error) {
	status, body, err := c.do(ctx, http.MethodGet, predictionPath, prediction(map[string]string{
		"race_distance": strconv.FormatFloat(meters, 'f', 2, 64),
	}), nil)
	if err != nil {
		return 0, 0, err
	}

	var resp predictionResponse
	if err := decode(predictionPath, status, body, &resp); err != nil {
		return 0, 0, err
	}
	s := resp.PowerRangeSuggested
	if s == nil || s.Min == nil || s.Max == nil {
		return 0, 0, missing(predictionPath, status, body, "power_range_suggested")
	}
	return *s.Min, *s.Max, nil
}

// PowerCurve returns the athlete's best power per elapsed second over the
// window, index i holding the power sustained for i+1 seconds.
func (c *Client) PowerCurve(ctx context.Context, start, end time.Time) ([]float64, error) {
	params := url.Values{}
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))

	path := "/b/api/v1/users/" + url.PathEscape(c.userID) + "/power-duration"
	status, body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		PowerList []float64 `json:"power_list"`
	}
	if err := decode(path, status, body, &resp); err != nil {
		return nil, err
	}
	if resp.PowerList == nil {
		return nil, missing(path, status, body, "power_list")
	}
	return resp.PowerList, nil
}

// CriticalPower returns the athlete's current critical power.
func (c *Client) CriticalPower(ctx context.Context) (float64, error) {
	path := "/b/api/v1/users/" + url.PathEscape(c.userID) + "/critical-power"
	status, body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		CriticalPower *float64 `json:"critical_power"`
	}
	if err := decode(path, status, body, &resp); err != nil {
		return 0, err
	}
	if resp.CriticalPower == nil {
		return 0, missing(path, status, body, "critical_power")
	}
	return *resp.CriticalPower, nil
}
