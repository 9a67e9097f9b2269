// Package firebase mirrors readings and predictions into a Firebase
// Realtime Database through its REST API.
package firebase

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

	"weather_station/internal/models"
)

const (
	readingsPath    = "sensor_data"
	predictionsPath = "predictions"
	maxErrBody      = 512
)

type Config struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// Client posts records under <url>/<path>.json. Firebase assigns the push key.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "firebase" }

func (c *Client) PublishReading(ctx context.Context, r models.SensorReading) error {
	return c.push(ctx, readingsPath, r)
}

func (c *Client) PublishPrediction(ctx context.Context, p models.PredictionRecord) error {
	return c.push(ctx, predictionsPath, p)
}

// Ping reads the database root with shallow=true to check reachability
// and credentials.
func (c *Client) Ping(ctx context.Context) error {
	u, err := c.endpoint("", url.Values{"shallow": {"true"}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create firebase request: %w", err)
	}
	return c.do(req)
}

func (c *Client) push(ctx context.Context, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	u, err := c.endpoint(path, nil)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create firebase request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firebase %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("firebase %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) endpoint(path string, q url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + path + ".json")
	if err != nil {
		return "", fmt.Errorf("firebase url: %w", err)
	}
	if c.authToken != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("auth", c.authToken)
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
