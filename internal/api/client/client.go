package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
	"github.com/GriffinCanCode/chanbridge/internal/providers/terminal"
)

var (
	// ErrNotFound matches any 404 from the admin API.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable matches 503 responses.
	ErrUnavailable = errors.New("unavailable")
)

// APIError is a non-2xx admin API response.
type APIError struct {
	Status    int
	Message   string `json:"error"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("admin api: %d %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("admin api: %d %s", e.Status, e.Message)
}

// Unwrap maps status codes onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return nil
}

// Health is the /health response.
type Health struct {
	Status          string `json:"status"`
	Channels        int    `json:"channels"`
	OpenChannels    int    `json:"open_channels"`
	Devices         int    `json:"devices"`
	AttachedDevices int    `json:"attached_devices"`
}

// Client talks to a running bridge's admin API.
type Client struct {
	resty *resty.Client
}

// New creates a client for baseURL (for example http://127.0.0.1:8090).
// Connection errors and 429s are retried.
func New(baseURL string, timeout time.Duration) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil

	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "chanbridge-cli/1.0").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})
	r.SetTransport(retryClient.HTTPClient.Transport)

	return &Client{resty: r}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	apiErr := &APIError{}
	resp, err := c.resty.R().
		SetContext(ctx).
		SetResult(out).
		SetError(apiErr).
		Get(path)
	return check(resp, err, apiErr)
}

func check(resp *resty.Response, err error, apiErr *APIError) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}

// Health fetches /health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, "/health", &h)
	return h, err
}

// Channels fetches every channel's status.
func (c *Client) Channels(ctx context.Context) ([]bridge.ChannelStatus, error) {
	var body struct {
		Channels []bridge.ChannelStatus `json:"channels"`
	}
	if err := c.get(ctx, "/channels", &body); err != nil {
		return nil, err
	}
	return body.Channels, nil
}

// Channel fetches one channel's status.
func (c *Client) Channel(ctx context.Context, index int) (bridge.ChannelStatus, error) {
	var s bridge.ChannelStatus
	err := c.get(ctx, "/channels/"+strconv.Itoa(index), &s)
	return s, err
}

// Devices fetches the terminal devices.
func (c *Client) Devices(ctx context.Context) ([]terminal.DeviceInfo, error) {
	var body struct {
		Devices []terminal.DeviceInfo `json:"devices"`
	}
	if err := c.get(ctx, "/devices", &body); err != nil {
		return nil, err
	}
	return body.Devices, nil
}

// Unthrottle re-arms delivery on a channel.
func (c *Client) Unthrottle(ctx context.Context, index int) error {
	return c.post(ctx, "/channels/"+strconv.Itoa(index)+"/unthrottle")
}

// Attach reattaches a device after a hangup.
func (c *Client) Attach(ctx context.Context, index int) error {
	return c.post(ctx, "/devices/"+strconv.Itoa(index)+"/attach")
}

func (c *Client) post(ctx context.Context, path string) error {
	apiErr := &APIError{}
	resp, err := c.resty.R().
		SetContext(ctx).
		SetError(apiErr).
		Post(path)
	return check(resp, err, apiErr)
}
