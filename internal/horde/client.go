package horde

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// JobAPI defines the Horde generation endpoints the poll loop depends on.
// This interface is implemented by *Client and can be used for testing.
type JobAPI interface {
	Submit(ctx context.Context, req GenerationRequest) (SubmitResult, error)
	Check(ctx context.Context, id string) (*CheckResponse, error)
	Status(ctx context.Context, id string) (*StatusResponse, error)
	Cancel(ctx context.Context, id string) (*StatusResponse, error)
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}

// Ensure Client implements JobAPI at compile time.
var _ JobAPI = (*Client)(nil)

// Client talks to the Horde HTTP API.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	clientAgent string
}

const (
	DefaultBaseURL     = "https://dev.aihorde.net"
	DefaultClientAgent = "hordedream:1.0.0:(github)five82"
	requestTimeout     = 60 * time.Second
	maxErrorBody       = 64 << 10
)

// NewClient builds a Client for the Horde instance at baseURL.
func NewClient(baseURL string) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		clientAgent: DefaultClientAgent,
	}, nil
}

// BaseURL returns the normalized Horde base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Submit queues a generation. A response without a job id is a dry-run
// estimate and is returned as such.
func (c *Client) Submit(ctx context.Context, req GenerationRequest) (SubmitResult, error) {
	if c == nil {
		return SubmitResult{}, fmt.Errorf("client is nil")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("apikey", req.APIKey)
	if agent := strings.TrimSpace(req.ClientAgent); agent != "" {
		header.Set("Client-Agent", agent)
	}

	var payload SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/generate/async", header, body, &payload); err != nil {
		return SubmitResult{}, err
	}
	if payload.ID == "" {
		return NewEstimate(payload.Kudos), nil
	}
	return NewJob(JobHandle{
		ID:       payload.ID,
		Kudos:    payload.Kudos,
		Message:  payload.Message,
		Warnings: payload.Warnings,
	}), nil
}

// Check retrieves the lightweight progress view of a job.
func (c *Client) Check(ctx context.Context, id string) (*CheckResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload CheckResponse
	if err := c.do(ctx, http.MethodGet, "/api/v2/generate/check/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Status retrieves the full job status including generations.
func (c *Client) Status(ctx context.Context, id string) (*StatusResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v2/generate/status/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Cancel deletes the job and returns whatever the server finished so far.
func (c *Client) Cancel(ctx context.Context, id string) (*StatusResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload StatusResponse
	if err := c.do(ctx, http.MethodDelete, "/api/v2/generate/status/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchImage downloads a hosted generation image and returns its raw bytes.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse image url: %w", err)
	}
	if !target.IsAbs() {
		return nil, fmt.Errorf("image url %q is not absolute", rawURL)
	}
	resp, err := c.send(ctx, http.MethodGet, target, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body []byte, dest any) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")
	if header.Get("Client-Agent") == "" {
		header.Set("Client-Agent", c.clientAgent)
	}

	rel := &url.URL{Path: path}
	resp, err := c.send(ctx, method, c.baseURL.ResolveReference(rel), header, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send executes the request and returns the response only for 2xx statuses.
// The caller owns the returned body.
func (c *Client) send(ctx context.Context, method string, target *url.URL, header http.Header, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("execute request: %w", ctxErr)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &NetworkError{Method: method, URL: target.String(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{
			Method:     method,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}
	return resp, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse horde url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
