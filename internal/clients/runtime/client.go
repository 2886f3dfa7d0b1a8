// Package runtime is a client for the IBM Quantum Platform runtime REST API: backend
// discovery, job submission for the estimator and sampler programs, and result retrieval.
package runtime

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
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultURL is the runtime API endpoint of the ibm_cloud channel.
	DefaultURL = "https://quantum.cloud.ibm.com/api/v1"
	// DefaultIAMURL exchanges API keys for bearer tokens.
	DefaultIAMURL = "https://iam.cloud.ibm.com"

	ChannelIBMCloud   = "ibm_cloud"
	ChannelIBMQuantum = "ibm_quantum"

	defaultPollInterval = 2 * time.Second
	tokenRefreshMargin  = time.Minute
)

var (
	// ErrMissingCredentials is returned when no API token is configured.
	ErrMissingCredentials = errors.New("runtime API token is not configured")
	// ErrJobFailed is returned when a job ends in a failed or cancelled state.
	ErrJobFailed = errors.New("runtime job did not complete")
)

// APIError is a non-2xx response from the runtime or IAM API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("runtime API returned status %d: %s", e.StatusCode, e.Message)
}

// Config holds connection settings. Values come from the environment or the
// account store, never from source.
type Config struct {
	Channel      string
	Token        string
	Instance     string // service CRN for ibm_cloud
	URL          string
	IAMURL       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client talks to the runtime API.
type Client struct {
	channel      string
	apiKey       string
	instance     string
	baseURL      string
	iamURL       string
	pollInterval time.Duration
	client       *http.Client
	log          zerolog.Logger

	mu          sync.Mutex
	bearer      string
	bearerUntil time.Time
}

// NewClient creates a runtime client.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Channel == "" {
		cfg.Channel = ChannelIBMCloud
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.IAMURL == "" {
		cfg.IAMURL = DefaultIAMURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Client{
		channel:      cfg.Channel,
		apiKey:       cfg.Token,
		instance:     cfg.Instance,
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		iamURL:       strings.TrimRight(cfg.IAMURL, "/"),
		pollInterval: cfg.PollInterval,
		client:       &http.Client{Timeout: cfg.Timeout},
		log:          log.With().Str("client", "ibm-runtime").Logger(),
	}, nil
}

// bearerToken returns a valid access token, exchanging the API key with IAM when the
// cached token is missing or about to expire. The ibm_quantum channel uses the token as is.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	if c.channel == ChannelIBMQuantum {
		return c.apiKey, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bearer != "" && time.Now().Before(c.bearerUntil) {
		return c.bearer, nil
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.iamURL+"/identity/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}

	c.bearer = token.AccessToken
	c.bearerUntil = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenRefreshMargin)
	c.log.Debug().Int("expires_in", token.ExpiresIn).Msg("Obtained IAM token")
	return c.bearer, nil
}

// do performs an authenticated JSON request. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.instance != "" {
		req.Header.Set("Service-CRN", c.instance)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Runtime API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case len(payload.Errors) > 0:
			msg = payload.Errors[0].Message
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// ListBackends returns the names of the backends visible to the instance.
func (c *Client) ListBackends(ctx context.Context) ([]string, error) {
	var out struct {
		Devices []string `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/backends", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// BackendStatus returns availability and queue length of a backend.
func (c *Client) BackendStatus(ctx context.Context, name string) (*BackendStatus, error) {
	var out BackendStatus
	if err := c.do(ctx, http.MethodGet, "/backends/"+url.PathEscape(name)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BackendConfiguration returns the static description of a backend.
func (c *Client) BackendConfiguration(ctx context.Context, name string) (*BackendConfiguration, error) {
	var out BackendConfiguration
	if err := c.do(ctx, http.MethodGet, "/backends/"+url.PathEscape(name)+"/configuration", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitJob starts a program run and returns the job ID.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/jobs", req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("job submission returned no id")
	}
	c.log.Info().Str("job_id", out.ID).Str("program", req.ProgramID).Str("backend", req.Backend).Msg("Job submitted")
	return out.ID, nil
}

// JobStatus returns the current state of a job.
func (c *Client) JobStatus(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobResults decodes the results of a completed job into out.
func (c *Client) JobResults(ctx context.Context, id string, out any) error {
	return c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"/results", nil, out)
}

// WaitForJob polls until the job reaches a final state or ctx is done.
func (c *Client) WaitForJob(ctx context.Context, id string) (*Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.JobStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		switch job.State() {
		case JobCompleted:
			return job, nil
		case JobFailed, JobCancelled:
			return job, fmt.Errorf("job %s %s: %s: %w", id, strings.ToLower(job.State()), job.Reason(), ErrJobFailed)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
