package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/mindio/internal/config"
	"github.com/HammerMeetNail/mindio/internal/logging"
)

const (
	userAgent        = "mindio-backend/1.0"
	maxResponseBytes = 1 << 20
	errorBodyPreview = 300

	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 120 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryBackoff   = 1200 * time.Millisecond
)

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UserData struct {
	AgeRange      string `json:"ageRange"`
	Gender        string `json:"gender"`
	Mood          string `json:"mood"`
	SupportTopics string `json:"supportTopics"`
	Location      string `json:"location,omitempty"`
}

// Request is the JSON body posted to the webhook.
type Request struct {
	Message     string           `json:"message"`
	History     []HistoryMessage `json:"history"`
	UserContext string           `json:"userContext,omitempty"`
	UserData    *UserData        `json:"userData,omitempty"`
}

// Client posts prompts to the AI webhook with bounded retries.
type Client struct {
	url            string
	httpClient     *http.Client
	attemptTimeout time.Duration
	maxAttempts    int
	backoff        time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg config.AIConfig) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = defaultConnectTimeout
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = defaultReadTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	backoff := cfg.RetryBackoff
	if backoff < 0 {
		backoff = defaultRetryBackoff
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		url:            strings.TrimSpace(cfg.WebhookURL),
		httpClient:     &http.Client{Transport: transport},
		attemptTimeout: connect + read,
		maxAttempts:    attempts,
		backoff:        backoff,
		sleep:          sleepContext,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// Reply sends the request and returns the extracted reply and the number of
// attempts made. Errors always wrap ErrGenerationFailed.
func (c *Client) Reply(ctx context.Context, req Request) (string, int, error) {
	if !c.Configured() {
		return "", 0, fmt.Errorf("%w: %w", ErrGenerationFailed, ErrNotConfigured)
	}
	if req.History == nil {
		req.History = []HistoryMessage{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: encoding request: %w", ErrGenerationFailed, err)
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attempts = attempt
		reply, err := c.post(ctx, body)
		if err == nil {
			return reply, attempts, nil
		}
		lastErr = err

		logging.FromContext(ctx).Warn("AI webhook attempt failed", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": c.maxAttempts,
			"error":        err.Error(),
		})

		if ctx.Err() != nil {
			lastErr = fmt.Errorf("%w: %v", ctx.Err(), err)
			break
		}
		if !isRetryable(err) || attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	return "", attempts, fmt.Errorf("%w: after %d attempt(s): %w", ErrGenerationFailed, attempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling AI webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading AI webhook response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		preview := string(data)
		if len(preview) > errorBodyPreview {
			preview = preview[:errorBodyPreview]
		}
		return "", &StatusError{Code: resp.StatusCode, Body: preview}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyResponse
	}

	reply, ok := ExtractReply(data)
	if !ok {
		return "", ErrUnrecognizedResponse
	}
	return reply, nil
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// Transport errors, per-attempt timeouts and empty or unrecognised bodies.
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
