package generate

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// RetryConfig configures retry behaviour.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns defaults suited to interactive requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  8 * time.Second,
	}
}

type retryCompleter struct {
	inner  Completer
	config RetryConfig
}

// WithRetry wraps c so that transient failures are retried with capped
// exponential backoff.
func WithRetry(c Completer, config RetryConfig) Completer {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &retryCompleter{inner: c, config: config}
}

func (r *retryCompleter) Name() string { return r.inner.Name() }

func (r *retryCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		out, err := r.inner.Complete(ctx, system, user)
		if err == nil {
			return out, nil
		}
		if !isRetryable(err) {
			return "", err
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		wait := r.backoff(attempt)
		slog.Debug("generate: retrying",
			slog.String("provider", r.inner.Name()),
			slog.Int("attempt", attempt),
			slog.String("wait", wait.String()),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func (r *retryCompleter) backoff(attempt int) time.Duration {
	wait := r.config.BaseBackoff << (attempt - 1)
	if wait <= 0 || wait > r.config.MaxBackoff {
		wait = r.config.MaxBackoff
	}
	return wait
}

// isRetryable reports whether err is a transient upstream failure: a 429 or
// 5xx from a provider, or a network error.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Completers outside the provider SDKs only report text.
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"429", "rate limit", "too many requests", "502", "bad gateway",
		"503", "service unavailable", "overloaded", "connection refused",
		"connection reset", "temporary failure",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// statusCode extracts the HTTP status from a provider SDK error.
func statusCode(err error) (int, bool) {
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode, true
	}
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode, true
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	return 0, false
}
