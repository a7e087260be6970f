package service

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// retryConfig bounds callLLMWithRetry's backoff.
type retryConfig struct {
	MaxRetries    int
	BaseWait      time.Duration
	CallTimeout   time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{MaxRetries: 2, BaseWait: 2 * time.Second, CallTimeout: 3 * time.Minute}
}

// callLLMWithRetry calls client.Generate with exponential backoff (2s,
// 4s, ...) on retryable errors. One call is a single request/response
// turn, so there is no delta-forwarding goroutine.
func callLLMWithRetry(ctx context.Context, client LLMClient, req *LLMRequest, cfg retryConfig) (*LLMResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := cfg.BaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		resp, err := client.Generate(callCtx, req)
		cancel()

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, fmt.Errorf("non-retryable model error: %w", err)
		}
	}

	return nil, fmt.Errorf("model call failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// isRetryableError classifies a model-call error by substring pattern:
// specific non-retryable patterns checked first, then specific
// retryable patterns, defaulting to retryable for anything
// unrecognized so a transient unknown failure doesn't short-circuit
// the whole turn.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	nonRetryable := []string{
		"context canceled",
		"unauthorized",
		"invalid api key",
		"bad request",
		"invalid argument",
		"model not found",
	}
	for _, p := range nonRetryable {
		if strings.Contains(errStr, p) {
			return false
		}
	}

	retryable := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"eof",
		"server error",
		"502", "503", "504", "529",
		"rate limit",
		"too many requests",
		"overloaded",
		"temporarily unavailable",
	}
	for _, p := range retryable {
		if strings.Contains(errStr, p) {
			return true
		}
	}

	return true
}
