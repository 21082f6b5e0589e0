// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides retry helpers shared by the network-bound stages.
package httputil

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// DefaultMaxAttempts is the total number of attempts (initial call included)
// when a caller passes 0.
const DefaultMaxAttempts = 4

// TransientStatus reports whether an HTTP status code belongs to the
// retryable class: request timeout, rate limiting, and server errors.
func TransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// Retry runs fn up to maxAttempts times, sleeping between attempts with
// exponential backoff plus jitter. It retries only when retryable(err)
// returns true; any other error is returned immediately. When maxAttempts
// is 0 the default (4) is used. If the context is cancelled during a
// backoff wait, Retry returns ctx.Err(). After exhausting attempts the
// last error is returned.
func Retry(ctx context.Context, maxAttempts int, retryable func(error) bool, fn func(context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return err
}

// backoff returns the wait before retry number attempt+1: an exponentially
// growing base with up to 50% random jitter to spread concurrent workers.
func backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// DoWithRetry executes an HTTP request and retries transient failures:
// connection errors and responses with a status in the transient class
// (408, 429, 5xx). maxAttempts counts the initial call; 0 selects the
// default. On each retried response the body is drained and closed before
// sleeping. After exhausting attempts the last response (or error) is
// returned so the caller can classify it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err = client.Do(req.Clone(ctx))
		if err == nil && !TransientStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return resp, err
}
