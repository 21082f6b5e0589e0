// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes shared by the network-bound stages. Transient failures are
// retried with backoff and leave the record for a future run; auth failures
// are fatal for the whole batch.
var (
	ErrTransient = errors.New("transient service failure")
	ErrAuth      = errors.New("authentication failure")
)

// ClassifyStatus converts a non-OK HTTP status into a classified error:
// 401/403 wrap ErrAuth, the transient class wraps ErrTransient, and
// anything else is a plain error. A 200 yields nil.
func ClassifyStatus(service string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s returned HTTP %d: %w", service, code, ErrAuth)
	case TransientStatus(code):
		return fmt.Errorf("%s returned HTTP %d: %w", service, code, ErrTransient)
	default:
		return fmt.Errorf("%s returned HTTP %d", service, code)
	}
}
