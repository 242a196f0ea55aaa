package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/oauth2"
)

var (
	// ErrUnknownProvider is returned for a provider id that is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrMisconfiguredProvider marks a deployment defect: a registered provider
	// is missing a client id, secret or redirect URI.
	ErrMisconfiguredProvider = errors.New("provider is misconfigured")

	// OAuth protocol errors
	ErrStateMismatch       = errors.New("oauth state mismatch")
	ErrExchangeFailed      = errors.New("authorization code exchange failed")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrMissingRefreshToken = errors.New("provider did not issue a refresh token")
	ErrAccountLookupFailed = errors.New("provider account lookup failed")

	// Transient provider errors
	ErrProviderTimeout     = errors.New("provider request timed out")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// isTimeout reports whether err was caused by the call deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isTransient reports whether a token endpoint failure may succeed on a
// later attempt. A 5xx answer is transient even when it carries an OAuth
// error code; other rejections are permanent.
func isTransient(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// classifyRefreshError wraps a refresh failure so callers can tell a revoked
// grant (ErrRefreshFailed) from a provider outage.
func classifyRefreshError(err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	case isTransient(err):
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
}

func classifyExchangeError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrExchangeFailed, err)
}

// IsPermanentRefreshFailure reports whether the stored grant is unusable and
// the user must connect again.
func IsPermanentRefreshFailure(err error) bool {
	return errors.Is(err, ErrRefreshFailed) || errors.Is(err, ErrMissingRefreshToken)
}
