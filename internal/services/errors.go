package services

import (
	"errors"

	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/store"
)

var (
	ErrUserIDRequired = errors.New("userId is required")
	ErrNotConnected   = errors.New("provider is not connected")
	// ErrNotRefreshable is returned for an explicit refresh of a token that
	// is still valid or has no refresh token.
	ErrNotRefreshable = errors.New("token cannot be refreshed")
)

// Error kinds are the stable machine-readable names of failures.
const (
	KindInvalidRequest        = "invalid_request"
	KindUnknownProvider       = "unknown_provider"
	KindMisconfiguredProvider = "misconfigured_provider"
	KindStateMismatch         = "state_mismatch"
	KindExchangeFailed        = "exchange_failed"
	KindRefreshFailed         = "refresh_failed"
	KindProviderTimeout       = "provider_timeout"
	KindProviderUnavailable   = "provider_unavailable"
	KindNotConnected          = "not_connected"
	KindNotRefreshable        = "not_refreshable"
	KindStorageUnavailable    = "storage_unavailable"
	KindInternal              = "internal_error"
)

// KindOf maps err to its error kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserIDRequired):
		return KindInvalidRequest
	case errors.Is(err, auth.ErrUnknownProvider):
		return KindUnknownProvider
	case errors.Is(err, auth.ErrMisconfiguredProvider):
		return KindMisconfiguredProvider
	case errors.Is(err, auth.ErrStateMismatch):
		return KindStateMismatch
	case errors.Is(err, auth.ErrProviderTimeout):
		return KindProviderTimeout
	case errors.Is(err, auth.ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, auth.ErrExchangeFailed),
		errors.Is(err, auth.ErrMissingRefreshToken),
		errors.Is(err, auth.ErrAccountLookupFailed):
		return KindExchangeFailed
	case errors.Is(err, auth.ErrRefreshFailed):
		return KindRefreshFailed
	case errors.Is(err, ErrNotConnected):
		return KindNotConnected
	case errors.Is(err, ErrNotRefreshable):
		return KindNotRefreshable
	case errors.Is(err, store.ErrStorageUnavailable):
		return KindStorageUnavailable
	default:
		return KindInternal
	}
}
