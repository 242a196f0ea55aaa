// Package httpclient builds the HTTP client used for every call to an OAuth
// provider.
package httpclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
)

// NewProviderClient creates the client for token, refresh and account calls.
// The client timeout is an upper bound independent of the per-call context
// deadline, so a hung provider can never block a request forever.
func NewProviderClient(timeout time.Duration, insecureSkipVerify bool) (*http.Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("provider client timeout must be positive, got %s", timeout)
	}
	if insecureSkipVerify {
		slog.Warn("TLS verification of OAuth provider calls is disabled",
			"setting", "OAUTH_INSECURE_SKIP_VERIFY")
	}

	// Provider calls carry their own credentials, so no request signing.
	client, err := httpclient.NewAuthClient(
		httpclient.AuthModeNone,
		"",
		httpclient.WithTimeout(timeout),
		httpclient.WithInsecureSkipVerify(insecureSkipVerify),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}
	return client, nil
}
