package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-authgate/connectgate/internal/services"

	"github.com/gin-gonic/gin"
)

// kindAccessDenied is reported when the user declines consent at the provider.
const kindAccessDenied = "access_denied"

type kindResponse struct {
	status  int
	message string
}

// kindResponses maps error kinds to HTTP status and a user-facing message.
// Raw error text never reaches the client.
var kindResponses = map[string]kindResponse{
	services.KindInvalidRequest: {http.StatusBadRequest, "Invalid request."},
	services.KindUnknownProvider: {
		http.StatusBadRequest,
		"Unsupported provider.",
	},
	services.KindMisconfiguredProvider: {
		http.StatusInternalServerError,
		"This provider is not configured on the server.",
	},
	services.KindStateMismatch: {
		http.StatusBadRequest,
		"The authorization response could not be verified. Please connect again.",
	},
	kindAccessDenied: {
		http.StatusBadRequest,
		"Authorization was denied at the provider.",
	},
	services.KindExchangeFailed: {
		http.StatusInternalServerError,
		"The provider rejected the authorization. Please connect again.",
	},
	services.KindRefreshFailed: {
		http.StatusInternalServerError,
		"The provider rejected the stored credentials. Please connect again.",
	},
	services.KindProviderTimeout: {
		http.StatusGatewayTimeout,
		"The provider did not respond in time. Please try again.",
	},
	services.KindProviderUnavailable: {
		http.StatusInternalServerError,
		"The provider is temporarily unavailable. Please try again.",
	},
	services.KindNotConnected: {
		http.StatusNotFound,
		"No connection exists for this provider.",
	},
	services.KindNotRefreshable: {
		http.StatusConflict,
		"The token is still valid or cannot be refreshed.",
	},
	services.KindStorageUnavailable: {
		http.StatusInternalServerError,
		"Token storage is temporarily unavailable. Please try again.",
	},
	services.KindInternal: {http.StatusInternalServerError, "Internal server error."},
}

// respondKind writes the standard error body for kind.
func respondKind(c *gin.Context, kind string) {
	resp, ok := kindResponses[kind]
	if !ok {
		kind = services.KindInternal
		resp = kindResponses[kind]
	}
	c.JSON(resp.status, gin.H{
		"error":   kind,
		"message": resp.message,
	})
}

// respondError translates err into the standard error body.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	if kind == services.KindInternal {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "error", err)
	}
	if errors.Is(err, services.ErrUserIDRequired) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   kind,
			"message": "The userId query parameter is required.",
		})
		return
	}
	respondKind(c, kind)
}
