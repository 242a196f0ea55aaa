package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-authgate/connectgate/internal/services"
	"github.com/go-authgate/connectgate/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys binding an issued state to the browser that started the flow.
const (
	sessionOAuthState    = "oauth_state"
	sessionOAuthProvider = "oauth_provider"
)

// ConnectionHandler serves the connect, callback, status, refresh and
// disconnect routes.
type ConnectionHandler struct {
	connections *services.ConnectionService
	statuses    *services.StatusReporter
	baseURL     string
	successURL  string
}

func NewConnectionHandler(
	connections *services.ConnectionService,
	statuses *services.StatusReporter,
	baseURL, successURL string,
) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		statuses:    statuses,
		baseURL:     baseURL,
		successURL:  successURL,
	}
}

// Connect redirects the user to the provider consent screen.
// GET /connect/:provider?userId=&redirect=
func (h *ConnectionHandler) Connect(c *gin.Context) {
	provider := c.Param("provider")
	redirect := c.Query("redirect")

	if !util.IsRedirectSafe(redirect, h.baseURL) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   services.KindInvalidRequest,
			"message": "The redirect URL must point to this site.",
		})
		return
	}

	authz, err := h.connections.Initiate(c.Request.Context(), provider, c.Query("userId"), redirect)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionOAuthState, authz.State)
	session.Set(sessionOAuthProvider, provider)
	if err := session.Save(); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to save session",
			"provider", provider, "error", err)
		respondKind(c, services.KindInternal)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, authz.URL)
}

// Callback completes the authorization code flow.
// GET /callback/:provider?code=&state=
func (h *ConnectionHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	if !h.connections.HasProvider(provider) {
		respondKind(c, services.KindUnknownProvider)
		return
	}

	session := sessions.Default(c)
	issuedState, _ := session.Get(sessionOAuthState).(string)
	issuedProvider, _ := session.Get(sessionOAuthProvider).(string)
	session.Delete(sessionOAuthState)
	session.Delete(sessionOAuthProvider)
	if err := session.Save(); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to clear oauth session",
			"provider", provider, "error", err)
	}

	// The user declined consent or the provider refused the request.
	if errCode := c.Query("error"); errCode != "" {
		slog.WarnContext(c.Request.Context(), "provider returned an error",
			"provider", provider, "kind", kindAccessDenied, "provider_error", errCode)
		respondKind(c, kindAccessDenied)
		return
	}

	state := c.Query("state")
	// A session that started a flow must finish the same flow.
	if issuedState != "" && (issuedState != state || issuedProvider != provider) {
		slog.WarnContext(c.Request.Context(), "callback state does not match session",
			"provider", provider, "kind", services.KindStateMismatch)
		respondKind(c, services.KindStateMismatch)
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   services.KindInvalidRequest,
			"message": "The authorization code is missing.",
		})
		return
	}

	result, err := h.connections.CompleteExchange(c.Request.Context(), provider, code, state)
	if err != nil {
		respondError(c, err)
		return
	}

	target := util.ResolveRedirect(result.Redirect, h.successURL, h.baseURL)
	c.Redirect(http.StatusFound, withQuery(target, "connected", provider))
}

// withQuery appends key=value to target's query string.
func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// Status reports the connection status of one provider.
// GET /status/:provider?userId=
func (h *ConnectionHandler) Status(c *gin.Context) {
	status, err := h.statuses.Report(c.Request.Context(), c.Query("userId"), c.Param("provider"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Refresh refreshes an expired token on request.
// POST /refresh/:provider?userId=
func (h *ConnectionHandler) Refresh(c *gin.Context) {
	provider := c.Param("provider")
	userID := userIDParam(c)

	if _, err := h.connections.Refresh(c.Request.Context(), userID, provider); err != nil {
		respondError(c, err)
		return
	}

	status, err := h.statuses.Report(c.Request.Context(), userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Disconnect removes the stored connection.
// POST /disconnect/:provider, DELETE /disconnect/:provider?userId=
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	provider := c.Param("provider")

	if err := h.connections.Disconnect(c.Request.Context(), userIDParam(c), provider); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Disconnected from " + provider + ".",
	})
}

// Connections reports the status of every registered provider for a user.
// GET /connections?userId=
func (h *ConnectionHandler) Connections(c *gin.Context) {
	statuses, err := h.statuses.ReportAll(c.Request.Context(), c.Query("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": statuses})
}

// Providers lists the registered providers and whether they are configured.
// GET /providers
func (h *ConnectionHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.connections.Providers()})
}

// userIDParam reads userId from the query string, then from a form or JSON
// body.
func userIDParam(c *gin.Context) string {
	if id := strings.TrimSpace(c.Query("userId")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.PostForm("userId")); id != "" {
		return id
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		_ = c.ShouldBindJSON(&body)
	}
	return strings.TrimSpace(body.UserID)
}
