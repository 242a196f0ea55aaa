package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/cache"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/core"
	"github.com/go-authgate/connectgate/internal/models"
	"github.com/go-authgate/connectgate/internal/store"
	"github.com/go-authgate/connectgate/internal/util"

	"golang.org/x/sync/singleflight"
)

// Refresh outcomes used as metric labels
const (
	refreshSuccess   = "success"
	refreshRevoked   = "revoked"
	refreshTransient = "transient"
	refreshSkipped   = "skipped"
)

// ConnectionStore is the token store as seen by ConnectionService.
type ConnectionStore interface {
	GetConnection(ctx context.Context, userID, provider string) (*models.Connection, error)
	ListConnections(ctx context.Context, userID string) ([]models.Connection, error)
	UpsertConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	UpdateConnection(
		ctx context.Context,
		userID, provider string,
		fn func(conn *models.Connection) (store.Mutation, error),
	) (*models.Connection, error)
	DeleteConnection(ctx context.Context, userID, provider string) error
}

// Authorization is an issued consent redirect.
type Authorization struct {
	URL       string
	State     string
	ExpiresAt time.Time
}

// ExchangeResult is the outcome of a successful callback.
type ExchangeResult struct {
	Connection *models.Connection
	Redirect   string // redirect requested at connect time, may be empty
}

// Validity is the lifecycle state of one (user, provider) pair.
type Validity struct {
	Connected             bool
	Valid                 bool
	NeedsReauthentication bool
	Connection            *models.Connection // nil when not connected
}

// ConnectionService manages the OAuth connection lifecycle: it issues
// states, exchanges codes, refreshes expired tokens on read and removes
// connections.
type ConnectionService struct {
	registry *auth.Registry
	store    ConnectionStore
	states   core.Cache[models.PendingState]
	metrics  core.Recorder

	stateTTL time.Duration
	leeway   time.Duration
	now      func() time.Time

	refreshGroup singleflight.Group
}

func NewConnectionService(
	registry *auth.Registry,
	s ConnectionStore,
	states core.Cache[models.PendingState],
	m core.Recorder,
	cfg *config.Config,
) *ConnectionService {
	return &ConnectionService{
		registry: registry,
		store:    s,
		states:   states,
		metrics:  m,
		stateTTL: cfg.OAuthStateTTL,
		leeway:   cfg.TokenExpiryLeeway,
		now:      time.Now,
	}
}

// stateKey is the cache key of a pending state. Only the hash is stored.
func stateKey(state string) string {
	return "state:" + util.SHA256Hex(state)
}

// Initiate starts a connect flow. An empty userID binds the connection to
// the provider account email at callback time.
func (s *ConnectionService) Initiate(
	ctx context.Context,
	provider, userID, redirect string,
) (*Authorization, error) {
	p, err := s.registry.Provider(provider)
	if err != nil {
		s.metrics.RecordConnectInitiated(provider, false)
		logProviderError(ctx, "connect rejected", provider, err)
		return nil, err
	}

	state, err := util.RandomState()
	if err != nil {
		s.metrics.RecordConnectInitiated(provider, false)
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	now := s.now()
	pending := models.PendingState{
		State:     state,
		Provider:  provider,
		UserID:    strings.TrimSpace(userID),
		Redirect:  redirect,
		CreatedAt: now,
		ExpiresAt: now.Add(s.stateTTL),
	}
	if err := s.states.Set(ctx, stateKey(state), pending, s.stateTTL); err != nil {
		s.metrics.RecordConnectInitiated(provider, false)
		return nil, fmt.Errorf("%w: save state: %w", store.ErrStorageUnavailable, err)
	}

	s.metrics.RecordConnectInitiated(provider, true)
	return &Authorization{
		URL:       p.AuthURL(state),
		State:     state,
		ExpiresAt: pending.ExpiresAt,
	}, nil
}

// CompleteExchange redeems returnedState and exchanges code for tokens.
// The token store is never touched unless the state was issued for this
// provider, is unexpired and has not been redeemed before.
func (s *ConnectionService) CompleteExchange(
	ctx context.Context,
	provider, code, returnedState string,
) (result *ExchangeResult, err error) {
	defer func() {
		if err != nil {
			s.metrics.RecordOAuthCallback(provider, KindOf(err))
			logProviderError(ctx, "oauth callback failed", provider, err)
			return
		}
		s.metrics.RecordOAuthCallback(provider, "success")
	}()

	if !s.registry.Has(provider) {
		return nil, fmt.Errorf("%w: %q", auth.ErrUnknownProvider, provider)
	}
	pending, err := s.redeemState(ctx, provider, returnedState)
	if err != nil {
		return nil, err
	}

	p, err := s.registry.Provider(provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	grant, err := p.Exchange(ctx, code)
	s.metrics.RecordProviderCall(provider, "exchange", err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	account, accountErr := p.FetchAccount(ctx, grant)
	s.metrics.RecordProviderCall(provider, "account", accountErr == nil, time.Since(start))
	if accountErr != nil {
		if pending.UserID == "" {
			return nil, accountErr
		}
		slog.WarnContext(ctx, "account lookup failed, storing connection without email",
			"provider", provider, "error", accountErr)
		account = &auth.Account{}
	}

	userID := pending.UserID
	if userID == "" {
		userID = account.Email
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: account has no email", auth.ErrAccountLookupFailed)
	}

	// Providers that omit scope granted what was requested.
	scopes := grant.Scopes
	if len(scopes) == 0 {
		scopes = p.Config().Scopes
	}

	conn, err := s.store.UpsertConnection(ctx, &models.Connection{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: account.ID,
		Email:          account.Email,
		AccessToken:    grant.AccessToken,
		RefreshToken:   grant.RefreshToken,
		TokenType:      grant.TokenType,
		ExpiresAt:      grant.Expiry,
		Scopes:         strings.Join(scopes, " "),
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "provider connected",
		"provider", provider, "user_id", userID, "ip", util.GetIPFromContext(ctx))
	return &ExchangeResult{Connection: conn, Redirect: pending.Redirect}, nil
}

// redeemState consumes a pending state. Unknown, expired, reused and
// cross-provider states all fail with ErrStateMismatch.
func (s *ConnectionService) redeemState(
	ctx context.Context,
	provider, returnedState string,
) (*models.PendingState, error) {
	if returnedState == "" {
		return nil, fmt.Errorf("%w: missing state", auth.ErrStateMismatch)
	}

	pending, err := s.states.Take(ctx, stateKey(returnedState))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: unknown or already used state", auth.ErrStateMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load state: %w", store.ErrStorageUnavailable, err)
	}

	if pending.State != returnedState || pending.Provider != provider {
		return nil, fmt.Errorf("%w: state was issued for another flow", auth.ErrStateMismatch)
	}
	if pending.IsExpired(s.now()) {
		return nil, fmt.Errorf("%w: state expired", auth.ErrStateMismatch)
	}
	return &pending, nil
}

// CheckValidity reports the lifecycle state of (userID, provider). An
// expired token with a refresh token is refreshed once, inline; a failed
// refresh is never retried here.
func (s *ConnectionService) CheckValidity(
	ctx context.Context,
	userID, provider string,
) (*Validity, error) {
	if err := s.checkArgs(userID, provider); err != nil {
		return nil, err
	}

	conn, err := s.store.GetConnection(ctx, userID, provider)
	if errors.Is(err, store.ErrRecordNotFound) {
		return &Validity{NeedsReauthentication: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if !conn.IsExpired(s.now(), s.leeway) {
		// An expiring token without a refresh token cannot outlive its expiry.
		return &Validity{
			Connected:             true,
			Valid:                 true,
			NeedsReauthentication: conn.CanExpire() && !conn.HasRefreshToken(),
			Connection:            conn,
		}, nil
	}
	if !conn.HasRefreshToken() {
		return &Validity{Connected: true, NeedsReauthentication: true, Connection: conn}, nil
	}

	refreshed, err := s.refresh(ctx, userID, provider)
	switch {
	case err == nil && refreshed == nil:
		// removed by a concurrent disconnect
		return &Validity{NeedsReauthentication: true}, nil
	case err == nil:
		return &Validity{Connected: true, Valid: true, Connection: refreshed}, nil
	case errors.Is(err, store.ErrRecordNotFound):
		return &Validity{NeedsReauthentication: true}, nil
	case auth.IsPermanentRefreshFailure(err):
		return &Validity{NeedsReauthentication: true}, nil
	case errors.Is(err, auth.ErrProviderTimeout), errors.Is(err, auth.ErrProviderUnavailable):
		// The grant may still be good; report expired without asking the
		// user to reconnect.
		return &Validity{Connected: true, Connection: conn}, nil
	default:
		return nil, err
	}
}

// Refresh refreshes an expired token on request. It fails with
// ErrNotConnected when there is no record and ErrNotRefreshable when the
// token is still valid or has no refresh token.
func (s *ConnectionService) Refresh(
	ctx context.Context,
	userID, provider string,
) (*models.Connection, error) {
	if err := s.checkArgs(userID, provider); err != nil {
		return nil, err
	}

	conn, err := s.store.GetConnection(ctx, userID, provider)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	if !conn.IsExpired(s.now(), s.leeway) {
		return nil, fmt.Errorf("%w: token is still valid", ErrNotRefreshable)
	}
	if !conn.HasRefreshToken() {
		return nil, fmt.Errorf("%w: no refresh token, reconnect required", ErrNotRefreshable)
	}

	refreshed, err := s.refresh(ctx, userID, provider)
	if errors.Is(err, store.ErrRecordNotFound) || (err == nil && refreshed == nil) {
		return nil, ErrNotConnected
	}
	return refreshed, err
}

// refresh collapses concurrent refreshes of one key in this process; the
// row lock in UpdateConnection covers other processes. The refresh runs to
// completion even if the caller goes away.
func (s *ConnectionService) refresh(
	ctx context.Context,
	userID, provider string,
) (*models.Connection, error) {
	ctx = context.WithoutCancel(ctx)
	key := userID + "\x00" + provider

	v, err, _ := s.refreshGroup.Do(key, func() (any, error) {
		return s.refreshLocked(ctx, userID, provider)
	})
	conn, _ := v.(*models.Connection)
	if conn != nil {
		copied := *conn
		conn = &copied
	}
	return conn, err
}

func (s *ConnectionService) refreshLocked(
	ctx context.Context,
	userID, provider string,
) (*models.Connection, error) {
	p, err := s.registry.Provider(provider)
	if err != nil {
		return nil, err
	}

	outcome := refreshSkipped
	conn, err := s.store.UpdateConnection(ctx, userID, provider,
		func(conn *models.Connection) (store.Mutation, error) {
			now := s.now()
			if !conn.IsExpired(now, s.leeway) {
				// refreshed by someone else while we waited for the lock
				return store.Keep, nil
			}

			start := time.Now()
			grant, err := p.Refresh(ctx, conn.RefreshToken)
			s.metrics.RecordProviderCall(provider, "refresh", err == nil, time.Since(start))
			if err != nil {
				if auth.IsPermanentRefreshFailure(err) {
					outcome = refreshRevoked
					return store.Remove, err
				}
				outcome = refreshTransient
				return store.Keep, err
			}

			outcome = refreshSuccess
			conn.AccessToken = grant.AccessToken
			conn.RefreshToken = grant.RefreshToken
			conn.TokenType = grant.TokenType
			conn.ExpiresAt = grant.Expiry
			if len(grant.Scopes) > 0 {
				conn.Scopes = strings.Join(grant.Scopes, " ")
			}
			conn.LastRefreshedAt = &now
			return store.Save, nil
		})
	s.metrics.RecordTokenRefresh(provider, outcome)

	switch outcome {
	case refreshRevoked:
		slog.WarnContext(ctx, "refresh token rejected, connection removed",
			"provider", provider, "user_id", userID, "kind", KindOf(err), "error", err)
	case refreshTransient:
		slog.WarnContext(ctx, "token refresh failed",
			"provider", provider, "user_id", userID, "kind", KindOf(err), "error", err)
	}
	return conn, err
}

// Disconnect removes the connection. Disconnecting twice is not an error.
func (s *ConnectionService) Disconnect(ctx context.Context, userID, provider string) error {
	if err := s.checkArgs(userID, provider); err != nil {
		return err
	}
	if err := s.store.DeleteConnection(ctx, userID, provider); err != nil {
		return err
	}
	s.metrics.RecordDisconnect(provider)
	slog.InfoContext(ctx, "provider disconnected",
		"provider", provider, "user_id", userID, "ip", util.GetIPFromContext(ctx))
	return nil
}

// HasProvider reports whether provider is registered, configured or not.
func (s *ConnectionService) HasProvider(provider string) bool {
	return s.registry.Has(provider)
}

// Providers lists the registered providers.
func (s *ConnectionService) Providers() []auth.ProviderInfo {
	return s.registry.List()
}

func (s *ConnectionService) checkArgs(userID, provider string) error {
	if !s.registry.Has(provider) {
		return fmt.Errorf("%w: %q", auth.ErrUnknownProvider, provider)
	}
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	return nil
}

// logProviderError logs configuration defects at ERROR so operators can
// tell them from protocol failures.
func logProviderError(ctx context.Context, msg, provider string, err error) {
	kind := KindOf(err)
	level := slog.LevelWarn
	if kind == KindMisconfiguredProvider || kind == KindStorageUnavailable || kind == KindInternal {
		level = slog.LevelError
	}
	slog.Log(ctx, level, msg, "provider", provider, "kind", kind, "error", err)
}
