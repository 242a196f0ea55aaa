package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/connectgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation.
// For PostgreSQL, each call creates a uniquely-named database in the container.
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]
		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	store, err := New(context.Background(), driver, dsn)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newConnection(userID, provider string) *models.Connection {
	return &models.Connection{
		UserID:       userID,
		Provider:     provider,
		Email:        userID,
		AccessToken:  "access-" + uuid.New().String(),
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		Scopes:       "a b",
	}
}

func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	ctx := context.Background()

	t.Run("GetMissingConnection", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		_, err := store.GetConnection(ctx, "nobody@example.com", "gmail")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.NotErrorIs(t, err, ErrStorageUnavailable)
	})

	t.Run("UpsertAndGet", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := newConnection("a@example.com", "gmail")
		stored, err := store.UpsertConnection(ctx, conn)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
		assert.Empty(t, conn.ID, "caller's record must not be modified")

		got, err := store.GetConnection(ctx, "a@example.com", "gmail")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
		assert.Equal(t, conn.AccessToken, got.AccessToken)
		assert.Equal(t, "refresh-1", got.RefreshToken)
		assert.True(t, conn.ExpiresAt.Equal(got.ExpiresAt))
		assert.Equal(t, []string{"a", "b"}, got.ScopeList())
	})

	t.Run("UpsertReplacesExisting", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		first, err := store.UpsertConnection(ctx, newConnection("a@example.com", "discord"))
		require.NoError(t, err)

		replacement := newConnection("a@example.com", "discord")
		replacement.RefreshToken = "refresh-2"
		second, err := store.UpsertConnection(ctx, replacement)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "refresh-2", second.RefreshToken)
		assert.Equal(t, replacement.AccessToken, second.AccessToken)

		conns, err := store.ListConnections(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Len(t, conns, 1)
	})

	t.Run("ConcurrentUpsertKeepsOneRecord", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.UpsertConnection(ctx, newConnection("race@example.com", "slack"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		conns, err := store.ListConnections(ctx, "race@example.com")
		require.NoError(t, err)
		assert.Len(t, conns, 1)
	})

	t.Run("ListConnections", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		for _, provider := range []string{"slack", "gmail", "discord"} {
			_, err := store.UpsertConnection(ctx, newConnection("list@example.com", provider))
			require.NoError(t, err)
		}
		_, err := store.UpsertConnection(ctx, newConnection("other@example.com", "gmail"))
		require.NoError(t, err)

		conns, err := store.ListConnections(ctx, "list@example.com")
		require.NoError(t, err)
		require.Len(t, conns, 3)
		assert.Equal(t, "discord", conns[0].Provider)
		assert.Equal(t, "gmail", conns[1].Provider)
		assert.Equal(t, "slack", conns[2].Provider)
	})

	t.Run("UpdateConnectionSave", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		_, err := store.UpsertConnection(ctx, newConnection("u@example.com", "gmail"))
		require.NoError(t, err)

		newExpiry := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
		updated, err := store.UpdateConnection(ctx, "u@example.com", "gmail",
			func(conn *models.Connection) (Mutation, error) {
				conn.AccessToken = "refreshed"
				conn.ExpiresAt = newExpiry
				return Save, nil
			})
		require.NoError(t, err)
		assert.Equal(t, "refreshed", updated.AccessToken)

		got, err := store.GetConnection(ctx, "u@example.com", "gmail")
		require.NoError(t, err)
		assert.Equal(t, "refreshed", got.AccessToken)
		assert.True(t, newExpiry.Equal(got.ExpiresAt))
	})

	t.Run("UpdateConnectionRemoveWithError", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		_, err := store.UpsertConnection(ctx, newConnection("u@example.com", "gmail"))
		require.NoError(t, err)

		revoked := errors.New("revoked")
		updated, err := store.UpdateConnection(ctx, "u@example.com", "gmail",
			func(conn *models.Connection) (Mutation, error) {
				return Remove, revoked
			})
		assert.ErrorIs(t, err, revoked)
		assert.Nil(t, updated)

		_, err = store.GetConnection(ctx, "u@example.com", "gmail")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("UpdateConnectionKeep", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		original, err := store.UpsertConnection(ctx, newConnection("u@example.com", "gmail"))
		require.NoError(t, err)

		_, err = store.UpdateConnection(ctx, "u@example.com", "gmail",
			func(conn *models.Connection) (Mutation, error) {
				conn.AccessToken = "discarded"
				return Keep, nil
			})
		require.NoError(t, err)

		got, err := store.GetConnection(ctx, "u@example.com", "gmail")
		require.NoError(t, err)
		assert.Equal(t, original.AccessToken, got.AccessToken)
	})

	t.Run("UpdateMissingConnection", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		called := false
		_, err := store.UpdateConnection(ctx, "ghost@example.com", "gmail",
			func(conn *models.Connection) (Mutation, error) {
				called = true
				return Save, nil
			})
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.False(t, called)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		_, err := store.UpsertConnection(ctx, newConnection("d@example.com", "slack"))
		require.NoError(t, err)

		require.NoError(t, store.DeleteConnection(ctx, "d@example.com", "slack"))
		require.NoError(t, store.DeleteConnection(ctx, "d@example.com", "slack"))

		_, err = store.GetConnection(ctx, "d@example.com", "slack")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("CountConnectionsByProvider", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		for _, c := range []*models.Connection{
			newConnection("a@example.com", "gmail"),
			newConnection("b@example.com", "gmail"),
			newConnection("a@example.com", "slack"),
		} {
			_, err := store.UpsertConnection(ctx, c)
			require.NoError(t, err)
		}

		counts, err := store.CountConnectionsByProvider(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"gmail": 2, "slack": 1}, counts)
	})

	t.Run("Health", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		assert.NoError(t, store.Health(ctx))
	})

	t.Run("ClosedStoreIsUnavailable", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		require.NoError(t, store.Close())

		_, err := store.GetConnection(ctx, "a@example.com", "gmail")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.Error(t, store.Health(ctx))
	})
}

func TestGetDialector(t *testing.T) {
	_, err := GetDialector("mysql", "dsn")
	assert.Error(t, err)

	d, err := GetDialector("sqlite", ":memory:")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	assert.Equal(t, []string{"postgres", "sqlite"}, Drivers())
}

func TestStoreDoesNotLogMisses(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	s, err := New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.GetConnection(context.Background(), "nobody@example.com", "gmail")
	require.ErrorIs(t, err, ErrRecordNotFound)
	assert.NotContains(t, buf.String(), "record not found")
}
