package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-authgate/connectgate/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Mutation tells UpdateConnection what to do with the locked record.
type Mutation int

const (
	// Keep leaves the record untouched.
	Keep Mutation = iota
	// Save writes the modified record back.
	Save
	// Remove deletes the record.
	Remove
)

// Store is the token store. It owns every persisted Connection; callers
// always get copies.
type Store struct {
	db     *gorm.DB
	driver string
}

func New(ctx context.Context, driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// One connection serializes writers and keeps :memory: databases shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.Connection{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func wrapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// GetConnection returns the record for (userID, provider) or ErrRecordNotFound.
func (s *Store) GetConnection(ctx context.Context, userID, provider string) (*models.Connection, error) {
	var conn models.Connection
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&conn).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &conn, nil
}

// ListConnections returns every record of a user ordered by provider.
func (s *Store) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("provider").
		Find(&conns).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return conns, nil
}

// UpsertConnection stores conn, replacing the token fields of any existing
// record for the same (user, provider). The stored record is returned.
func (s *Store) UpsertConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	record := *conn
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_user_id",
			"email",
			"access_token",
			"refresh_token",
			"token_type",
			"expires_at",
			"scopes",
			"last_refreshed_at",
			"updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return s.GetConnection(ctx, record.UserID, record.Provider)
}

// UpdateConnection runs fn on the record for (userID, provider) inside a
// transaction holding the row lock, then applies the mutation fn returns.
// The mutation is committed even when fn also returns an error; that error
// is returned to the caller. The returned record is nil after Remove.
func (s *Store) UpdateConnection(
	ctx context.Context,
	userID, provider string,
	fn func(conn *models.Connection) (Mutation, error),
) (*models.Connection, error) {
	var (
		result *models.Connection
		fnErr  error
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if s.driver != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var conn models.Connection
		if err := q.Where("user_id = ? AND provider = ?", userID, provider).
			First(&conn).Error; err != nil {
			return err
		}

		var mutation Mutation
		mutation, fnErr = fn(&conn)

		switch mutation {
		case Save:
			if err := tx.Save(&conn).Error; err != nil {
				return err
			}
			result = &conn
		case Remove:
			if err := tx.Delete(&models.Connection{}, "id = ?", conn.ID).Error; err != nil {
				return err
			}
		default:
			result = &conn
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return result, fnErr
}

// DeleteConnection removes the record for (userID, provider). Deleting a
// missing record is not an error.
func (s *Store) DeleteConnection(ctx context.Context, userID, provider string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.Connection{}).Error
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// CountConnectionsByProvider returns the number of stored records per provider.
func (s *Store) CountConnectionsByProvider(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Provider string
		Count    int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Connection{}).
		Select("provider, count(*) AS count").
		Group("provider").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapErr(err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.Count
	}
	return counts, nil
}
