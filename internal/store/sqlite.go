package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/CoderLord25/ZenSocial/internal/earnings"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	config "github.com/CoderLord25/ZenSocial/internal/init"
	"github.com/CoderLord25/ZenSocial/internal/logger"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var logg = logger.New()

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrPostNotFound    = errors.New("post not found")
	ErrSessionNotFound = errors.New("session not found or expired")
)

// --- Interfaces ---

type StoreInterface interface {
	// Accounts
	CreateUser(ctx context.Context, zenID identity.ZenID) (*models.User, error)
	EnsureWalletUser(ctx context.Context, wallet identity.Wallet) (*models.User, bool, error)
	ResolveAccount(ctx context.Context, id identity.AccountIdentifier) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) error

	// Sessions
	CreateSession(ctx context.Context, zenID string, ttl time.Duration) (*models.Session, error)
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Posts & interactions
	CreatePost(ctx context.Context, userID int64, content, media string) (*models.Post, error)
	GetPost(ctx context.Context, postID int64) (*models.Post, error)
	ListPostsByUser(ctx context.Context, userID int64) ([]models.Post, error)
	ListRecentPosts(ctx context.Context, limit int) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID, userID int64) (models.ToggleState, error)
	ToggleRepost(ctx context.Context, postID, userID int64) (models.ToggleState, error)
	AddComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error)

	// Earnings
	EngagementTotals(ctx context.Context, userID int64) (earnings.Totals, error)
	SnapshotEarnings(ctx context.Context, userID int64) ([]models.EarningsRecord, error)

	// Notifications
	AddNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID int64) error

	Close()
}

// --- Store Implementation ---

type Store struct {
	DB *gorm.DB
}

// New opens the SQLite database configured in the config package.
func New() (StoreInterface, error) {
	return Open(config.Get().DBPath)
}

// Open applies pending migrations to the database at path and connects to it.
func Open(path string) (*Store, error) {
	if err := runMigrations(path); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite has a single writer; one connection serialises transactions
	// instead of surfacing SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	logg.Info("store", "Connected to SQLite database")
	return &Store{DB: db}, nil
}

func dsn(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// --- Migration runner ---

func runMigrations(path string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	dbURL := fmt.Sprintf("sqlite3://%s&x-migrations-table=schema_migrations", dsn(path))

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		version, _, _ := m.Version()
		logg.Info("store", fmt.Sprintf("Migrations applied successfully, schema version %d", version))
	}
	return nil
}

// Close gracefully closes the database handle.
func (s *Store) Close() {
	if s.DB == nil {
		return
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
		logg.Info("store", "SQLite database closed")
	}
}
