// Package database opens the gorm connection behind the persistent store
// backends. The shared Postgres database is preferred; when it is down the
// manager falls back to a local SQLite file so a review session stays
// writable offline.
package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/framepoint/annotate/internal/model"
)

const sharedMaxOpenConns = 10

// Manager holds the live connection and remembers whether it had to fall
// back. ShouldSaveLocal tells the caller the session is running off the
// local file and will need syncing later.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates an unconnected manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect tries Postgres first and pings it; any failure on that path
// switches to the SQLite fallback. Only a failure of both is an error.
func (m *Manager) Connect() error {
	db, err := m.openPostgres()
	if err == nil {
		err = m.adopt(db)
	}
	if err != nil {
		m.Logger.Error().Err(err).Msg("Shared database unavailable, falling back to SQLite")
		return m.fallbackToSqlite()
	}

	m.IsValid = true
	m.SqlDB.SetMaxOpenConns(sharedMaxOpenConns)
	m.Logger.Info().Msg("Connected to shared database")
	return nil
}

// adopt wires the gorm handle and verifies the connection is live.
func (m *Manager) adopt(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	m.DB = db
	m.SqlDB = sqlDB
	return nil
}

func (m *Manager) fallbackToSqlite() error {
	db, err := OpenSqlite(m.SqliteFilePath)
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("opening local SQLite fallback: %w", err)
	}
	if err := m.adopt(db); err != nil {
		m.IsValid = false
		return err
	}
	m.ShouldSaveLocal = true
	m.IsValid = true
	if m.SqliteFilePath != "" {
		m.Logger.Info().Str("path", m.SqliteFilePath).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using in-memory SQLite DB")
	}
	return nil
}

func (m *Manager) openPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
	m.Logger.Debug().Str("host", viper.GetString("db.host")).Msg("Connecting to Postgres")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite opens a SQLite database tuned for single-writer session use.
// An empty path yields a shared in-memory database.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	return db, nil
}

// Setup migrates the annotation and comment tables.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		m.IsValid = false
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
