package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

type Options struct {
	// Silent disables gorm's SQL logging.
	Silent bool
	// MaxOpenConns caps the pool when positive. SQLite in-memory databases
	// shared across goroutines want 1.
	MaxOpenConns int
}

func Connect(dsn string, opts Options) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if opts.Silent {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var dialector gorm.Dialector
	if IsPostgres(dsn) {
		log.Println("Connecting to PostgreSQL...")
		dialector = postgres.Open(dsn)
	} else {
		log.Println("Using SQLite for local development:", dsn)
		dialector = gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		})
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return db, nil
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Migrate creates or updates the tables of models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
