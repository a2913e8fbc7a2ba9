package database

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/maitri/internal/models"
)

const sqlitePrefix = "sqlite:"

var db *gorm.DB

// Connect initializes the database connection and runs migrations. It exits the
// process when the database cannot be reached.
func Connect(dsn string, debug bool) *gorm.DB {
	if db != nil {
		return db
	}

	conn, err := Open(dsn, debug)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	db = conn
	return db
}

// newLogger logs slow queries and errors, or every statement in debug mode.
// Missing rows are routine lookups, not errors.
func newLogger(w logger.Writer, debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open connects to PostgreSQL (postgres:// DSNs) or to an embedded SQLite file
// (sqlite:<path>) and migrates the schema.
func Open(dsn string, debug bool) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: newLogger(log.New(os.Stdout, "\r\n", log.LstdFlags), debug)}

	var (
		conn *gorm.DB
		err  error
	)

	if IsSQLite(dsn) {
		conn, err = gorm.Open(sqlite.Open(sqliteDSN(dsn)), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		// A single connection serializes writers.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if err := ensureDatabase(dsn); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, err
		}
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return conn, nil
}

// IsSQLite reports whether the DSN selects the embedded store.
func IsSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, sqlitePrefix) || strings.HasSuffix(dsn, ".db")
}

func sqliteDSN(dsn string) string {
	path := strings.TrimPrefix(dsn, sqlitePrefix)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.GiftCard{},
		&models.GiftCardHistory{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderHistory{},
		&models.Payment{},
		&models.AdminOTP{},
		&models.SecurityToken{},
		&models.SecuritySetting{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	return nil
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Printf("[Database] creating database %s", dbName)
	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
