// database_utils should be the canonical place to put shared DB utils.
// It should not include:
// 1. Any util that doesn't manipulate DB
// 2. Any util that contains business logic
package utils

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/peek4c/peek4c/app_config"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestDBPrefix         = "testonlydb_"
	TestDBNameCharLength = 8

	sqlitePragmas = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
)

// GetDBConnection opens the database described by the db section of the app
// config. It does not create or migrate any table.
func GetDBConnection(c app_config.DBConfig) (*gorm.DB, error) {
	switch c.Driver {
	case app_config.DriverSqlite:
		return getSqliteDB(c.DSN)
	case app_config.DriverPostgres:
		return getDB(postgres.Open(c.DSN))
	}
	return nil, errors.Errorf("unsupported db driver %q", c.Driver)
}

func getSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn = dsn + "?" + sqlitePragmas
	}
	db, err := getDB(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}

	// The local store is single user. One connection serializes writers and
	// avoids SQLITE_BUSY between goroutines.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

func getDB(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// CreateTempDB opens an empty sqlite database for testing. Note that this
// function should only be called in a testing environment with test state
// manager testing.T. The file lives in the test's temp dir, so there is
// nothing to drop afterwards; the connection is closed on cleanup.
//
// Schema creation is left to the caller (store.New) so that schema init
// itself stays under test.
func CreateTempDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbName := TestDBPrefix + RandomAlphabetString(TestDBNameCharLength) + ".db"
	db, err := getSqliteDB(filepath.Join(t.TempDir(), dbName))
	if err != nil {
		t.Fatalf("fail to create temp DB %s: %v", dbName, err)
	}
	t.Cleanup(func() {
		// Proactively close instead of deferring to GC, otherwise the temp dir
		// removal can race an open file handle.
		if conn, err := db.DB(); err == nil {
			conn.Close()
		}
	})
	return db
}
