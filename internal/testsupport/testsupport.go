// Package testsupport holds the shared database and fixture helpers
// used by package tests.
package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sitepulse/internal/config"
	"sitepulse/internal/events"
	"sitepulse/internal/presence"
	"sitepulse/internal/sessions"
	"sitepulse/internal/sites"
)

// testDBCache caches test databases by test name so multiple calls
// within the same test share the same database.
var (
	testDBCache   = make(map[string]*gorm.DB)
	testDBCacheMu sync.Mutex
)

// TestDBManager wraps cartridge's TestDBManager with sitepulse's interface.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager.
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&events.PageView{},
		&sessions.Session{},
		&presence.Presence{},
		&sites.Site{},
	}
}

// SetupTestDB creates a test database with all sitepulse models
// migrated. Uses a named in-memory database with cache=shared so every
// connection within a test sees the same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Cache by root test name so helpers capturing the outer t behave
	// inside subtests.
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	// First GetConfig call wins; claim the test environment before
	// anything else resolves configuration.
	os.Setenv("SITEPULSE_ENV", config.Test)
	cfg := config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set SITEPULSE_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// GetLogger returns a test logger that only surfaces errors.
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CleanAllTables clears all non-system tables in the database.
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestSite registers a site for tests, reusing an existing row
// with the same public id.
func CreateTestSite(db *gorm.DB, publicID string) sites.Site {
	var site sites.Site
	if db.Where("public_id = ?", publicID).First(&site).Error != nil {
		site = sites.Site{
			PublicID: publicID,
			Domain:   publicID + ".example.com",
			Active:   true,
		}
		db.Create(&site)
	}
	return site
}

// NewPageViewInput returns a valid tracking payload with fresh visitor
// and session ids. Tests override fields as needed.
func NewPageViewInput(siteID string) *events.PageViewInput {
	return &events.PageViewInput{
		Type:      "pageview",
		SiteID:    siteID,
		VisitorID: uuid.NewString(),
		SessionID: uuid.NewString(),
		URL:       "https://shop.example.com/",
		Path:      "/",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// CollectPageView runs the full ingestion pipeline for a payload at a
// fixed instant.
func CollectPageView(t *testing.T, dbManager cartridge.DBManager, logger *slog.Logger, input *events.PageViewInput, at time.Time) {
	t.Helper()

	err := events.Collect(dbManager, logger, nil, &events.CollectInput{
		Input:     input,
		IPAddress: "203.0.113.10",
		Now:       at,
	})
	if err != nil {
		t.Fatalf("testsupport: failed to collect page view: %v", err)
	}
}
