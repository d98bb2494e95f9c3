package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Do NOT open the store in init(); the kiosk UI must come up even when the
	// data directory is still being provisioned. Call ConnectDraftStoreWithRetry
	// from main().
}

// DraftDBPath resolves the sqlite file that backs the durable draft store.
// Env override: DRAFT_DB_PATH. Defaults to <DORMOPS_DATA_DIR>/drafts.db.
func DraftDBPath() string {
	if p := strings.TrimSpace(os.Getenv("DRAFT_DB_PATH")); p != "" {
		return p
	}
	dir := strings.TrimSpace(os.Getenv("DORMOPS_DATA_DIR"))
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "drafts.db")
}

// ConnectDraftStoreWithRetry opens the local sqlite draft store and sets the
// global DB handle. Call this from main() AFTER the UI loop is running.
func ConnectDraftStoreWithRetry() {
	path := DraftDBPath()

	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), initConfig())
		if err == nil {
			// A kiosk client holds a single writer; keep the pool tiny.
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				sqlDB.SetMaxOpenConns(1)
				sqlDB.SetMaxIdleConns(1)
				sqlDB.SetConnMaxIdleTime(time.Minute)
			}

			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("draft store opened but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("opened draft store (attempt=%d path=%s)", attempt, path)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to open draft store (attempt=%d path=%s): %v; retrying in %s", attempt, path, err, sleep)
		time.Sleep(sleep)
	}
}

// SetDB swaps the global handle. Tests use this with an in-memory sqlite DB.
func SetDB(handle *gorm.DB) {
	db = handle
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
	return newLogger
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
	}
}
