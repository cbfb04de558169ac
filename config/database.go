package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var db *gorm.DB

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env. Never required in production; a local-dev
	// convenience only.
	_ = godotenv.Load()
}

// ConnectDatabaseWithRetry opens the embedded SQLite store at path,
// retrying with exponential backoff (capped at 30s) up to the configured
// attempt count (maxRetries <= 0 retries without limit). It returns nil
// once the attempts are used up. main() calls it, through
// reconstore.Open, before the HTTP listener starts.
func ConnectDatabaseWithRetry(path string, maxRetries int) *gorm.DB {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"

	var attempt int
	for {
		attempt++
		var err error
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig())
		if err == nil {
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to reconciliation store (attempt=%d)", attempt)
			return db
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Printf("failed to connect reconciliation store after %d attempts: %v", attempt, err)
			return nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect reconciliation store (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initGormLog(),
		NamingStrategy: initNamingStrategy(),
		TranslateError: true,
	}
}

func initGormLog() logger.Interface {
	return logger.Default.LogMode(logger.Error)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
