package db

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hmaji/billfold/internal/config"
	"github.com/hmaji/billfold/internal/models"
)

// ConnectAndMigrate opens the database named by dsn and brings the schema up
// to date. SQLite is used for a file/:memory: DSN (dev and tests), postgres
// otherwise, with a short retry loop to ride out container start ordering.
// Schema setup is gorm AutoMigrate by default; MIGRATIONS=1 switches the
// postgres path to SQL migrations under ./migrations via golang-migrate.
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("empty DATABASE_DSN; check environment configuration")
	}

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var db *gorm.DB
	var err error
	if IsSQLite(dsn) {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
	} else {
		for i := 0; i < 10; i++ {
			db, err = gorm.Open(postgres.Open(dsn), cfg)
			if err == nil {
				break
			}
			log.Println("retrying DB connection...", err)
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to connect database after retries: %w", err)
		}
	}

	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Println("[DB] using DSN:", maskDSN(dsn))

	if config.ParseBool("MIGRATIONS", false) && !IsSQLite(dsn) {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := db.AutoMigrate(&models.Product{}); err != nil {
			return nil, fmt.Errorf("automigrate products: %w", err)
		}
	}

	if !db.Migrator().HasTable("products") {
		return nil, fmt.Errorf("missing table after migration: products")
	}

	if config.ParseBool("DB_SEED", false) {
		seed(db)
	}
	return db, nil
}

func maskDSN(dsn string) string {
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	return masked
}

// seed inserts a handful of demo catalog rows for development; each entry is
// skipped when a product with the same name already exists.
func seed(db *gorm.DB) {
	demo := []models.Product{
		{Name: "T-Shirt", Category: "Clothing", Price: 19.99, Description: "Plain cotton tee"},
		{Name: "Jeans", Category: "Clothing", Price: 49.90},
		{Name: "Mug", Category: "Kitchen", Price: 4.50, Description: "Ceramic, 300ml"},
		{Name: "Kettle", Category: "Kitchen", Price: 25.00},
	}
	for _, p := range demo {
		var existing models.Product
		if err := db.Where("name = ?", p.Name).First(&existing).Error; err == gorm.ErrRecordNotFound {
			db.Create(&p)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using the
// golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
