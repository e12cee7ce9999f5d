package common

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDb opens the SQLite database used by every module.
func ConnectDb(dbFile string) (*gorm.DB, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("database file not set")
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", dbFile, err)
	}
	return db, nil
}
