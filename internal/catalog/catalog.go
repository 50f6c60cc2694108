// Package catalog keeps a local record of shared files and completed
// transfers.
package catalog

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

type Share struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Path      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Transfer struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"index;not null"`
	Peer      string    `gorm:"not null"`
	Direction Direction `gorm:"not null"`
	Size      int64
	CreatedAt time.Time
}

type Catalog struct {
	db *gorm.DB
}

// Open opens or creates the sqlite database at path and migrates the schema.
// ":memory:" gives a private in-memory catalog.
func Open(path string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	// Each new connection to ":memory:" would see an empty database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Share{}, &Transfer{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}

	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
