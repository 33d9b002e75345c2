package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// collectionRow is one serialized task collection.
type collectionRow struct {
	CollectionKey string `gorm:"column:collection_key;primarykey;size:191"`
	Payload       []byte `gorm:"column:payload;not null"`
	UpdatedAt     time.Time
}

// TableName returns the table name for collectionRow.
func (collectionRow) TableName() string {
	return "task_collections"
}

// SQLiteKV stores values in a SQLite table through gorm.
type SQLiteKV struct {
	db *gorm.DB
}

// OpenSQLiteKV opens (or creates) the database at dsn and migrates the
// collection table. Use ":memory:" for a throwaway database.
func OpenSQLiteKV(dsn string) (*SQLiteKV, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	return NewSQLiteKV(db)
}

// NewSQLiteKV wraps an existing gorm connection.
func NewSQLiteKV(db *gorm.DB) (*SQLiteKV, error) {
	if err := db.AutoMigrate(&collectionRow{}); err != nil {
		return nil, fmt.Errorf("migrating task_collections: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row collectionRow
	if err := s.db.WithContext(ctx).First(&row, "collection_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return row.Payload, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	row := collectionRow{CollectionKey: key, Payload: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&collectionRow{}, "collection_key = ?", key).Error; err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql handle: %w", err)
	}
	return sqlDB.Close()
}
