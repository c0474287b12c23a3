package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// snapshot is one owner's full cart serialized as a JSON blob, the sqlite
// equivalent of the single localStorage key the storefront used.
type snapshot struct {
	Owner     string `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (snapshot) TableName() string { return "cart_snapshots" }

// SQLiteCache is the durable local cart cache.
type SQLiteCache struct {
	db *gorm.DB
}

func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cart cache: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&snapshot{}); err != nil {
		return nil, fmt.Errorf("cart cache: migrate: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Load(ctx context.Context, owner string) ([]Line, error) {
	var snap snapshot
	err := c.db.WithContext(ctx).Where("owner = ?", owner).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []Line
	if err := json.Unmarshal(snap.Data, &lines); err != nil {
		// A corrupt snapshot is dropped, same as clearing a bad cache entry.
		_ = c.db.WithContext(ctx).Delete(&snapshot{}, "owner = ?", owner).Error
		return nil, nil
	}
	return lines, nil
}

func (c *SQLiteCache) Save(ctx context.Context, owner string, lines []Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	snap := snapshot{Owner: owner, Data: data, UpdatedAt: time.Now()}
	return c.db.WithContext(ctx).Save(&snap).Error
}

func (c *SQLiteCache) Delete(ctx context.Context, owner string) error {
	return c.db.WithContext(ctx).Delete(&snapshot{}, "owner = ?", owner).Error
}
