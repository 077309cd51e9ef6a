package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

// Document is one row of the documents table.
type Document struct {
	Key       string         `gorm:"primaryKey;type:varchar(128)"`
	Body      datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// TableName returns the table name.
func (Document) TableName() string {
	return "documents"
}

// DocumentDBAdapter implements DocumentStorePort on a jsonb table.
type DocumentDBAdapter struct {
	db *gorm.DB
}

// NewDocumentDBAdapter creates a new document database adapter.
func NewDocumentDBAdapter(db *gorm.DB) *DocumentDBAdapter {
	return &DocumentDBAdapter{db: db}
}

// Migrate creates the documents table.
func (a *DocumentDBAdapter) Migrate(ctx context.Context) error {
	return a.db.WithContext(ctx).AutoMigrate(&Document{})
}

func (a *DocumentDBAdapter) ReadJSON(ctx context.Context, key string, dst any) (bool, error) {
	var doc Document
	if err := a.db.WithContext(ctx).First(&doc, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find document %s: %w", key, err)
	}
	if err := json.Unmarshal(doc.Body, dst); err != nil {
		return false, fmt.Errorf("decode document %s: %w", key, err)
	}
	return true, nil
}

func (a *DocumentDBAdapter) WriteJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", key, err)
	}
	doc := Document{Key: key, Body: datatypes.JSON(raw), UpdatedAt: time.Now()}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
}

func (a *DocumentDBAdapter) Delete(ctx context.Context, key string) error {
	return a.db.WithContext(ctx).Delete(&Document{}, "key = ?", key).Error
}

var _ outbound.DocumentStorePort = (*DocumentDBAdapter)(nil)
