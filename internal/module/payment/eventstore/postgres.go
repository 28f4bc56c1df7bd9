package eventstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookEventRecord is the persisted dedup row.
type WebhookEventRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Provider  string `gorm:"size:32;not null;uniqueIndex:idx_webhook_event,priority:1"`
	EventID   string `gorm:"size:255;not null;uniqueIndex:idx_webhook_event,priority:2"`
	CreatedAt time.Time
}

// TableName sets the table name.
func (WebhookEventRecord) TableName() string {
	return "webhook_events"
}

// Postgres deduplicates through a unique index, surviving restarts and
// shared across instances.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres creates a Postgres-backed store and migrates its table.
func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&WebhookEventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate webhook events: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	record := WebhookEventRecord{Provider: provider, EventID: eventID}
	result := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("mark webhook event: %w", result.Error)
	}
	// Zero rows affected means the conflict target already existed.
	return result.RowsAffected == 0, nil
}
