package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/order"
)

// Config controls the order audit sink. An empty DSN disables auditing.
type Config struct {
	// DSN is a postgres connection string.
	DSN string
}

// OrderRecord is one audited order, upserted on every state change so the
// row always shows the latest lifecycle state.
type OrderRecord struct {
	ID         uint   `gorm:"primarykey"`
	ClientID   string `gorm:"uniqueIndex;size:64"`
	ExchangeID int64
	Symbol     string `gorm:"size:32;index"`
	Side       string `gorm:"size:8"`
	Type       string `gorm:"size:8"`
	Quantity   string `gorm:"size:40"`
	Price      string `gorm:"size:40"`
	Status     string `gorm:"size:16"`
	PlacedAt   time.Time
	UpdatedAt  time.Time
	CreatedAt  time.Time
}

// TableName fixes the table name.
func (OrderRecord) TableName() string {
	return "order_audit"
}

// Sink writes order outcomes to Postgres. Audit rows live outside the
// event log; losing them never corrupts the stream.
type Sink struct {
	db *gorm.DB
}

// Open connects and migrates the audit schema. An empty DSN returns a
// nil sink, which every method treats as a no-op.
func Open(cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// RecordOrder upserts the order keyed by its ClientID.
func (s *Sink) RecordOrder(ctx context.Context, o order.Order) error {
	if s == nil {
		return nil
	}
	rec := OrderRecord{
		ClientID:   o.ClientID,
		ExchangeID: o.ExchangeID,
		Symbol:     o.Symbol,
		Side:       o.Side.String(),
		Type:       o.Type.String(),
		Quantity:   o.Quantity.String(),
		Price:      o.Price.String(),
		Status:     o.Status.String(),
		PlacedAt:   o.PlacedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

// Close releases the connection pool.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
