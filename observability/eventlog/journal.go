package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"farmmarket/core/events"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Record is the persisted form of a committed marketplace event.
type Record struct {
	Sequence   uint64    `gorm:"primaryKey;autoIncrement"`
	ID         uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Type       string    `gorm:"index;not null"`
	OrderID    string    `gorm:"index"`
	Attributes string    `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

func (Record) TableName() string { return "market_events" }

// Entry is a decoded journal record.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Query filters List. Zero values match everything.
type Query struct {
	Types   []string
	OrderID string
	After   uint64
	Limit   int
}

// Journal appends every emitted event to a SQL table so that RPC clients and
// exports can page through history.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open connects to dsn. postgres:// and postgresql:// URLs use the postgres
// driver; anything else is treated as a sqlite path or URI.
func Open(dsn string) (*Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Journal{db: db, logger: slog.Default(), nowFn: time.Now}, nil
}

func (j *Journal) SetLogger(logger *slog.Logger) {
	if logger != nil {
		j.logger = logger
	}
}

// Append stores evt and returns its sequence number.
func (j *Journal) Append(ctx context.Context, evt events.Event) (uint64, error) {
	if evt == nil || evt.Event() == nil {
		return 0, errors.New("eventlog: nil event")
	}
	payload := evt.Event()
	encoded, err := json.Marshal(payload.Attributes)
	if err != nil {
		return 0, err
	}
	record := Record{
		ID:         uuid.New(),
		Type:       payload.Type,
		OrderID:    payload.Attr("orderId"),
		Attributes: string(encoded),
		CreatedAt:  j.nowFn().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(&record).Error; err != nil {
		return 0, err
	}
	return record.Sequence, nil
}

// Emit implements events.Emitter. Failures are logged; the event has already
// been committed to marketplace state.
func (j *Journal) Emit(evt events.Event) {
	if _, err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// List returns entries in sequence order.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	tx := j.db.WithContext(ctx).Model(&Record{}).Where("sequence > ?", q.After)
	if len(q.Types) > 0 {
		tx = tx.Where("type IN ?", q.Types)
	}
	if q.OrderID != "" {
		tx = tx.Where("order_id = ?", strings.ToLower(q.OrderID))
	}
	var records []Record
	if err := tx.Order("sequence ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("eventlog: decode record %d: %w", r.Sequence, err)
		}
		out = append(out, Entry{
			Sequence:   r.Sequence,
			ID:         r.ID.String(),
			Type:       r.Type,
			Attributes: attrs,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
