package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LaneRepository struct {
	db *gorm.DB
}

func NewLaneRepository(db *gorm.DB) *LaneRepository {
	return &LaneRepository{db: db}
}

// LaneEvent is one vehicle passage reported by the roadside loop
// sensor. Analysis snapshots and signal decisions are deliberately not
// stored; only sensor telemetry is.
type LaneEvent struct {
	ID        int64          `gorm:"primaryKey"`
	Lane      string         `gorm:"not null;index"`
	Details   datatypes.JSON `gorm:"type:jsonb"`
	CountedAt time.Time      `gorm:"not null;index"`
	CreatedAt time.Time
}

func (LaneEvent) TableName() string { return "lane_events" }

func (r *LaneRepository) CreateLaneEvent(ctx context.Context, event *LaneEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// CountsByLane returns passage totals per lane since the given time.
func (r *LaneRepository) CountsByLane(ctx context.Context, since time.Time) (map[string]int64, error) {
	type row struct {
		Lane  string
		Total int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&LaneEvent{}).
		Select("lane, count(*) as total").
		Where("counted_at >= ?", since).
		Group("lane").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rec := range rows {
		counts[rec.Lane] = rec.Total
	}
	return counts, nil
}

// RecentEvents returns the newest passages first.
func (r *LaneRepository) RecentEvents(ctx context.Context, limit int) ([]LaneEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	var events []LaneEvent
	err := r.db.WithContext(ctx).
		Order("counted_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteOldEvents drops passages older than the given number of days.
func (r *LaneRepository) DeleteOldEvents(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("counted_at < ?", cutoff).
		Delete(&LaneEvent{})
	return result.RowsAffected, result.Error
}
