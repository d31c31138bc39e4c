package entity

import (
	"time"

	"github.com/google/uuid"
)

// MetricRecord is one observed value of one metric for one company at one
// point in time. The composite unique index is the natural key: a later
// write with the same key replaces the earlier one.
type MetricRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_metric_records_natural_key" json:"company_id"`
	MetricType      string    `gorm:"not null;uniqueIndex:idx_metric_records_natural_key" json:"metric_type"`
	ObservationDate time.Time `gorm:"not null;uniqueIndex:idx_metric_records_natural_key" json:"observation_date"`
	PeriodType      string    `gorm:"not null;uniqueIndex:idx_metric_records_natural_key" json:"period_type"`
	Value           *float64  `json:"value"`
	Unit            string    `json:"unit"`
	Source          string    `gorm:"not null" json:"source"`
	Confidence      float64   `gorm:"not null" json:"confidence"`
	IngestedAt      time.Time `gorm:"not null" json:"ingested_at"`
}

// TableName specifies the table name for the MetricRecord model.
func (MetricRecord) TableName() string {
	return "metric_records"
}
