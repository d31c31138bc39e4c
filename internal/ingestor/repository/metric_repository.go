package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-metrics-ingestor/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateRecord is returned for unique-constraint violations outside
// the natural key, such as two tickers racing to register the same regulator
// CIK. Natural-key collisions are never an error; they take the upsert path.
var ErrDuplicateRecord = errors.New("duplicate record")

// MetricRepository persists normalized metric records with idempotent upsert
// semantics on the natural key (company_id, metric_type, observation_date,
// period_type) and exposes the read accessors used by downstream reporting.
type MetricRepository interface {
	Upsert(ctx context.Context, record *entity.MetricRecord) error
	BulkUpsert(ctx context.Context, records []entity.MetricRecord) (int, error)
	GetLatest(ctx context.Context, companyID uuid.UUID, metricType string) (*entity.MetricRecord, error)
	GetSeries(ctx context.Context, companyID uuid.UUID, metricType string, periods int) ([]entity.MetricRecord, error)
	CalculateGrowthRate(ctx context.Context, companyID uuid.UUID, metricType string, periods int) (*float64, error)
}

// NewMetricRepository creates a new MetricRepository backed by gorm.
func NewMetricRepository(db *gorm.DB) MetricRepository {
	return &metricRepository{db: db}
}

type metricRepository struct {
	db *gorm.DB
}

var naturalKeyColumns = []clause.Column{
	{Name: "company_id"},
	{Name: "metric_type"},
	{Name: "observation_date"},
	{Name: "period_type"},
}

// Upsert inserts the record or, on natural-key collision, updates the
// mutable columns of the existing row. The conflict resolution happens in
// the store's native insert-or-update primitive, so concurrent writers for
// the same key serialize without application-level locking.
func (r *metricRepository) Upsert(ctx context.Context, record *entity.MetricRecord) error {
	if record.IngestedAt.IsZero() {
		record.IngestedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   naturalKeyColumns,
		DoUpdates: clause.AssignmentColumns([]string{"value", "unit", "source", "confidence", "ingested_at"}),
	}).Create(record).Error
}

// BulkUpsert applies Upsert to each record. A failing record does not abort
// the rest of the batch; the stored count and a joined error are returned.
func (r *metricRepository) BulkUpsert(ctx context.Context, records []entity.MetricRecord) (int, error) {
	stored := 0
	var errs []error
	for i := range records {
		if err := r.Upsert(ctx, &records[i]); err != nil {
			errs = append(errs, fmt.Errorf("record %s/%s: %w", records[i].MetricType, records[i].PeriodType, err))
			continue
		}
		stored++
	}
	return stored, errors.Join(errs...)
}

// GetLatest returns the most recent observation by date, or nil when the
// company has no observations of that metric.
func (r *metricRepository) GetLatest(ctx context.Context, companyID uuid.UUID, metricType string) (*entity.MetricRecord, error) {
	var record entity.MetricRecord
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND metric_type = ?", companyID, metricType).
		Order("observation_date DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetSeries returns the most recent N observations ordered ascending by
// date.
func (r *metricRepository) GetSeries(ctx context.Context, companyID uuid.UUID, metricType string, periods int) ([]entity.MetricRecord, error) {
	if periods <= 0 {
		return nil, nil
	}

	var records []entity.MetricRecord
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND metric_type = ?", companyID, metricType).
		Order("observation_date DESC").
		Limit(periods).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	// Reverse into ascending order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// CalculateGrowthRate computes (latest - older) / older * 100 over the given
// number of periods. It returns nil, never an error or infinity, when either
// endpoint is missing or the older value is exactly zero.
func (r *metricRepository) CalculateGrowthRate(ctx context.Context, companyID uuid.UUID, metricType string, periods int) (*float64, error) {
	if periods <= 0 {
		return nil, nil
	}

	series, err := r.GetSeries(ctx, companyID, metricType, periods+1)
	if err != nil {
		return nil, err
	}
	if len(series) < periods+1 {
		return nil, nil
	}

	older := series[0]
	latest := series[len(series)-1]
	if older.Value == nil || latest.Value == nil || *older.Value == 0 {
		return nil, nil
	}

	growth := (*latest.Value - *older.Value) / *older.Value * 100
	return &growth, nil
}
