package repository

import (
	"context"

	"golang-metrics-ingestor/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FilingRepository persists regulatory filings. Filings are append-only and
// deduplicated on the accession number.
type FilingRepository interface {
	CreateIgnoreConflict(ctx context.Context, filing *entity.Filing) (bool, error)
	GetByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]entity.Filing, error)
}

// NewFilingRepository creates a new FilingRepository backed by gorm.
func NewFilingRepository(db *gorm.DB) FilingRepository {
	return &filingRepository{db: db}
}

type filingRepository struct {
	db *gorm.DB
}

// CreateIgnoreConflict inserts the filing unless its accession number is
// already stored. The bool reports whether a row was inserted.
func (r *filingRepository) CreateIgnoreConflict(ctx context.Context, filing *entity.Filing) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "accession_number"}},
		DoNothing: true,
	}).Create(filing)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetByCompany returns the most recent filings for a company.
func (r *filingRepository) GetByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]entity.Filing, error) {
	var filings []entity.Filing
	query := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("filing_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&filings).Error; err != nil {
		return nil, err
	}
	return filings, nil
}
