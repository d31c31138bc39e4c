package repository

import (
	"context"
	"errors"
	"strings"

	"golang-metrics-ingestor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanyRepository manages the tracked-company universe. Companies are
// registered once per ticker and only ever mutated to backfill descriptive
// fields.
type CompanyRepository interface {
	GetOrCreate(ctx context.Context, ticker string, defaults entity.Company) (*entity.Company, bool, error)
	Backfill(ctx context.Context, company *entity.Company, defaults entity.Company) error
	GetByTicker(ctx context.Context, ticker string) (*entity.Company, error)
}

// NewCompanyRepository creates a new CompanyRepository backed by gorm.
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

type companyRepository struct {
	db *gorm.DB
}

// NormalizeTicker canonicalizes a ticker for lookup.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// GetOrCreate looks up a company by normalized ticker, inserting it when
// absent. The insert is conflict-tolerant on the ticker so concurrent
// callers for the same ticker converge on one row; the bool reports whether
// this call created it.
func (r *companyRepository) GetOrCreate(ctx context.Context, ticker string, defaults entity.Company) (*entity.Company, bool, error) {
	normalized := NormalizeTicker(ticker)
	if normalized == "" {
		return nil, false, errors.New("empty ticker")
	}

	existing, err := r.GetByTicker(ctx, normalized)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	company := defaults
	company.Ticker = normalized

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoNothing: true,
	}).Create(&company)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			// A unique violation outside the ticker, e.g. the CIK is already
			// registered to another company.
			return nil, false, ErrDuplicateRecord
		}
		return nil, false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return &company, true, nil
	}

	// Lost the insert race; fetch the winner.
	existing, err = r.GetByTicker(ctx, normalized)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("company vanished after conflicting insert")
	}
	return existing, false, nil
}

// Backfill fills descriptive fields that are still empty. Populated fields
// are never overwritten.
func (r *companyRepository) Backfill(ctx context.Context, company *entity.Company, defaults entity.Company) error {
	updates := map[string]interface{}{}
	if company.Name == "" && defaults.Name != "" {
		updates["name"] = defaults.Name
	}
	if company.Sector == "" && defaults.Sector != "" {
		updates["sector"] = defaults.Sector
	}
	if company.CIK == nil && defaults.CIK != nil {
		updates["cik"] = *defaults.CIK
	}
	if len(updates) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Model(company).Updates(updates).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRecord
	}
	return err
}

// GetByTicker returns the company for the normalized ticker, or nil.
func (r *companyRepository) GetByTicker(ctx context.Context, ticker string) (*entity.Company, error) {
	var company entity.Company
	err := r.db.WithContext(ctx).Where("ticker = ?", NormalizeTicker(ticker)).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}
