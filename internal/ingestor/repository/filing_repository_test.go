package repository

import (
	"context"
	"testing"
	"time"

	"golang-metrics-ingestor/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilingRepository_CreateIgnoreConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewFilingRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, "AAPL")

	filing := entity.Filing{
		CompanyID:       company.ID,
		FilingType:      "10-K",
		FilingDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		AccessionNumber: "0000320193-24-000006",
		ContentHash:     "abc123",
	}

	created, err := repo.CreateIgnoreConflict(ctx, &filing)
	require.NoError(t, err)
	assert.True(t, created)

	duplicate := entity.Filing{
		CompanyID:       company.ID,
		FilingType:      "10-K",
		FilingDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		AccessionNumber: "0000320193-24-000006",
	}
	created, err = repo.CreateIgnoreConflict(ctx, &duplicate)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&entity.Filing{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFilingRepository_GetByCompany(t *testing.T) {
	db := newTestDB(t)
	repo := NewFilingRepository(db)
	ctx := context.Background()
	company := seedCompany(t, db, "AAPL")
	other := seedCompany(t, db, "MSFT")

	dates := []time.Time{
		time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		filing := entity.Filing{
			CompanyID:       company.ID,
			FilingType:      "10-Q",
			FilingDate:      d,
			AccessionNumber: time.Now().Format("20060102") + string(rune('a'+i)),
		}
		_, err := repo.CreateIgnoreConflict(ctx, &filing)
		require.NoError(t, err)
	}
	_, err := repo.CreateIgnoreConflict(ctx, &entity.Filing{
		CompanyID:       other.ID,
		FilingType:      "10-K",
		FilingDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AccessionNumber: "other-1",
	})
	require.NoError(t, err)

	filings, err := repo.GetByCompany(ctx, company.ID, 2)
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.True(t, filings[0].FilingDate.After(filings[1].FilingDate))
	for _, f := range filings {
		assert.Equal(t, company.ID, f.CompanyID)
	}
}
