package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Company is a tracked entity in the ingestion universe. Companies are
// created once when first observed by any connector and only ever mutated to
// backfill descriptive fields.
type Company struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Ticker    string         `gorm:"uniqueIndex;not null" json:"ticker"`
	Name      string         `json:"name"`
	Sector    string         `json:"sector"`
	CIK       *string        `gorm:"column:cik;uniqueIndex" json:"cik,omitempty"`
	Aliases   pq.StringArray `gorm:"type:text[]" json:"aliases"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Company model.
func (Company) TableName() string {
	return "companies"
}

// BeforeCreate assigns a UUID when none was provided.
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
