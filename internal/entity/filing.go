package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Filing is one regulatory filing observed for a company. The accession
// number is globally unique, so re-ingesting the same filing is a no-op.
type Filing struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CompanyID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	FilingType      string         `gorm:"not null" json:"filing_type"`
	FilingDate      time.Time      `gorm:"not null" json:"filing_date"`
	AccessionNumber string         `gorm:"unique;not null" json:"accession_number"`
	ContentHash     string         `json:"content_hash"`
	Sections        datatypes.JSON `json:"sections"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Filing model.
func (Filing) TableName() string {
	return "filings"
}
