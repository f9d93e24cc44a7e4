package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerCompany maps a customer number to its assigned company. Set by an
// administrator; overrides whatever the session cached, on every turn.
type CustomerCompany struct {
	FromNumber string    `gorm:"primaryKey;size:64" json:"from_number"`
	CompanyID  string    `gorm:"size:40;not null" json:"company_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CustomerCompany) TableName() string {
	return "customer_company"
}

// AssignCompany upserts the mapping, last write wins.
func AssignCompany(db *gorm.DB, fromNumber, companyID string) error {
	row := CustomerCompany{FromNumber: fromNumber, CompanyID: companyID, UpdatedAt: time.Now().UTC()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"company_id", "updated_at"}),
	}).Create(&row).Error
}

// AssignedCompanyID returns the mapped company for a customer, if any.
func AssignedCompanyID(db *gorm.DB, fromNumber string) (string, bool) {
	var row CustomerCompany
	if err := db.First(&row, "from_number = ?", fromNumber).Error; err != nil {
		return "", false
	}
	return row.CompanyID, true
}

// RemoveAssignment deletes the mapping for a customer.
func RemoveAssignment(db *gorm.DB, fromNumber string) error {
	return db.Delete(&CustomerCompany{}, "from_number = ?", fromNumber).Error
}

// ListAssignments returns the most recent assignments first.
func ListAssignments(db *gorm.DB, limit int) ([]CustomerCompany, error) {
	var out []CustomerCompany
	if err := db.Order("updated_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
