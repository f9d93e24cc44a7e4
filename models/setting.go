package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LastCustomerKey stores the last customer number seen by the webhook, so an
// administrator can omit the target in commands.
const LastCustomerKey = "last_customer"

// Setting is a single global key-value row, last write wins.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func (Setting) TableName() string {
	return "settings"
}

// GetSetting returns the stored value, or "" when absent.
func GetSetting(db *gorm.DB, key string) string {
	var s Setting
	if err := db.First(&s, "`key` = ?", key).Error; err != nil {
		return ""
	}
	return s.Value
}

// SetSetting upserts a settings row.
func SetSetting(db *gorm.DB, key, value string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}
