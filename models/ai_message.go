package models

import (
	"time"

	"gorm.io/gorm"
)

// AIMessage is one turn of the generative conversation log, kept so the
// adapter can build a bounded context window per customer.
type AIMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FromNumber string    `gorm:"size:64;index" json:"from_number"`
	Role       string    `gorm:"size:20;not null" json:"role"` // 'user' or 'assistant'
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AIMessage) TableName() string {
	return "ai_messages"
}

// AppendAIMessage records one conversation turn.
func AppendAIMessage(db *gorm.DB, fromNumber, role, content string) error {
	return db.Create(&AIMessage{
		FromNumber: fromNumber,
		Role:       role,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}).Error
}

// RecentAIMessages returns the last n turns for a customer, oldest-first.
func RecentAIMessages(db *gorm.DB, fromNumber string, n int) ([]AIMessage, error) {
	var out []AIMessage
	if err := db.Where("from_number = ?", fromNumber).
		Order("id DESC").Limit(n).Find(&out).Error; err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
