package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/RamiroMoyano/whatsapp-bot/utils"
)

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentReported = "payment_reported"
)

// Order statuses. OrderStatus additionally accepts administrator-set free text.
const (
	OrderConfirmed = "confirmed"
	OrderPaid      = "paid"
	OrderDelivered = "delivered"
	OrderReported  = "payment_reported"
)

// Order is an immutable record of a confirmed purchase; only the status
// fields and DeliveredAt change after creation.
type Order struct {
	ID                string     `gorm:"primaryKey;size:20" json:"id"`
	CreatedAt         time.Time  `json:"created_at"`
	FromNumber        string     `gorm:"size:64;index" json:"from_number"`
	CompanyID         string     `gorm:"size:40;index" json:"company_id"`
	Name              string     `gorm:"size:120" json:"name"`
	Contact           string     `gorm:"size:120" json:"contact"`
	Notes             string     `gorm:"type:text" json:"notes"`
	ItemsJSON         string     `gorm:"column:items_json;type:text" json:"items_json"`
	ItemsDetailedJSON string     `gorm:"column:items_detailed_json;type:text" json:"items_detailed_json"`
	Total             float64    `json:"total"`
	PaymentStatus     string     `gorm:"size:30;default:pending" json:"payment_status"`
	PaymentMethod     string     `gorm:"size:60" json:"payment_method"`
	OrderStatus       string     `gorm:"size:60" json:"order_status"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderLine is one priced line of the detailed breakdown.
type OrderLine struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Qty      int     `json:"qty"`
	Unit     float64 `json:"unit"`
	Subtotal float64 `json:"subtotal"`
}

// Lines decodes the detailed breakdown; corrupt blobs yield nil.
func (o *Order) Lines() []OrderLine {
	var lines []OrderLine
	if err := json.Unmarshal([]byte(o.ItemsDetailedJSON), &lines); err != nil {
		return nil
	}
	return lines
}

// CreateOrder inserts the order, regenerating the id on the unlikely
// collision with an existing row.
func CreateOrder(db *gorm.DB, o *Order) error {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if o.ID == "" {
			o.ID = utils.GenerateOrderID()
		}
		err := db.Create(o).Error
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			o.ID = ""
			continue
		}
		return err
	}
	return fmt.Errorf("could not generate a unique order id after %d attempts", maxAttempts)
}

// GetOrder fetches an order by id.
func GetOrder(db *gorm.DB, id string) (*Order, error) {
	var o Order
	if err := db.First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderFilter narrows ListOrders. Zero values mean "no constraint".
type OrderFilter struct {
	Day           string // UTC YYYY-MM-DD
	PaymentStatus string
	OrderStatus   string
	FromNumber    string
	Limit         int
}

// ListOrders returns orders newest-first under the given filter.
func ListOrders(db *gorm.DB, f OrderFilter) ([]Order, error) {
	q := db.Model(&Order{})
	if f.Day != "" {
		start, err := time.Parse("2006-01-02", f.Day)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", f.Day, err)
		}
		q = q.Where("created_at >= ? AND created_at < ?", start, start.Add(24*time.Hour))
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.OrderStatus != "" {
		q = q.Where("order_status = ?", f.OrderStatus)
	}
	if f.FromNumber != "" {
		q = q.Where("from_number = ?", f.FromNumber)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []Order
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaymentReported records the customer's payment claim. A claim, not a
// verified payment.
func MarkPaymentReported(db *gorm.DB, id string) error {
	return db.Model(&Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_status": PaymentReported,
		"order_status":   OrderReported,
	}).Error
}

// SetOrderPaid marks the order paid by an administrator.
func SetOrderPaid(db *gorm.DB, id string) error {
	return db.Model(&Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_status": PaymentPaid,
		"order_status":   OrderPaid,
	}).Error
}

// SetOrderDelivered marks the order delivered, stamping DeliveredAt once.
func SetOrderDelivered(db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.Model(&Order{}).Where("id = ? AND delivered_at IS NULL", id).Updates(map[string]interface{}{
		"order_status": OrderDelivered,
		"delivered_at": now,
	}).Error
}

// SetOrderStatus sets an administrator-chosen free-text status.
func SetOrderStatus(db *gorm.DB, id, status string) error {
	return db.Model(&Order{}).Where("id = ?", id).Update("order_status", status).Error
}
