package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Session state machine nodes.
const (
	StateMenu       = "MENU"
	StateHuman      = "HUMAN"
	StateAskName    = "ASK_NAME"
	StateAskContact = "ASK_CONTACT"
	StateAskNotes   = "ASK_NOTES"
	StateAskAIMode  = "ASK_AI_MODE"
	StateReady      = "READY"
)

// AI modes.
const (
	AIModeOff  = "off"
	AIModeLite = "lite"
	AIModePro  = "pro"
)

// ErrSessionConflict is returned when a concurrent writer updated the session
// row between our read and our write.
var ErrSessionConflict = errors.New("session was modified concurrently")

// SessionData is the per-customer data bag. Unknown keys in stored blobs are
// dropped; missing keys get zero values merged over the defaults below.
type SessionData struct {
	CompanyID     string `json:"companyId"`
	AIMode        string `json:"aiMode"`
	AICount       int    `json:"aiCount"`
	AICountDate   string `json:"aiCountDate"`
	LastAIAt      int64  `json:"lastAiAt"`
	HumanNotified bool   `json:"humanNotified"`

	// Transient checkout fields, cleared after confirm/cancel.
	Name            string `json:"name,omitempty"`
	Contact         string `json:"contact,omitempty"`
	Notes           string `json:"notes,omitempty"`
	RequestedAIMode string `json:"requestedAiMode,omitempty"`
}

func defaultSessionData() SessionData {
	return SessionData{
		CompanyID: DefaultCompanyID,
		AIMode:    AIModeOff,
	}
}

// sessionRow is the persisted shape; Session is the decoded working copy.
type sessionRow struct {
	FromNumber  string `gorm:"primaryKey;size:64"`
	State       string `gorm:"size:20;not null"`
	CartJSON    string `gorm:"column:cart_json;type:text"`
	DataJSON    string `gorm:"column:data_json;type:text"`
	LastOrderID string `gorm:"column:last_order_id;size:20"`
	Version     int64  `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

func (sessionRow) TableName() string {
	return "sessions"
}

// SessionModel is the migration target for the sessions table.
func SessionModel() interface{} { return &sessionRow{} }

// Session is one customer's durable conversation state, decoded for use by
// the dispatcher. version backs the compare-and-swap on save.
type Session struct {
	FromNumber  string
	State       string
	Cart        []int
	Data        SessionData
	LastOrderID string

	version int64
	exists  bool
}

// GetSession loads the session for a customer, lazily defaulting to a fresh
// MENU session. Corrupt cart or data blobs decode to safe empty structures.
func GetSession(db *gorm.DB, fromNumber string) (*Session, error) {
	var row sessionRow
	err := db.First(&row, "from_number = ?", fromNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Session{
			FromNumber: fromNumber,
			State:      StateMenu,
			Cart:       []int{},
			Data:       defaultSessionData(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		FromNumber:  row.FromNumber,
		State:       row.State,
		LastOrderID: row.LastOrderID,
		version:     row.Version,
		exists:      true,
	}
	if s.State == "" {
		s.State = StateMenu
	}
	if err := json.Unmarshal([]byte(row.CartJSON), &s.Cart); err != nil || s.Cart == nil {
		s.Cart = []int{}
	}
	s.Data = defaultSessionData()
	if row.DataJSON != "" {
		var d SessionData
		if err := json.Unmarshal([]byte(row.DataJSON), &d); err == nil {
			s.Data = d
			if s.Data.CompanyID == "" {
				s.Data.CompanyID = DefaultCompanyID
			}
			if s.Data.AIMode == "" {
				s.Data.AIMode = AIModeOff
			}
		}
	}
	return s, nil
}

// SaveSession persists the session. Existing rows are written with a version
// compare-and-swap; a concurrent update surfaces as ErrSessionConflict so the
// caller can reload and re-apply.
func SaveSession(db *gorm.DB, s *Session) error {
	cart, err := json.Marshal(s.Cart)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}

	row := sessionRow{
		FromNumber:  s.FromNumber,
		State:       s.State,
		CartJSON:    string(cart),
		DataJSON:    string(data),
		LastOrderID: s.LastOrderID,
		Version:     s.version + 1,
		UpdatedAt:   time.Now().UTC(),
	}

	if !s.exists {
		if err := db.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSessionConflict
			}
			return err
		}
		s.exists = true
		s.version = row.Version
		return nil
	}

	res := db.Model(&sessionRow{}).
		Where("from_number = ? AND version = ?", s.FromNumber, s.version).
		Updates(map[string]interface{}{
			"state":         row.State,
			"cart_json":     row.CartJSON,
			"data_json":     row.DataJSON,
			"last_order_id": row.LastOrderID,
			"version":       row.Version,
			"updated_at":    row.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionConflict
	}
	s.version = row.Version
	return nil
}

// ClearCheckout wipes cart and transient checkout fields while preserving AI
// mode and usage counters.
func (s *Session) ClearCheckout() {
	s.Cart = []int{}
	s.Data.Name = ""
	s.Data.Contact = ""
	s.Data.Notes = ""
	s.Data.RequestedAIMode = ""
}
