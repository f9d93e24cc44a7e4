package models

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DefaultCompanyID is the tenant every customer falls back to when no
// assignment and no session value resolve to an existing company.
const DefaultCompanyID = "babystepsbots"

var companyIDPattern = regexp.MustCompile(`^[a-z0-9_-]{3,40}$`)

// Company is one business profile sharing the bot: its sales persona, its
// catalog and its ruleset. Catalog and rules are stored as JSON text and read
// through the typed accessors, which tolerate malformed blobs.
type Company struct {
	ID          string    `gorm:"primaryKey;size:40" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Prompt      string    `gorm:"type:text" json:"prompt"`
	CatalogJSON string    `gorm:"column:catalog_json;type:text" json:"catalog_json"`
	RulesJSON   string    `gorm:"column:rules_json;type:text" json:"rules_json"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

// CatalogItem is one sellable entry. IDs are unique within a company.
type CatalogItem struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Rules is the per-company behavior knobs blob. Missing keys get defaults so
// legacy rows keep working.
type Rules struct {
	Tone              string   `json:"tone"`
	EmergencyKeywords []string `json:"emergencyKeywords,omitempty"`
	AllowHuman        bool     `json:"allowHuman"`
	AskNotes          bool     `json:"askNotes,omitempty"`
	AskAIMode         bool     `json:"askAiMode,omitempty"`
}

// Catalog decodes the catalog blob. A corrupt blob yields an empty catalog
// rather than failing the turn.
func (c *Company) Catalog() []CatalogItem {
	var items []CatalogItem
	if c.CatalogJSON == "" {
		return items
	}
	if err := json.Unmarshal([]byte(c.CatalogJSON), &items); err != nil {
		return nil
	}
	return items
}

// Rules decodes the rules blob, filling defaults for missing or corrupt data.
func (c *Company) Rules() Rules {
	r := Rules{Tone: "neutral", AllowHuman: true}
	if c.RulesJSON == "" {
		return r
	}
	if err := json.Unmarshal([]byte(c.RulesJSON), &r); err != nil {
		return Rules{Tone: "neutral", AllowHuman: true}
	}
	if r.Tone == "" {
		r.Tone = "neutral"
	}
	return r
}

// FindItem looks an item up by catalog id.
func (c *Company) FindItem(id int) (CatalogItem, bool) {
	for _, it := range c.Catalog() {
		if it.ID == id {
			return it, true
		}
	}
	return CatalogItem{}, false
}

// ValidCompanyID reports whether id is an acceptable tenant slug.
func ValidCompanyID(id string) bool {
	return companyIDPattern.MatchString(id)
}

// ValidateCatalogJSON ensures the payload parses as a JSON array.
func ValidateCatalogJSON(s string) error {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return err
	}
	if _, ok := v.([]interface{}); !ok {
		return errors.New("catalog must be a JSON array")
	}
	return nil
}

// ValidateRulesJSON ensures the payload parses as a JSON object.
func ValidateRulesJSON(s string) error {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return err
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return errors.New("rules must be a JSON object")
	}
	return nil
}

// GetCompany fetches a company by id.
func GetCompany(db *gorm.DB, id string) (*Company, error) {
	var c Company
	if err := db.First(&c, "id = ?", strings.ToLower(id)).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCompanySafe resolves id with fallback to the default tenant, so every
// turn always has a valid persona and catalog to operate against. When even
// the default row is missing it returns a minimal in-memory company.
func GetCompanySafe(db *gorm.DB, id string) *Company {
	if id == "" {
		id = DefaultCompanyID
	}
	if c, err := GetCompany(db, id); err == nil {
		return c
	}
	if c, err := GetCompany(db, DefaultCompanyID); err == nil {
		return c
	}
	return &Company{
		ID:          DefaultCompanyID,
		Name:        "Babystepsbots",
		Prompt:      "Sos el asistente de la empresa. Respondés acorde al manual de marca.",
		CatalogJSON: "[]",
		RulesJSON:   `{"tone":"neutral","allowHuman":true}`,
	}
}

// ListCompanies returns all companies ordered by id.
func ListCompanies(db *gorm.DB) ([]Company, error) {
	var out []Company
	if err := db.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
