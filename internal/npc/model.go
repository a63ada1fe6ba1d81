package npc

import "time"

// Portrait lifecycle states. A record starts pending; the pipeline moves it
// to ready when a URL is attached, or failed on terminal failure.
const (
	PortraitPending = "pending"
	PortraitReady   = "ready"
	PortraitFailed  = "failed"
)

type Npc struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerUserID uint64 `gorm:"index;not null" json:"-"`

	Name            string  `gorm:"type:varchar(120);not null" json:"name"`
	Race            string  `gorm:"type:varchar(64);not null" json:"race"`
	Subrace         *string `gorm:"type:varchar(64)" json:"subrace"`
	Class           string  `gorm:"type:varchar(64);not null" json:"class"`
	Level           int     `gorm:"not null" json:"level"`
	Gender          string  `gorm:"type:varchar(32)" json:"gender"`
	Age             int     `json:"age"`
	Alignment       string  `gorm:"type:varchar(32)" json:"alignment"`
	Background      string  `gorm:"type:text" json:"background"`
	PersonalityType string  `gorm:"type:varchar(64)" json:"personality_type"`
	Bio             string  `gorm:"type:text" json:"bio"`
	ShortPitch      string  `gorm:"type:text" json:"short_pitch"`

	StrScore int `gorm:"not null" json:"str_score"`
	DexScore int `gorm:"not null" json:"dex_score"`
	ConScore int `gorm:"not null" json:"con_score"`
	IntScore int `gorm:"not null" json:"int_score"`
	WisScore int `gorm:"not null" json:"wis_score"`
	ChaScore int `gorm:"not null" json:"cha_score"`

	PortraitURL    *string `gorm:"type:varchar(512)" json:"portrait_url"`
	PortraitStatus string  `gorm:"type:varchar(16);not null;default:pending" json:"portrait_status"`
	PortraitError  *string `gorm:"type:text" json:"portrait_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Npc) TableName() string { return "npcs" }

// Summary is the shape embedded into chat listings.
type Summary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PortraitURL *string `json:"portrait_url"`
	Class       string  `json:"class"`
	Level       int     `json:"level"`
	Race        string  `json:"race"`
	Alignment   string  `json:"alignment"`
}

func (n *Npc) Summary() *Summary {
	return &Summary{
		ID:          n.ID,
		Name:        n.Name,
		PortraitURL: n.PortraitURL,
		Class:       n.Class,
		Level:       n.Level,
		Race:        n.Race,
		Alignment:   n.Alignment,
	}
}
