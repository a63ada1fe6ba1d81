package chat

import "time"

// Message roles as persisted. The npc role maps to the completion API's
// assistant role when history is replayed.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleNpc    = "npc"
)

type Chat struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerUserID   uint64     `gorm:"index;not null" json:"-"`
	NpcID         string     `gorm:"type:varchar(36);index;not null" json:"npc_id"`
	Title         *string    `gorm:"type:varchar(160)" json:"title"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

// Message rows are append-only: never edited or reordered, strictly ordered
// by creation time within a chat.
type Message struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChatID    string    `gorm:"type:varchar(36);index;not null" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
