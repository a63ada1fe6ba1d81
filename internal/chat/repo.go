package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateChat(ctx context.Context, c *Chat) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) FindChat(ctx context.Context, ownerID uint64, id string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListChats(ctx context.Context, ownerID uint64) ([]Chat, error) {
	var out []Chat
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("last_message_at DESC").
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) UpdateChatTitle(ctx context.Context, ownerID uint64, id string, title *string) error {
	res := r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ? AND owner_user_id = ?", id, ownerID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) TouchLastMessage(ctx context.Context, id string, t time.Time) error {
	return r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", id).
		Update("last_message_at", t).Error
}

// DeleteChat removes a chat's messages first, then the chat itself: an
// explicit two-step cascade.
func (r *Repo) DeleteChat(ctx context.Context, ownerID uint64, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.Where("id = ? AND owner_user_id = ?", id, ownerID).First(&c).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", c.ID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessagesAsc returns a chat's full log in creation order. The id is the
// tiebreak for equal timestamps so reads are deterministic.
func (r *Repo) ListMessagesAsc(ctx context.Context, chatID string) ([]Message, error) {
	var out []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecentMessagesDesc returns the most recent messages newest-first,
// excluding excludeID when non-empty.
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, chatID string, limit int, excludeID string) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var out []Message
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
