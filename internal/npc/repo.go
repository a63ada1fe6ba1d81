package npc

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, n *Npc) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// FindByID looks an NPC up without owner scoping. The portrait pipeline uses
// this: jobs carry only the NPC id.
func (r *Repo) FindByID(ctx context.Context, id string) (*Npc, error) {
	var n Npc
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) FindByIDForOwner(ctx context.Context, ownerID uint64, id string) (*Npc, error) {
	var n Npc
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerID).
		First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) ListByOwner(ctx context.Context, ownerID uint64) ([]Npc, error) {
	var out []Npc
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) FindByIDs(ctx context.Context, ids []string) ([]Npc, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Npc
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, ownerID uint64, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerID).
		Delete(&Npc{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AttachPortrait writes the portrait URL and flips the status to ready. The
// portrait_url IS NULL guard makes the write a no-op once a URL exists, so a
// racing duplicate attempt cannot overwrite the first durable result.
func (r *Repo) AttachPortrait(ctx context.Context, id, url string) error {
	return r.db.WithContext(ctx).Model(&Npc{}).
		Where("id = ? AND portrait_url IS NULL", id).
		Updates(map[string]any{
			"portrait_url":    url,
			"portrait_status": PortraitReady,
			"portrait_error":  nil,
		}).Error
}

// MarkPortraitFailed records a terminal pipeline failure on the row so a
// forever-pending status is distinguishable from "still retrying". Skipped
// when a portrait already exists.
func (r *Repo) MarkPortraitFailed(ctx context.Context, id, reason string) error {
	return r.db.WithContext(ctx).Model(&Npc{}).
		Where("id = ? AND portrait_url IS NULL", id).
		Updates(map[string]any{
			"portrait_status": PortraitFailed,
			"portrait_error":  reason,
		}).Error
}
