package repository

import (
	"context"
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
	"gorm.io/gorm"
)

type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.Link) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *LinkRepository) FindByID(ctx context.Context, id string) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// MarkDelivered moves a pending link to delivered. It reports false when the
// link was missing or already out of pending.
func (r *LinkRepository) MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Link{}).
		Where("id = ? AND status = ?", id, models.LinkPending).
		Updates(map[string]interface{}{
			"status":       models.LinkDelivered,
			"delivered_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *LinkRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Link{}).
		Where("id = ? AND status = ?", id, models.LinkPending).
		Update("status", models.LinkFailed)
	return res.RowsAffected > 0, res.Error
}

// ListForUser returns the newest links first.
func (r *LinkRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Link, error) {
	var links []models.Link
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&links).Error
	return links, err
}
