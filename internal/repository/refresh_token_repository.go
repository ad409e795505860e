package repository

import (
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
	"gorm.io/gorm"
)

// RefreshTokenRepository stores hashed refresh tokens. Raw tokens never reach
// the database.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(token *models.RefreshToken) error {
	return r.db.Create(token).Error
}

// FindValidByHash returns the unrevoked, unexpired token with tokenHash.
func (r *RefreshTokenRepository) FindValidByHash(tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", tokenHash, time.Now()).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeByHash marks the token revoked and reports whether this call did it.
// Of two concurrent rotations of one token only one sees true.
func (r *RefreshTokenRepository) RevokeByHash(tokenHash string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		Update("revoked_at", &now)
	return res.RowsAffected > 0, res.Error
}
