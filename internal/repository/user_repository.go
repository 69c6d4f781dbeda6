package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pdfshelf/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

// UpdateProfile writes name, avatar and preferences.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Model(user).Select("name", "avatar", "preferences").Updates(user).Error
	if err != nil {
		return fmt.Errorf("update user profile failed: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("password_hash", hash).Error
	if err != nil {
		return fmt.Errorf("update user password failed: %w", err)
	}
	return nil
}

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("create refresh token failed: %w", err)
	}
	return nil
}

// GetValid returns the unexpired token with the given hash.
func (r *RefreshTokenRepository) GetValid(ctx context.Context, hash string, now time.Time) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ? AND expires_at > ?", hash, now).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query refresh token failed: %w", err)
	}
	return &token, nil
}

// DeleteByHash reports whether a row was removed.
func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	result := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&model.RefreshToken{})
	if result.Error != nil {
		return false, fmt.Errorf("delete refresh token failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("delete user refresh tokens failed: %w", err)
	}
	return nil
}
