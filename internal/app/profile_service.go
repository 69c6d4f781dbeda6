package app

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"pdfshelf/internal/model"
	"pdfshelf/internal/repository"
)

type ProfileService struct {
	userRepo  *repository.UserRepository
	tokenRepo *repository.RefreshTokenRepository
}

func NewProfileService(userRepo *repository.UserRepository, tokenRepo *repository.RefreshTokenRepository) *ProfileService {
	return &ProfileService{userRepo: userRepo, tokenRepo: tokenRepo}
}

type UpdateProfileInput struct {
	Name        *string
	Avatar      *string
	Theme       *string
	DefaultView *string
}

type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

func (s *ProfileService) Get(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *ProfileService) Update(ctx context.Context, userID uint, input UpdateProfileInput) (*model.User, error) {
	if input.Name == nil && input.Avatar == nil && input.Theme == nil && input.DefaultView == nil {
		return nil, ErrNoUpdateFields
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs := user.Preferences.Data()
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Avatar != nil {
		user.Avatar = strings.TrimSpace(*input.Avatar)
	}
	if input.Theme != nil {
		prefs.Theme = strings.TrimSpace(*input.Theme)
	}
	if input.DefaultView != nil {
		prefs.DefaultView = strings.TrimSpace(*input.DefaultView)
	}

	err = validation.Errors{
		"name":         validation.Validate(user.Name, validation.Required, validation.RuneLength(2, 50)),
		"avatar":       validation.Validate(user.Avatar, validation.Length(0, 512), is.URL),
		"theme":        validation.Validate(prefs.Theme, validation.Required, validation.In(model.ThemeLight, model.ThemeDark, model.ThemeSystem)),
		"default_view": validation.Validate(prefs.DefaultView, validation.Required, validation.In(model.ViewGrid, model.ViewList)),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}

	user.Preferences = datatypes.NewJSONType(prefs)
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword also revokes every refresh token of the user.
func (s *ProfileService) ChangePassword(ctx context.Context, userID uint, input ChangePasswordInput) error {
	if err := validation.Validate(input.NewPassword, validation.Required, validation.Length(8, 128)); err != nil {
		return fmt.Errorf("%w: new_password: %s", ErrInvalidInput, err.Error())
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	return s.tokenRepo.DeleteByUserID(ctx, userID)
}
