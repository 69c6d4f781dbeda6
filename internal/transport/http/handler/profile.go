package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/transport/http/response"
)

type ProfileHandler struct {
	profileService *app.ProfileService
}

type UpdateProfileRequest struct {
	Name        *string             `json:"name"`
	Avatar      *string             `json:"avatar"`
	Preferences *PreferencesRequest `json:"preferences"`
}

type PreferencesRequest struct {
	Theme       *string `json:"theme"`
	DefaultView *string `json:"default_view"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func NewProfileHandler(profileService *app.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.profileService.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "get profile failed")
		return
	}
	response.OK(c, user)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	input := app.UpdateProfileInput{Name: req.Name, Avatar: req.Avatar}
	if req.Preferences != nil {
		input.Theme = req.Preferences.Theme
		input.DefaultView = req.Preferences.DefaultView
	}

	user, err := h.profileService.Update(c.Request.Context(), userID, input)
	if err != nil {
		writeError(c, err, "update profile failed")
		return
	}
	response.OK(c, user)
}

func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	err := h.profileService.ChangePassword(c.Request.Context(), userID, app.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(c, err, "change password failed")
		return
	}
	response.OK(c, gin.H{"password_changed": true})
}
