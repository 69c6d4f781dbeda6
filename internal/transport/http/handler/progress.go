package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/transport/http/response"
)

type ProgressHandler struct {
	progressService *app.ReadingProgressService
}

type UpdateProgressRequest struct {
	CurrentPage int      `json:"current_page" binding:"required"`
	Zoom        *float64 `json:"zoom"`
	ViewMode    *string  `json:"view_mode"`
}

func NewProgressHandler(progressService *app.ReadingProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

func (h *ProgressHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := idParam(c, "documentId", "document id")
	if !ok {
		return
	}

	progress, err := h.progressService.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		writeError(c, err, "get reading progress failed")
		return
	}
	response.OK(c, progress)
}

func (h *ProgressHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := idParam(c, "documentId", "document id")
	if !ok {
		return
	}

	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	progress, err := h.progressService.Update(c.Request.Context(), userID, documentID, app.UpdateProgressInput{
		CurrentPage: req.CurrentPage,
		Zoom:        req.Zoom,
		ViewMode:    req.ViewMode,
	})
	if err != nil {
		writeError(c, err, "update reading progress failed")
		return
	}
	response.OK(c, progress)
}

func (h *ProgressHandler) Recent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	items, err := h.progressService.Recent(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list reading progress failed")
		return
	}
	response.OK(c, gin.H{"progress": items})
}
