package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/transport/http/response"
)

type NoteHandler struct {
	noteService *app.NoteService
}

type CreateNoteRequest struct {
	DocumentID uint   `json:"document_id" binding:"required"`
	PageNumber int    `json:"page_number" binding:"required"`
	Content    string `json:"content" binding:"required"`
	Color      string `json:"color"`
}

type UpdateNoteRequest struct {
	Content *string `json:"content"`
	Color   *string `json:"color"`
}

func NewNoteHandler(noteService *app.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

func (h *NoteHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	note, err := h.noteService.Create(c.Request.Context(), userID, app.CreateNoteInput{
		DocumentID: req.DocumentID,
		PageNumber: req.PageNumber,
		Content:    req.Content,
		Color:      req.Color,
	})
	if err != nil {
		writeError(c, err, "create note failed")
		return
	}
	response.Created(c, note)
}

// ListByDocument lists a document's notes, narrowed to one page with ?page=.
func (h *NoteHandler) ListByDocument(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := idParam(c, "documentId", "document id")
	if !ok {
		return
	}
	page, err := queryIntPtr(c, "page")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	pageNumber := 0
	if page != nil {
		pageNumber = *page
	}

	notes, err := h.noteService.ListByDocument(c.Request.Context(), userID, documentID, pageNumber)
	if err != nil {
		writeError(c, err, "list notes failed")
		return
	}
	response.OK(c, gin.H{"notes": notes})
}

func (h *NoteHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "note id")
	if !ok {
		return
	}

	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	note, err := h.noteService.Update(c.Request.Context(), userID, id, app.UpdateNoteInput{
		Content: req.Content,
		Color:   req.Color,
	})
	if err != nil {
		writeError(c, err, "update note failed")
		return
	}
	response.OK(c, note)
}

func (h *NoteHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "note id")
	if !ok {
		return
	}

	if err := h.noteService.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, err, "delete note failed")
		return
	}
	response.OK(c, gin.H{"deleted_note_id": id})
}
