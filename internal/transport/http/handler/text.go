package handler

import (
	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/transport/http/response"
)

// TextHandler exposes the text layer of a document: extraction, OCR and
// in-document search.
type TextHandler struct {
	enrichmentService *app.EnrichmentService
}

func NewTextHandler(enrichmentService *app.EnrichmentService) *TextHandler {
	return &TextHandler{enrichmentService: enrichmentService}
}

func (h *TextHandler) Extract(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	status, err := h.enrichmentService.ExtractText(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "extract text failed")
		return
	}
	response.OK(c, status)
}

func (h *TextHandler) OCR(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	status, err := h.enrichmentService.RunOCR(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "ocr failed")
		return
	}
	response.OK(c, status)
}

func (h *TextHandler) Status(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	status, err := h.enrichmentService.Status(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "get text status failed")
		return
	}
	response.OK(c, status)
}

func (h *TextHandler) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	result, err := h.enrichmentService.SearchText(c.Request.Context(), userID, id, c.Query("q"))
	if err != nil {
		writeError(c, err, "search text failed")
		return
	}
	response.OK(c, result)
}
