package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/pkg/optional"
	"pdfshelf/internal/transport/http/response"
)

// multipartOverhead is headroom for form boundaries and small fields on top
// of the file itself.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documentService *app.DocumentService
	maxUploadBytes  int64
}

type UpdateDocumentRequest struct {
	OriginalName *string     `json:"original_name"`
	Tags         *[]string   `json:"tags"`
	CollectionID optional.ID `json:"collection_id"`
}

type BulkDeleteRequest struct {
	DocumentIDs []uint `json:"document_ids" binding:"required"`
}

type BulkUpdateRequest struct {
	DocumentIDs []uint            `json:"document_ids" binding:"required"`
	Updates     app.DocumentPatch `json:"updates"`
}

type BulkMoveRequest struct {
	DocumentIDs  []uint      `json:"document_ids" binding:"required"`
	CollectionID optional.ID `json:"collection_id"`
}

func NewDocumentHandler(documentService *app.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart form with "file" (PDF) and optional
// "collection_id" and comma separated "tags".
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.rejectTooLarge(c)
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		h.rejectTooLarge(c)
		return
	}

	collectionID, err := parseCollectionField(c.PostForm("collection_id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection_id")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), userID, app.UploadInput{
		Filename:     file.Filename,
		Data:         data,
		CollectionID: collectionID,
		Tags:         app.SplitList(c.PostFormArray("tags")...),
	})
	if err != nil {
		writeError(c, err, "upload document failed")
		return
	}

	response.Created(c, doc)
}

func (h *DocumentHandler) rejectTooLarge(c *gin.Context) {
	response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge,
		fmt.Sprintf("file too large (max %s)", humanize.IBytes(uint64(h.maxUploadBytes))))
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	filter, err := documentFilterFromQuery(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	page, err := h.documentService.List(c.Request.Context(), userID, filter)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, page)
}

func (h *DocumentHandler) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	docs, err := h.documentService.Search(c.Request.Context(), userID, c.Query("q"), queryInt(c, "limit"))
	if err != nil {
		writeError(c, err, "search documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Recent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	docs, err := h.documentService.Recent(c.Request.Context(), userID, queryInt(c, "limit"))
	if err != nil {
		writeError(c, err, "list recent documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.documentService.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "document stats failed")
		return
	}
	response.OK(c, stats)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc, err := h.documentService.Update(c.Request.Context(), userID, id, app.UpdateDocumentInput{
		OriginalName: req.OriginalName,
		Tags:         req.Tags,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		writeError(c, err, "update document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "document id")
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func (h *DocumentHandler) BulkDelete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	n, err := h.documentService.BulkDelete(c.Request.Context(), userID, req.DocumentIDs)
	if err != nil {
		writeError(c, err, "bulk delete failed")
		return
	}
	response.OK(c, gin.H{"deleted_count": n})
}

func (h *DocumentHandler) BulkUpdate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	n, err := h.documentService.BulkUpdate(c.Request.Context(), userID, req.DocumentIDs, req.Updates)
	if err != nil {
		writeError(c, err, "bulk update failed")
		return
	}
	response.OK(c, gin.H{"modified_count": n})
}

func (h *DocumentHandler) BulkMove(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req BulkMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if !req.CollectionID.Present {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "collection_id is required (null moves to root)")
		return
	}

	n, err := h.documentService.BulkMove(c.Request.Context(), userID, req.DocumentIDs, req.CollectionID.Value)
	if err != nil {
		writeError(c, err, "bulk move failed")
		return
	}
	response.OK(c, gin.H{"modified_count": n})
}

func documentFilterFromQuery(c *gin.Context) (app.DocumentFilter, error) {
	filter := app.DocumentFilter{
		Search:     c.Query("search"),
		Collection: c.Query("collection_id"),
		Tags:       app.SplitList(c.QueryArray("tags")...),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		Sort:       c.Query("sort"),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	}

	var err error
	if filter.MinSizeMB, err = queryFloat(c, "min_size"); err != nil {
		return filter, err
	}
	if filter.MaxSizeMB, err = queryFloat(c, "max_size"); err != nil {
		return filter, err
	}
	if filter.MinPages, err = queryIntPtr(c, "min_pages"); err != nil {
		return filter, err
	}
	if filter.MaxPages, err = queryIntPtr(c, "max_pages"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &v, nil
}

func queryIntPtr(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &v, nil
}

// parseCollectionField reads an optional collection id from a form value;
// empty, "null" and "uncategorized" mean no collection.
func parseCollectionField(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "null", "uncategorized":
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, fmt.Errorf("invalid collection id %q", raw)
	}
	id := uint(v)
	return &id, nil
}
