package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/pkg/optional"
	"pdfshelf/internal/transport/http/response"
)

type CollectionHandler struct {
	collectionService *app.CollectionService
}

type CreateCollectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	ParentID    *uint  `json:"parent_id"`
}

type UpdateCollectionRequest struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Color       *string     `json:"color"`
	Icon        *string     `json:"icon"`
	ParentID    optional.ID `json:"parent_id"`
	Order       *int        `json:"order"`
}

type ReorderCollectionsRequest struct {
	Items []app.ReorderItem `json:"items" binding:"required"`
}

func NewCollectionHandler(collectionService *app.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService}
}

func (h *CollectionHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	collection, err := h.collectionService.Create(c.Request.Context(), userID, app.CreateCollectionInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeError(c, err, "create collection failed")
		return
	}
	response.Created(c, collection)
}

func (h *CollectionHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.collectionService.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list collections failed")
		return
	}
	response.OK(c, result)
}

func (h *CollectionHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "collection id")
	if !ok {
		return
	}

	detail, err := h.collectionService.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "get collection failed")
		return
	}
	response.OK(c, detail)
}

func (h *CollectionHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "collection id")
	if !ok {
		return
	}

	var req UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	collection, err := h.collectionService.Update(c.Request.Context(), userID, id, app.UpdateCollectionInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		ParentID:    req.ParentID,
		Order:       req.Order,
	})
	if err != nil {
		writeError(c, err, "update collection failed")
		return
	}
	response.OK(c, collection)
}

// Delete removes an empty leaf collection. ?move_documents=root|<id> first
// moves its documents out.
func (h *CollectionHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "collection id")
	if !ok {
		return
	}

	var target *app.DeleteTarget
	if raw := strings.TrimSpace(c.Query("move_documents")); raw != "" {
		target = &app.DeleteTarget{}
		if !strings.EqualFold(raw, "root") {
			dest, err := parseCollectionField(raw)
			if err != nil {
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid move_documents target")
				return
			}
			target.ID = dest
		}
	}

	result, err := h.collectionService.Delete(c.Request.Context(), userID, id, target)
	if err != nil {
		writeError(c, err, "delete collection failed")
		return
	}
	response.OK(c, gin.H{
		"deleted_collection_id": id,
		"moved_documents":       result.MovedDocuments,
	})
}

func (h *CollectionHandler) Reorder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ReorderCollectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	n, err := h.collectionService.Reorder(c.Request.Context(), userID, req.Items)
	if err != nil {
		writeError(c, err, "reorder collections failed")
		return
	}
	response.OK(c, gin.H{"updated_count": n})
}
