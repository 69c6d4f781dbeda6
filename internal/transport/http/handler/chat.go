package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type SendMessageRequest struct {
	Message    string `json:"message" binding:"required"`
	PageNumber *int   `json:"page_number"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	input, ok := h.bindMessage(c)
	if !ok {
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), input)
	if err != nil {
		writeError(c, err, "send message failed")
		return
	}
	response.OK(c, result)
}

// StreamMessage answers over server-sent events. Errors raised before the
// first chunk are reported as a regular JSON response.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	input, ok := h.bindMessage(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	result, err := h.chatService.StreamMessage(c.Request.Context(), input, func(chunk string) error {
		begin()
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeError(c, err, "stream message failed")
			return
		}
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(err.Error())))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	begin()
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte("{}")
	}
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + string(payload) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := idParam(c, "documentId", "document id")
	if !ok {
		return
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, documentID)
	if err != nil {
		writeError(c, err, "get history failed")
		return
	}
	response.OK(c, history)
}

func (h *ChatHandler) ClearHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := idParam(c, "documentId", "document id")
	if !ok {
		return
	}

	if err := h.chatService.ClearHistory(c.Request.Context(), userID, documentID); err != nil {
		writeError(c, err, "clear history failed")
		return
	}
	response.OK(c, gin.H{"cleared_document_id": documentID})
}

func (h *ChatHandler) bindMessage(c *gin.Context) (app.SendMessageInput, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return app.SendMessageInput{}, false
	}
	documentID, ok := idParam(c, "documentId", "document id")
	if !ok {
		return app.SendMessageInput{}, false
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.SendMessageInput{}, false
	}

	return app.SendMessageInput{
		UserID:     userID,
		DocumentID: documentID,
		Content:    req.Message,
		PageNumber: req.PageNumber,
	}, true
}
