package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfshelf/internal/app"
	"pdfshelf/internal/transport/http/middleware"
	"pdfshelf/internal/transport/http/response"
)

type errorMapping struct {
	target error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{app.ErrNoUpdateFields, http.StatusBadRequest, response.CodeNoUpdateFields},
	{app.ErrInvalidPDF, http.StatusBadRequest, response.CodeInvalidPDF},
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrMessageEmpty, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrInvalidPassword, http.StatusBadRequest, response.CodeBadRequest},

	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrInvalidRefreshToken, http.StatusUnauthorized, response.CodeInvalidRefreshToken},

	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrCollectionNotFound, http.StatusNotFound, response.CodeCollectionNotFound},
	{app.ErrNoteNotFound, http.StatusNotFound, response.CodeNoteNotFound},
	{app.ErrUserNotFound, http.StatusNotFound, response.CodeUserNotFound},

	{app.ErrEmailExists, http.StatusConflict, response.CodeEmailExists},
	{app.ErrCircularReference, http.StatusConflict, response.CodeCircularReference},
	{app.ErrCollectionHasChildren, http.StatusConflict, response.CodeCollectionHasChild},
	{app.ErrCollectionNotEmpty, http.StatusConflict, response.CodeCollectionNotEmpty},

	{app.ErrLLMFailed, http.StatusBadGateway, response.CodeLLMFailed},
	{app.ErrStorageUnavailable, http.StatusServiceUnavailable, response.CodeStorageUnavailable},
	{app.ErrLLMNotConfigured, http.StatusServiceUnavailable, response.CodeLLMNotConfigured},
}

// writeError maps a service error to its HTTP status. Unclassified errors are
// logged on the context and reported with the fallback message.
func writeError(c *gin.Context, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			response.Error(c, m.status, m.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}

// requireUser aborts with 401 when the token payload carries no user.
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	s := c.Param(key)
	u, err := strconv.ParseUint(s, 10, 64)
	if err == nil && u == 0 {
		err = strconv.ErrRange
	}
	return uint(u), err
}

// idParam reads a positive path id and reports 400 otherwise.
func idParam(c *gin.Context, key, label string) (uint, bool) {
	id, err := parseUintParam(c, key)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+label)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
