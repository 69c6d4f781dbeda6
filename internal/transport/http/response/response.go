package response

import "github.com/gin-gonic/gin"

const (
	CodeOK = 0

	CodeBadRequest     = 40000
	CodeEmailExists    = 40002
	CodeNoUpdateFields = 40003
	CodeInvalidPDF     = 40004
	CodeFileTooLarge   = 40005

	CodeUnauthorized        = 40100
	CodeInvalidCredentials  = 40101
	CodeInvalidRefreshToken = 40102

	CodeNotFound           = 40400
	CodeDocumentNotFound   = 40401
	CodeCollectionNotFound = 40402
	CodeNoteNotFound       = 40403
	CodeUserNotFound       = 40404

	CodeConflict           = 40900
	CodeCircularReference  = 40901
	CodeCollectionHasChild = 40902
	CodeCollectionNotEmpty = 40903

	CodeTooManyRequests = 42900

	CodeInternalServer     = 50000
	CodeLLMFailed          = 50200
	CodeStorageUnavailable = 50300
	CodeLLMNotConfigured   = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
