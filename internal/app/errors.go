package app

import "errors"

// Validation errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoUpdateFields  = errors.New("no valid update fields")
	ErrInvalidPDF      = errors.New("invalid pdf file")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrInvalidPassword = errors.New("current password is incorrect")
)

// Not-found errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNoteNotFound       = errors.New("note not found")
)

// Conflict errors.
var (
	ErrEmailExists           = errors.New("email already exists")
	ErrCircularReference     = errors.New("collection cannot be moved under itself or its descendants")
	ErrCollectionHasChildren = errors.New("collection has child collections")
	ErrCollectionNotEmpty    = errors.New("collection still contains documents")
)

// Authentication errors.
var (
	ErrInvalidCredential   = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// Collaborator errors on primary paths.
var (
	ErrStorageUnavailable = errors.New("file storage unavailable")
	ErrLLMNotConfigured   = errors.New("llm is not configured")
	ErrLLMFailed          = errors.New("llm request failed")
)
