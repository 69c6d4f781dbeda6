package model

const (
	JobThumbnail      = "thumbnail"
	JobTextExtraction = "text_extraction"
	JobOCR            = "ocr"
	JobStorageCleanup = "storage_cleanup"
)

// EnrichmentJob is the queue payload for background document work.
type EnrichmentJob struct {
	Kind       string `json:"kind"`
	DocumentID uint   `json:"document_id"`
	UserID     uint   `json:"user_id"`
}
