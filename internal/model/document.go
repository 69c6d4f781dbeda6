package model

import "time"

const (
	ExtractionPending    = "pending"
	ExtractionProcessing = "processing"
	ExtractionCompleted  = "completed"
	ExtractionFailed     = "failed"
	OCRNotNeeded         = "not_needed"
)

// Document is a stored PDF. Text and OCR blobs are excluded from list queries.
type Document struct {
	ID                   uint          `gorm:"primaryKey" json:"id"`
	UserID               uint          `gorm:"not null;index:idx_documents_owner,priority:1" json:"user_id"`
	Filename             string        `gorm:"size:255;not null" json:"filename"`
	OriginalName         string        `gorm:"size:255;not null" json:"original_name"`
	StorageRef           string        `gorm:"size:512;not null" json:"-"`
	ThumbnailRef         string        `gorm:"size:512" json:"-"`
	MimeType             string        `gorm:"size:64;not null" json:"mime_type"`
	FileSize             int64         `gorm:"not null;index" json:"file_size"`
	PageCount            int           `gorm:"not null;default:0" json:"page_count"`
	CollectionID         *uint         `gorm:"index" json:"collection_id"`
	ExtractedText        string        `json:"-"`
	TextExtractionStatus string        `gorm:"size:16;not null;default:pending" json:"text_extraction_status"`
	HasText              bool          `gorm:"not null;default:false" json:"has_text"`
	OCRText              string        `gorm:"column:ocr_text" json:"-"`
	OCRStatus            string        `gorm:"column:ocr_status;size:16;not null;default:pending" json:"ocr_status"`
	OCRError             string        `gorm:"column:ocr_error;size:1024" json:"ocr_error,omitempty"`
	IsDeleted            bool          `gorm:"not null;default:false;index:idx_documents_owner,priority:2" json:"is_deleted"`
	OpenCount            int           `gorm:"not null;default:0" json:"open_count"`
	LastOpenedAt         *time.Time    `gorm:"index" json:"last_opened_at"`
	CreatedAt            time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	TagLinks             []DocumentTag `gorm:"foreignKey:DocumentID" json:"-"`
	Tags                 []string      `gorm:"-" json:"tags"`
}

// FillTags copies preloaded tag rows into Tags.
func (d *Document) FillTags() {
	d.Tags = make([]string, 0, len(d.TagLinks))
	for _, link := range d.TagLinks {
		d.Tags = append(d.Tags, link.Name)
	}
}

type DocumentTag struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	DocumentID uint   `gorm:"not null;index;uniqueIndex:idx_document_tags_pair,priority:1" json:"document_id"`
	UserID     uint   `gorm:"not null;index:idx_document_tags_owner,priority:1" json:"user_id"`
	Name       string `gorm:"size:50;not null;uniqueIndex:idx_document_tags_pair,priority:2;index:idx_document_tags_owner,priority:2" json:"name"`
}
