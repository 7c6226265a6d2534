package models

import "time"

// FileType tags the format of an imported document.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeGIF  FileType = "gif"
	FileTypeTIFF FileType = "tiff"
	FileTypeHEIC FileType = "heic"
)

// ProcessingStatus tracks a document through the extraction pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// transitions: pending -> queued -> processing -> {completed | failed};
// failed may go back to pending (retry), nothing else moves backwards.
var statusTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusQueued},
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DocumentRecord is the metadata row for an imported file. The blob store
// owns the bytes behind StoragePath; this record owns only the reference.
// ThumbnailPath is a weak reference: a missing thumbnail file means "no
// thumbnail", never an error, since thumbnails are regenerable.
type DocumentRecord struct {
	ID            string
	FileName      string
	FileType      FileType
	FileSize      int64
	StoragePath   string
	ThumbnailPath string
	Status        ProcessingStatus

	// ExtractedData holds the type-erased records produced by document
	// processing. Embedded in the row, owned by this document.
	ExtractedData []Record

	// Plaintext, queryable metadata (schema v2).
	Category     string
	Provider     string
	DocumentDate *time.Time
	Priority     int
	IncludeInAI  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentFilter selects documents by fixed, named predicates. Zero-valued
// fields are ignored.
type DocumentFilter struct {
	FileType    FileType
	Status      ProcessingStatus
	Category    string
	Provider    string
	DateFrom    *time.Time
	DateTo      *time.Time
	IncludeInAI *bool
}
