package ports

import (
	"context"
	"io"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

// BlobStore durably stores uploaded documents under a generated key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (domain.StoredObject, error)
}

// ObjectReader reads a stored document back. Only inference adapters that
// must inline the bytes depend on it.
type ObjectReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// InferenceService runs the multimodal model over a stored document.
type InferenceService interface {
	Infer(ctx context.Context, object domain.StoredObject, mimeType, instruction string) (string, error)
}

// DocumentStore keeps append-only report records.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, record domain.ReportRecord) (string, error)
	Query(ctx context.Context, collection string, query domain.RecordQuery) ([]domain.ReportRecord, error)
}

// EventPublisher announces durably recorded reports.
type EventPublisher interface {
	PublishReportRecorded(ctx context.Context, event domain.ReportRecordedEvent) error
}

// DocumentInspector derives upload metadata from the raw bytes.
type DocumentInspector interface {
	Inspect(data []byte, declaredMimeType string) domain.DocumentInfo
}
