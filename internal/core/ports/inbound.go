package ports

import (
	"context"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

// ReportUploader is the inbound contract for one upload pipeline run.
type ReportUploader interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.AnalysisResult, error)
}

// ReportHistory is the inbound read model for per-user report history.
type ReportHistory interface {
	History(ctx context.Context, userID string) ([]domain.ReportRecord, error)
}
