package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
)

type IngestOptions struct {
	StorageTimeout time.Duration
	Now            func() time.Time
}

// IngestReportUseCase runs one pipeline: validate, store, analyze, record.
type IngestReportUseCase struct {
	storage   ports.BlobStore
	inspector ports.DocumentInspector
	analyzer  *AnalyzeReportUseCase
	ledger    *ReportLedger

	storageTimeout time.Duration
	now            func() time.Time
}

func NewIngestReportUseCase(
	storage ports.BlobStore,
	inspector ports.DocumentInspector,
	analyzer *AnalyzeReportUseCase,
	ledger *ReportLedger,
	opts IngestOptions,
) *IngestReportUseCase {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &IngestReportUseCase{
		storage:        storage,
		inspector:      inspector,
		analyzer:       analyzer,
		ledger:         ledger,
		storageTimeout: opts.StorageTimeout,
		now:            now,
	}
}

func (uc *IngestReportUseCase) Upload(ctx context.Context, req domain.UploadRequest) (*domain.AnalysisResult, error) {
	if len(req.Payload) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "upload report", errors.New("no file uploaded"))
	}

	userID := domain.NormalizeUserID(req.UserID)
	fileName := strings.TrimSpace(req.FileName)
	info := uc.inspect(req.Payload, req.MimeType)
	key := objectKey(uc.now(), fileName)

	object, err := boundedCall(ctx, uc.storageTimeout, "blob write", func(callCtx context.Context) (domain.StoredObject, error) {
		return uc.storage.Put(callCtx, key, req.Payload, info.MimeType)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "store document", fmt.Errorf("key=%s: %w", key, err))
	}
	if object.Key == "" {
		object.Key = key
	}

	outcome := uc.analyzer.Analyze(ctx, object, info.MimeType)

	reportID := uc.ledger.Record(ctx, domain.ReportRecord{
		UserID:    userID,
		FileURL:   object.URI,
		FileName:  fileName,
		MimeType:  info.MimeType,
		PageCount: info.PageCount,
		Status:    outcome.Status,
		Report:    outcome.Report,
	})

	return &domain.AnalysisResult{
		Outcome:  outcome,
		ReportID: reportID,
		Object:   object,
		FileName: fileName,
		UserID:   userID,
		Document: info,
	}, nil
}

func (uc *IngestReportUseCase) inspect(payload []byte, declared string) domain.DocumentInfo {
	if uc.inspector != nil {
		info := uc.inspector.Inspect(payload, declared)
		if info.MimeType != "" {
			return info
		}
	}
	mimeType := strings.TrimSpace(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(payload)
	}
	return domain.DocumentInfo{MimeType: mimeType}
}

// objectKey is a time prefix plus a short random suffix and the sanitized
// original name; uniqueness, not secrecy, is what matters here.
func objectKey(now time.Time, fileName string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], sanitizeFilename(fileName))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "_" {
		return "document.bin"
	}
	return base
}
