package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
)

// AnalyzeReportUseCase invokes the inference service once per document and
// normalizes its answer. Failures degrade to the fallback report.
type AnalyzeReportUseCase struct {
	inference  ports.InferenceService
	normalizer *Normalizer
	timeout    time.Duration
}

func NewAnalyzeReportUseCase(
	inference ports.InferenceService,
	normalizer *Normalizer,
	timeout time.Duration,
) *AnalyzeReportUseCase {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &AnalyzeReportUseCase{
		inference:  inference,
		normalizer: normalizer,
		timeout:    timeout,
	}
}

func (uc *AnalyzeReportUseCase) Analyze(ctx context.Context, object domain.StoredObject, mimeType string) domain.Outcome {
	raw, err := boundedCall(ctx, uc.timeout, "inference", func(callCtx context.Context) (string, error) {
		return uc.inference.Infer(callCtx, object, mimeType, analysisInstruction)
	})
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errors.New("empty model output")
	}
	if err != nil {
		uc.logDegraded("inference", object, domain.WrapError(domain.ErrAnalysis, "infer", err))
		return domain.Degraded()
	}

	report, err := uc.normalizer.Parse(raw)
	if err != nil {
		uc.logDegraded("normalize", object, err)
		return domain.Degraded()
	}
	return domain.OK(report)
}

func (uc *AnalyzeReportUseCase) logDegraded(stage string, object domain.StoredObject, err error) {
	slog.Warn("analysis_degraded",
		"stage", stage,
		"object_key", object.Key,
		"error", err,
	)
}
