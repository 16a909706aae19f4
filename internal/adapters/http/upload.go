package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kirillkom/fitscore/internal/config"
	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/observability/metrics"
)

const multipartMemory = 8 << 20

var uploadFileFields = []string{"report", "file"}

type uploadResponse struct {
	Status          domain.OutcomeStatus   `json:"status"`
	Score           int                    `json:"score"`
	Summary         string                 `json:"summary"`
	Vitals          map[string]string      `json:"vitals"`
	Recommendations domain.Recommendations `json:"recommendations"`
	ReportID        *string                `json:"reportId"`
	FileURL         string                 `json:"fileUrl"`
	FileName        string                 `json:"fileName"`
	UserID          string                 `json:"userId"`
	MimeType        string                 `json:"mimeType"`
	PageCount       int                    `json:"pageCount"`
}

type uploadOutcome struct {
	result *domain.AnalysisResult
	err    error
}

func (rt *Router) uploadReport(w http.ResponseWriter, r *http.Request) {
	responder := newOnceResponder(w)
	requestID := requestIDFromContext(r.Context())

	req, status, err := readUploadRequest(w, r, rt.cfg.MaxUploadBytes)
	if err != nil {
		responder.writeJSON(status, errorBody(err.Error()))
		return
	}
	if rt.metrics != nil && len(req.Payload) > 0 {
		rt.metrics.ObserveUpload(len(req.Payload))
	}

	// The pipeline outlives a disconnected client so the record still lands.
	pipelineCtx := context.WithoutCancel(r.Context())
	done := make(chan uploadOutcome, 1)
	go func() {
		result, err := rt.uploader.Upload(pipelineCtx, req)
		done <- uploadOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(rt.uploadTimeout())
	defer timer.Stop()

	select {
	case out := <-done:
		rt.respondUpload(responder, requestID, out)
	case <-timer.C:
		if responder.writeJSON(http.StatusGatewayTimeout, errorBody("analysis timed out")) {
			rt.recordStage(metrics.StageResponse, metrics.ResultTimeout)
			slog.Warn("upload_deadline_exceeded",
				"stage", metrics.StageResponse,
				"request_id", requestID,
				"user_id", req.UserID,
				"timeout", rt.uploadTimeout().String(),
			)
		}
		release := detachSlot(r.Context())
		go func() {
			defer release()
			rt.drainLateUpload(responder, requestID, done)
		}()
	}
}

// respondUpload reports whether this call produced the response.
func (rt *Router) respondUpload(responder *onceResponder, requestID string, out uploadOutcome) bool {
	if out.err != nil {
		if domain.IsKind(out.err, domain.ErrStorage) {
			rt.recordStage(metrics.StageStorage, metrics.ResultFailed)
		}
		status := mapErrorToHTTPStatus(out.err)
		if status >= http.StatusInternalServerError {
			slog.Error("upload_failed", "request_id", requestID, "error", out.err)
		}
		return responder.writeJSON(status, errorBody(publicErrorMessage(out.err)))
	}

	result := out.result
	rt.recordOutcome(result)
	return responder.writeJSON(http.StatusOK, uploadResponse{
		Status:          result.Outcome.Status,
		Score:           result.Outcome.Report.Score,
		Summary:         result.Outcome.Report.Summary,
		Vitals:          result.Outcome.Report.Vitals,
		Recommendations: result.Outcome.Report.Recommendations,
		ReportID:        result.ReportID,
		FileURL:         result.Object.URI,
		FileName:        result.FileName,
		UserID:          result.UserID,
		MimeType:        result.Document.MimeType,
		PageCount:       result.Document.PageCount,
	})
}

// drainLateUpload consumes a pipeline result that finished after the 504.
// The result is still recorded in metrics but never reaches the client.
func (rt *Router) drainLateUpload(responder *onceResponder, requestID string, done <-chan uploadOutcome) {
	out := <-done
	if rt.respondUpload(responder, requestID, out) {
		return
	}
	attrs := []any{"request_id", requestID}
	if out.err != nil {
		attrs = append(attrs, "error", out.err)
	} else if out.result != nil && out.result.ReportID != nil {
		attrs = append(attrs, "report_id", *out.result.ReportID)
	}
	slog.Info("upload_late_result_dropped", attrs...)
}

func (rt *Router) recordOutcome(result *domain.AnalysisResult) {
	if result == nil {
		return
	}
	rt.recordStage(metrics.StageStorage, metrics.ResultOK)
	if result.Outcome.IsDegraded() {
		rt.recordStage(metrics.StageAnalysis, metrics.ResultDegraded)
	} else {
		rt.recordStage(metrics.StageAnalysis, metrics.ResultOK)
		if rt.metrics != nil {
			rt.metrics.ObserveScore(result.Outcome.Report.Score)
		}
	}
	if result.ReportID == nil {
		rt.recordStage(metrics.StagePersist, metrics.ResultFailed)
	} else {
		rt.recordStage(metrics.StagePersist, metrics.ResultOK)
	}
}

func (rt *Router) uploadTimeout() time.Duration {
	if rt.cfg.UploadTimeout <= 0 {
		return rt.cfg.PipelineBudget() + config.UploadDeadlineMargin
	}
	return rt.cfg.UploadTimeout
}

// readUploadRequest returns an empty payload when no file part is present;
// the ingestion gateway owns that validation.
func readUploadRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (domain.UploadRequest, int, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.UploadRequest{}, http.StatusRequestEntityTooLarge, errors.New("file too large")
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return domain.UploadRequest{}, 0, nil
		default:
			return domain.UploadRequest{}, http.StatusBadRequest, errors.New("invalid multipart form")
		}
	}

	req := domain.UploadRequest{UserID: r.FormValue("userId")}
	file, header, ok := firstFormFile(r, uploadFileFields)
	if !ok {
		return req, 0, nil
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.UploadRequest{}, http.StatusRequestEntityTooLarge, errors.New("file too large")
		}
		return domain.UploadRequest{}, http.StatusBadRequest, errors.New("failed to read uploaded file")
	}

	req.Payload = payload
	req.FileName = header.Filename
	req.MimeType = header.Header.Get("Content-Type")
	return req, 0, nil
}

func firstFormFile(r *http.Request, fields []string) (multipart.File, *multipart.FileHeader, bool) {
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, true
		}
	}
	return nil, nil, false
}
