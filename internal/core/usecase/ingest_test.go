package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

type pipelineFixture struct {
	storage   *blobStoreFake
	inference *inferenceFake
	docs      *documentStoreFake
	events    *eventPublisherFake
	uc        *IngestReportUseCase
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		storage:   &blobStoreFake{},
		inference: &inferenceFake{response: sampleReportJSON},
		docs:      newDocumentStoreFake(),
		events:    &eventPublisherFake{},
	}
	analyzer := NewAnalyzeReportUseCase(f.inference, NewNormalizer(), time.Second)
	ledger := NewReportLedger(f.docs, f.events, LedgerOptions{Timeout: time.Second})
	f.uc = NewIngestReportUseCase(f.storage, nil, analyzer, ledger, IngestOptions{
		StorageTimeout: time.Second,
		Now:            func() time.Time { return time.UnixMilli(1767225600000) },
	})
	return f
}

func TestUploadSuccessRunsAllStages(t *testing.T) {
	f := newPipelineFixture()

	res, err := f.uc.Upload(context.Background(), domain.UploadRequest{
		Payload:  []byte("%PDF-1.4 fake"),
		FileName: "blood test 1.pdf",
		MimeType: "application/pdf",
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.ReportID == nil || *res.ReportID == "" {
		t.Fatalf("expected report id")
	}
	if res.Outcome.IsDegraded() || res.Outcome.Report.Score != 82 {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
	if !strings.HasPrefix(f.storage.keys[0], "1767225600000-") || !strings.HasSuffix(f.storage.keys[0], "-blood_test_1.pdf") {
		t.Fatalf("unexpected object key %s", f.storage.keys[0])
	}
	if f.storage.mimeType != "application/pdf" {
		t.Fatalf("expected declared mime type to be stored, got %s", f.storage.mimeType)
	}
	if f.inference.object.URI != res.Object.URI {
		t.Fatalf("inference got %s, stored %s", f.inference.object.URI, res.Object.URI)
	}

	rec := f.docs.records[0]
	if rec.UserID != "user-1" || rec.FileName != "blood test 1.pdf" || rec.FileURL != res.Object.URI {
		t.Fatalf("unexpected persisted record: %+v", rec)
	}
	if f.docs.collection != domain.ReportsCollection {
		t.Fatalf("expected collection %s, got %s", domain.ReportsCollection, f.docs.collection)
	}
	if len(f.events.events) != 1 || f.events.events[0].ReportID != *res.ReportID {
		t.Fatalf("expected one recorded event, got %+v", f.events.events)
	}
}

func TestUploadWithoutPayloadHasNoSideEffects(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.uc.Upload(context.Background(), domain.UploadRequest{FileName: "empty.png", UserID: "u"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.storage.Calls() != 0 || f.inference.Calls() != 0 || f.docs.Inserts() != 0 {
		t.Fatalf("expected no collaborator calls, got storage=%d inference=%d docs=%d",
			f.storage.Calls(), f.inference.Calls(), f.docs.Inserts())
	}
}

func TestUploadStorageFailureAbortsPipeline(t *testing.T) {
	f := newPipelineFixture()
	f.storage.err = errUpstream

	_, err := f.uc.Upload(context.Background(), domain.UploadRequest{Payload: []byte("img"), FileName: "a.png", MimeType: "image/png"})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if f.inference.Calls() != 0 || f.docs.Inserts() != 0 {
		t.Fatalf("expected no analysis or persistence after storage failure")
	}
}

func TestUploadStorageTimeoutIsStorageError(t *testing.T) {
	f := newPipelineFixture()
	f.storage.delay = time.Second
	analyzer := NewAnalyzeReportUseCase(f.inference, nil, time.Second)
	ledger := NewReportLedger(f.docs, nil, LedgerOptions{})
	uc := NewIngestReportUseCase(f.storage, nil, analyzer, ledger, IngestOptions{StorageTimeout: 20 * time.Millisecond})

	_, err := uc.Upload(context.Background(), domain.UploadRequest{Payload: []byte("img"), FileName: "a.png"})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if f.inference.Calls() != 0 {
		t.Fatalf("expected no analysis after storage timeout")
	}
}

func TestUploadInferenceFailureStillRecordsFallback(t *testing.T) {
	f := newPipelineFixture()
	f.inference.err = errUpstream

	res, err := f.uc.Upload(context.Background(), domain.UploadRequest{Payload: []byte("img"), FileName: "a.png", MimeType: "image/png"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !res.Outcome.IsDegraded() || res.Outcome.Report.Summary != domain.FallbackSummary {
		t.Fatalf("expected fallback outcome, got %+v", res.Outcome)
	}
	if res.ReportID == nil {
		t.Fatalf("expected degraded outcome to be recorded")
	}
	if f.docs.records[0].Status != domain.OutcomeDegraded {
		t.Fatalf("expected degraded status persisted, got %s", f.docs.records[0].Status)
	}
}

func TestUploadPersistenceFailureReturnsNilReportID(t *testing.T) {
	f := newPipelineFixture()
	f.docs.insertErr = errUpstream

	res, err := f.uc.Upload(context.Background(), domain.UploadRequest{Payload: []byte("img"), FileName: "a.png", MimeType: "image/png"})
	if err != nil {
		t.Fatalf("persistence failure must not fail the upload, got %v", err)
	}
	if res.ReportID != nil {
		t.Fatalf("expected nil report id, got %s", *res.ReportID)
	}
	if res.Outcome.Report.Score != 82 {
		t.Fatalf("expected full analysis despite persistence failure, got %+v", res.Outcome)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("expected no event for unrecorded report")
	}
}

func TestUploadDefaultsAnonymousUserAndSniffsMime(t *testing.T) {
	f := newPipelineFixture()

	res, err := f.uc.Upload(context.Background(), domain.UploadRequest{
		Payload:  []byte("\x89PNG\r\n\x1a\n0000"),
		FileName: "scan",
		MimeType: "application/octet-stream",
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.UserID != domain.AnonymousUserID || f.docs.records[0].UserID != domain.AnonymousUserID {
		t.Fatalf("expected anonymous user, got %s", res.UserID)
	}
	if f.storage.mimeType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %s", f.storage.mimeType)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report 1.pdf":         "report_1.pdf",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\scan.png`: "scan.png",
		"":                     "document.bin",
		".hidden":              "hidden",
		"анализ крови.jpg":     "____________.jpg",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
