package httpadapter

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/fitscore/internal/config"
	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/usecase"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/memory"
	"github.com/kirillkom/fitscore/internal/observability/metrics"
)

const validModelOutput = "```json\n" + `{
  "score": 82,
  "summary": "Blood panel within range.",
  "vitals": {"cholesterol": "180 mg/dL", "glucose": 92},
  "recommendations": {"diet": ["more fiber"], "exercise": ["walk daily"], "lifestyle": ["sleep 8h"]}
}` + "\n```"

type blobFake struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (f *blobFake) Put(ctx context.Context, key string, _ []byte, _ string) (domain.StoredObject, error) {
	f.mu.Lock()
	f.calls++
	delay, putErr := f.delay, f.err
	f.mu.Unlock()

	if err := sleepCtx(ctx, delay); err != nil {
		return domain.StoredObject{}, err
	}
	if putErr != nil {
		return domain.StoredObject{}, putErr
	}
	return domain.StoredObject{Key: key, URI: "mem://reports/" + key}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *blobFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type inferenceFake struct {
	mu      sync.Mutex
	calls   int
	raw     string
	err     error
	release chan struct{}
}

func (f *inferenceFake) Infer(ctx context.Context, _ domain.StoredObject, _, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	release, raw, err := f.release, f.raw, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return raw, err
}

func (f *inferenceFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type storeFake struct {
	inner       *memory.ReportStore
	mu          sync.Mutex
	inserts     int
	queryErr    error
	insertDelay time.Duration
}

func (f *storeFake) Insert(ctx context.Context, collection string, record domain.ReportRecord) (string, error) {
	f.mu.Lock()
	f.inserts++
	delay := f.insertDelay
	f.mu.Unlock()
	if err := sleepCtx(ctx, delay); err != nil {
		return "", err
	}
	return f.inner.Insert(ctx, collection, record)
}

func (f *storeFake) Query(ctx context.Context, collection string, q domain.RecordQuery) ([]domain.ReportRecord, error) {
	f.mu.Lock()
	err := f.queryErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.inner.Query(ctx, collection, q)
}

func (f *storeFake) Inserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

type testEnv struct {
	blob      *blobFake
	inference *inferenceFake
	store     *storeFake
	ledger    *usecase.ReportLedger
	metrics   *metrics.HTTPServerMetrics
	cfg       config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &storeFake{inner: memory.NewReportStore()}
	return &testEnv{
		blob:      &blobFake{},
		inference: &inferenceFake{raw: validModelOutput},
		store:     store,
		ledger:    usecase.NewReportLedger(store, nil, usecase.LedgerOptions{}),
		metrics:   metrics.NewHTTPServerMetrics("test"),
		cfg: config.Config{
			UploadTimeout:      5 * time.Second,
			MaxUploadBytes:     1 << 20,
			CORSAllowedOrigins: []string{"*"},
		},
	}
}

func (e *testEnv) handler() http.Handler {
	if e.cfg.PersistTimeout > 0 {
		e.ledger = usecase.NewReportLedger(e.store, nil, usecase.LedgerOptions{Timeout: e.cfg.PersistTimeout})
	}
	analyzer := usecase.NewAnalyzeReportUseCase(e.inference, nil, e.cfg.InferenceTimeout)
	uploader := usecase.NewIngestReportUseCase(e.blob, nil, analyzer, e.ledger, usecase.IngestOptions{
		StorageTimeout: e.cfg.StorageTimeout,
	})
	return NewRouter(e.cfg, uploader, e.ledger, e.metrics).Handler()
}
