package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/fitscore/internal/config"
	"github.com/kirillkom/fitscore/internal/core/ports"
	"github.com/kirillkom/fitscore/internal/core/usecase"
	"github.com/kirillkom/fitscore/internal/infrastructure/docmeta"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm/openai"
	"github.com/kirillkom/fitscore/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/memory"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/mysql"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fitscore/internal/infrastructure/resilience"
	"github.com/kirillkom/fitscore/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/fitscore/internal/infrastructure/storage/minio"
	"github.com/kirillkom/fitscore/internal/infrastructure/storage/supabase"
	"github.com/kirillkom/fitscore/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	Uploader ports.ReportUploader
	History  ports.ReportHistory

	closers []func()
}

// blobBackend is what every blob store adapter offers: writes for the
// pipeline and reads for inference adapters that inline bytes.
type blobBackend interface {
	ports.BlobStore
	ports.ObjectReader
}

type schemaStore interface {
	ports.DocumentStore
	EnsureSchema(ctx context.Context, collection string) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics("api"),
	}

	executor := NewExecutor(cfg).OnStateChange(func(operation string, from, to gobreaker.State) {
		slog.Warn("circuit_breaker_state_changed", "operation", operation, "from", from.String(), "to", to.String())
		app.Metrics.SetBreakerState(operation, int(to))
	})

	blobs, err := newBlobBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	inference, err := app.newInference(ctx, cfg, blobs, executor)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init inference: %w", err)
	}

	store, err := app.newDocumentStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init document store: %w", err)
	}

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		bus, err := NewEventBus(cfg, executor)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		app.closers = append(app.closers, bus.Close)
		events = bus
	}

	ledger := usecase.NewReportLedger(store, events, usecase.LedgerOptions{
		Collection: cfg.ReportsCollection,
		Timeout:    cfg.PersistTimeout,
	})
	analyzer := usecase.NewAnalyzeReportUseCase(inference, usecase.NewNormalizer(), cfg.InferenceTimeout)
	app.Uploader = usecase.NewIngestReportUseCase(blobs, docmeta.NewInspector(), analyzer, ledger, usecase.IngestOptions{
		StorageTimeout: cfg.StorageTimeout,
	})
	app.History = ledger

	slog.Info("bootstrap_complete",
		"blob_backend", cfg.BlobBackend,
		"inference_provider", cfg.InferenceProvider,
		"document_store", cfg.DocumentStore,
		"events_enabled", events != nil,
	)
	return app, nil
}

func NewExecutor(cfg config.Config) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Enabled:      cfg.BreakerEnabled,
		MinRequests:  uint32(max(cfg.BreakerMinRequests, 0)),
		FailureRatio: cfg.BreakerFailureRatio,
		OpenTimeout:  cfg.BreakerOpenTimeout,
	})
}

func NewEventBus(cfg config.Config, executor *resilience.Executor) (*nats.EventBus, error) {
	return nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Name:               "fitscore",
		ResilienceExecutor: executor,
	})
}

func newBlobBackend(ctx context.Context, cfg config.Config) (blobBackend, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendMinIO:
		return minio.New(ctx, minio.Config{
			Endpoint:      cfg.MinIOEndpoint,
			Region:        cfg.MinIORegion,
			Bucket:        cfg.MinIOBucket,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			UseSSL:        cfg.MinIOUseSSL,
			PublicBaseURL: cfg.MinIOPublicURL,
		})
	case config.BlobBackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
		}
		return supabase.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket), nil
	default:
		return localfs.New(cfg.StoragePath)
	}
}

func (a *App) newInference(ctx context.Context, cfg config.Config, reader ports.ObjectReader, executor *resilience.Executor) (ports.InferenceService, error) {
	var provider llm.Provider
	switch cfg.InferenceProvider {
	case config.InferenceOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required")
		}
		provider = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, reader)
	case config.InferenceOllama:
		provider = ollama.New(cfg.OllamaURL, cfg.OllamaModel, reader)
	default:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required")
		}
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, reader)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		provider = client
	}
	return llm.NewGuarded(provider, executor), nil
}

func (a *App) newDocumentStore(ctx context.Context, cfg config.Config) (ports.DocumentStore, error) {
	var (
		db    *sql.DB
		store schemaStore
		err   error
	)
	switch cfg.DocumentStore {
	case config.DocumentStoreMemory:
		return memory.NewReportStore(), nil
	case config.DocumentStoreMySQL:
		db, err = mysql.OpenDB(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		store = mysql.NewReportRepository(db)
	default:
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store = postgres.NewReportRepository(db)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	if err := store.EnsureSchema(ctx, cfg.ReportsCollection); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
