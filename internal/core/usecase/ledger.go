package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
)

type LedgerOptions struct {
	Collection   string
	Timeout      time.Duration
	HistoryLimit int
	Now          func() time.Time
}

// ReportLedger appends analysis outcomes per user and serves bounded history.
type ReportLedger struct {
	store  ports.DocumentStore
	events ports.EventPublisher

	collection   string
	timeout      time.Duration
	historyLimit int
	now          func() time.Time
}

func NewReportLedger(store ports.DocumentStore, events ports.EventPublisher, opts LedgerOptions) *ReportLedger {
	if opts.Collection == "" {
		opts.Collection = domain.ReportsCollection
	}
	if opts.HistoryLimit <= 0 || opts.HistoryLimit > domain.HistoryLimit {
		opts.HistoryLimit = domain.HistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ReportLedger{
		store:        store,
		events:       events,
		collection:   opts.Collection,
		timeout:      opts.Timeout,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}
}

// Record writes one record and returns its id, or nil when the write failed.
// A failed write is logged and never fails the caller.
func (l *ReportLedger) Record(ctx context.Context, record domain.ReportRecord) *string {
	record.ID = ""
	record.Timestamp = time.Time{}
	record.UserID = domain.NormalizeUserID(record.UserID)
	record.Report = record.Report.Normalize()
	if record.Status == "" {
		record.Status = domain.OutcomeOK
	}

	id, err := boundedCall(ctx, l.timeout, "document write", func(callCtx context.Context) (string, error) {
		return l.store.Insert(callCtx, l.collection, record)
	})
	if err == nil && id == "" {
		err = errEmptyRecordID
	}
	if err != nil {
		slog.Error("report_persist_failed",
			"stage", "ledger",
			"user_id", record.UserID,
			"file_url", record.FileURL,
			"error", domain.WrapError(domain.ErrPersistence, "insert report", err),
		)
		return nil
	}

	l.publish(ctx, domain.ReportRecordedEvent{
		ReportID:  id,
		UserID:    record.UserID,
		Score:     record.Score,
		Status:    record.Status,
		Timestamp: l.now().UTC(),
	})
	return &id
}

// History returns at most the configured number of records for the user,
// newest first. An unknown user yields an empty slice.
func (l *ReportLedger) History(ctx context.Context, userID string) ([]domain.ReportRecord, error) {
	userID = domain.NormalizeUserID(userID)

	records, err := boundedCall(ctx, l.timeout, "document query", func(callCtx context.Context) ([]domain.ReportRecord, error) {
		return l.store.Query(callCtx, l.collection, domain.RecordQuery{
			UserID:  userID,
			OrderBy: domain.OrderTimestampDesc,
			Limit:   l.historyLimit,
		})
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "query report history", err)
	}

	out := make([]domain.ReportRecord, 0, len(records))
	for _, rec := range records {
		if rec.UserID != userID {
			continue
		}
		rec.Report = rec.Report.Normalize()
		if rec.Status == "" {
			rec.Status = domain.OutcomeOK
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > l.historyLimit {
		out = out[:l.historyLimit]
	}
	return out, nil
}

func (l *ReportLedger) publish(ctx context.Context, event domain.ReportRecordedEvent) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishReportRecorded(ctx, event); err != nil {
		slog.Warn("report_event_publish_failed",
			"report_id", event.ReportID,
			"user_id", event.UserID,
			"error", err,
		)
	}
}
