package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/infrastructure/resilience"
)

const DefaultSubject = "reports.recorded"

// EventBus publishes and consumes report-recorded events on one subject.
type EventBus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*EventBus, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*EventBus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	name := options.Name
	if name == "" {
		name = "fitscore"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (b *EventBus) Subject() string {
	return b.subject
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishReportRecorded(ctx context.Context, event domain.ReportRecordedEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, countsAsFailure)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeReportRecorded blocks until ctx is done, then drains the
// subscription. Malformed payloads are logged and skipped.
func (b *EventBus) SubscribeReportRecorded(ctx context.Context, queueGroup string, handler func(context.Context, domain.ReportRecordedEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.subject, queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("report_event_malformed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("report_event_handler_failed", "report_id", event.ReportID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event domain.ReportRecordedEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal report event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (domain.ReportRecordedEvent, error) {
	var event domain.ReportRecordedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ReportRecordedEvent{}, fmt.Errorf("unmarshal report event: %w", err)
	}
	if event.ReportID == "" {
		return domain.ReportRecordedEvent{}, errors.New("report event without report id")
	}
	return event, nil
}
