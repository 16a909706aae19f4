package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

type blobStoreFake struct {
	mu       sync.Mutex
	calls    int
	keys     []string
	mimeType string
	body     []byte
	err      error
	delay    time.Duration
}

func (f *blobStoreFake) Put(ctx context.Context, key string, data []byte, mimeType string) (domain.StoredObject, error) {
	f.mu.Lock()
	f.calls++
	f.keys = append(f.keys, key)
	f.mimeType = mimeType
	f.body = append([]byte(nil), data...)
	delay, err := f.delay, f.err
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.StoredObject{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.StoredObject{}, err
	}
	return domain.StoredObject{Key: key, URI: "mem://reports/" + key}, nil
}

func (f *blobStoreFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type inferenceFake struct {
	mu          sync.Mutex
	calls       int
	response    string
	err         error
	delay       time.Duration
	object      domain.StoredObject
	mimeType    string
	instruction string
}

func (f *inferenceFake) Infer(ctx context.Context, object domain.StoredObject, mimeType, instruction string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.object = object
	f.mimeType = mimeType
	f.instruction = instruction
	delay, response, err := f.delay, f.response, f.err
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return response, err
}

func (f *inferenceFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// documentStoreFake stamps timestamps from a monotonic fake clock, like a
// server-side default would.
type documentStoreFake struct {
	mu         sync.Mutex
	records    []domain.ReportRecord
	inserts    int
	queries    int
	insertErr  error
	queryErr   error
	clock      time.Time
	collection string
}

func newDocumentStoreFake() *documentStoreFake {
	return &documentStoreFake{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *documentStoreFake) Insert(_ context.Context, collection string, record domain.ReportRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	f.collection = collection
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.clock = f.clock.Add(time.Second)
	record.ID = fmt.Sprintf("rep-%d", len(f.records)+1)
	record.Timestamp = f.clock
	f.records = append(f.records, record)
	return record.ID, nil
}

func (f *documentStoreFake) Query(_ context.Context, _ string, query domain.RecordQuery) ([]domain.ReportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]domain.ReportRecord, 0)
	for _, rec := range f.records {
		if rec.UserID == query.UserID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (f *documentStoreFake) Inserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

type eventPublisherFake struct {
	mu     sync.Mutex
	events []domain.ReportRecordedEvent
	err    error
}

func (f *eventPublisherFake) PublishReportRecorded(_ context.Context, event domain.ReportRecordedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

var errUpstream = errors.New("upstream unavailable")
