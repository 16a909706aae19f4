package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/infrastructure/repository/reportrow"
)

// ReportStore keeps records in process memory. Records are lost on restart.
type ReportStore struct {
	mu          sync.RWMutex
	collections map[string][]domain.ReportRecord
	now         func() time.Time
}

func NewReportStore() *ReportStore {
	return &ReportStore{
		collections: make(map[string][]domain.ReportRecord),
		now:         time.Now,
	}
}

func (s *ReportStore) Insert(_ context.Context, collection string, record domain.ReportRecord) (string, error) {
	if err := reportrow.ValidateCollection(collection); err != nil {
		return "", err
	}
	record.ID = uuid.NewString()
	record.Report = record.Report.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	record.Timestamp = s.nextTimestamp(collection)
	s.collections[collection] = append(s.collections[collection], record)
	return record.ID, nil
}

// nextTimestamp keeps insertion order visible even when the clock does not
// advance between inserts.
func (s *ReportStore) nextTimestamp(collection string) time.Time {
	ts := s.now().UTC()
	records := s.collections[collection]
	if n := len(records); n > 0 && !ts.After(records[n-1].Timestamp) {
		ts = records[n-1].Timestamp.Add(time.Microsecond)
	}
	return ts
}

func (s *ReportStore) Query(_ context.Context, collection string, q domain.RecordQuery) ([]domain.ReportRecord, error) {
	if err := reportrow.ValidateOrder(q.OrderBy); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.ReportRecord, 0)
	for _, rec := range s.collections[collection] {
		if rec.UserID == q.UserID {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
