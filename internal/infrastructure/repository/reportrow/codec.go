// Package reportrow maps report records to and from the flat column layout
// shared by the SQL document stores.
package reportrow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

// Columns in select order.
const Columns = "id, user_id, file_url, file_name, mime_type, page_count, status, score, summary, vitals, recommendations, created_at"

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateCollection keeps collection names usable as table names.
func ValidateCollection(collection string) error {
	if !collectionName.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	return nil
}

// ValidateOrder rejects orderings the stores do not implement.
func ValidateOrder(order domain.SortOrder) error {
	switch order {
	case "", domain.OrderTimestampDesc:
		return nil
	default:
		return fmt.Errorf("unsupported record order %q", order)
	}
}

// Encoded holds the JSON columns of one record.
type Encoded struct {
	Vitals          []byte
	Recommendations []byte
}

func Encode(record domain.ReportRecord) (Encoded, error) {
	report := record.Report.Normalize()
	vitals, err := json.Marshal(report.Vitals)
	if err != nil {
		return Encoded{}, fmt.Errorf("marshal vitals: %w", err)
	}
	recs, err := json.Marshal(report.Recommendations)
	if err != nil {
		return Encoded{}, fmt.Errorf("marshal recommendations: %w", err)
	}
	return Encoded{Vitals: vitals, Recommendations: recs}, nil
}

// Row is the scan target for one stored record.
type Row struct {
	ID              string
	UserID          string
	FileURL         string
	FileName        string
	MimeType        string
	PageCount       int
	Status          string
	Score           int
	Summary         string
	Vitals          []byte
	Recommendations []byte
	CreatedAt       time.Time
}

// Dest returns scan destinations in Columns order.
func (r *Row) Dest() []any {
	return []any{
		&r.ID, &r.UserID, &r.FileURL, &r.FileName, &r.MimeType, &r.PageCount,
		&r.Status, &r.Score, &r.Summary, &r.Vitals, &r.Recommendations, &r.CreatedAt,
	}
}

// Record decodes the row. Undecodable JSON columns are treated as empty so a
// single bad row does not hide a user's whole history.
func (r *Row) Record() domain.ReportRecord {
	rec := domain.ReportRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		FileURL:   r.FileURL,
		FileName:  r.FileName,
		MimeType:  r.MimeType,
		PageCount: r.PageCount,
		Status:    domain.OutcomeStatus(r.Status),
		Report: domain.Report{
			Score:   r.Score,
			Summary: r.Summary,
		},
		Timestamp: r.CreatedAt.UTC(),
	}
	if len(r.Vitals) > 0 {
		_ = json.Unmarshal(r.Vitals, &rec.Vitals)
	}
	if len(r.Recommendations) > 0 {
		_ = json.Unmarshal(r.Recommendations, &rec.Recommendations)
	}
	rec.Report = rec.Report.Normalize()
	return rec
}
