package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinScore        = 0
	MaxScore        = 100
	MaxSummaryRunes = 500

	DefaultSummary  = "No summary available."
	FallbackSummary = "We could not analyze this document right now. Please try again later."

	ReportsCollection = "reports"
	HistoryLimit      = 10
)

type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeDegraded OutcomeStatus = "degraded"
)

type Recommendations struct {
	Diet      []string `json:"diet"`
	Exercise  []string `json:"exercise"`
	Lifestyle []string `json:"lifestyle"`
}

// Report is the structured health assessment derived from one document.
// Vitals keys are chosen by the model and are not fixed ahead of time.
type Report struct {
	Score           int               `json:"score"`
	Summary         string            `json:"summary"`
	Vitals          map[string]string `json:"vitals"`
	Recommendations Recommendations   `json:"recommendations"`
}

// Normalize returns a copy that satisfies every Report invariant:
// score in [0,100], bounded non-empty summary, non-nil vitals and lists.
func (r Report) Normalize() Report {
	out := Report{
		Score:   clampScore(r.Score),
		Summary: truncateRunes(strings.TrimSpace(r.Summary), MaxSummaryRunes),
		Vitals:  make(map[string]string, len(r.Vitals)),
		Recommendations: Recommendations{
			Diet:      nonNil(r.Recommendations.Diet),
			Exercise:  nonNil(r.Recommendations.Exercise),
			Lifestyle: nonNil(r.Recommendations.Lifestyle),
		},
	}
	if out.Summary == "" {
		out.Summary = DefaultSummary
	}
	for k, v := range r.Vitals {
		out.Vitals[k] = v
	}
	return out
}

// FallbackReport is Report-shaped so consumers never branch on degradation.
func FallbackReport() Report {
	return Report{
		Score:   0,
		Summary: FallbackSummary,
		Vitals:  map[string]string{},
		Recommendations: Recommendations{
			Diet:      []string{},
			Exercise:  []string{},
			Lifestyle: []string{},
		},
	}
}

// Outcome is the explicit result of the analysis stage: either a parsed
// report or the degraded fallback.
type Outcome struct {
	Status OutcomeStatus
	Report Report
}

func OK(report Report) Outcome {
	return Outcome{Status: OutcomeOK, Report: report.Normalize()}
}

func Degraded() Outcome {
	return Outcome{Status: OutcomeDegraded, Report: FallbackReport()}
}

func (o Outcome) IsDegraded() bool {
	return o.Status == OutcomeDegraded
}

// ReportRecord is one immutable history entry. ID and Timestamp are assigned
// by the document store.
type ReportRecord struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	FileURL   string        `json:"fileUrl"`
	FileName  string        `json:"fileName"`
	MimeType  string        `json:"mimeType"`
	PageCount int           `json:"pageCount"`
	Status    OutcomeStatus `json:"status"`
	Report
	Timestamp time.Time `json:"timestamp"`
}

type SortOrder string

// OrderTimestampDesc is the only ordering history needs; an empty OrderBy
// means the same.
const OrderTimestampDesc SortOrder = "timestamp_desc"

type RecordQuery struct {
	UserID  string
	OrderBy SortOrder
	Limit   int
}

// AnalysisResult is what one pipeline run hands back to the transport layer.
// A nil ReportID means the outcome was not durably recorded.
type AnalysisResult struct {
	Outcome  Outcome
	ReportID *string
	Object   StoredObject
	FileName string
	UserID   string
	Document DocumentInfo
}

type ReportRecordedEvent struct {
	ReportID  string        `json:"reportId"`
	UserID    string        `json:"userId"`
	Score     int           `json:"score"`
	Status    OutcomeStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

func clampScore(score int) int {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
