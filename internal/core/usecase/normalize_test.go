package usecase

import (
	"reflect"
	"testing"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

const sampleReportJSON = `{"score":82,"summary":"Healthy overall.","vitals":{"Blood Pressure":"120/80 mmHg","Heart Rate":72},"recommendations":{"diet":["More fiber"],"exercise":["Walk daily"],"lifestyle":["Sleep 8h"]}}`

func assertReportInvariants(t *testing.T, report domain.Report) {
	t.Helper()
	if report.Score < 0 || report.Score > 100 {
		t.Fatalf("score out of range: %d", report.Score)
	}
	if report.Summary == "" {
		t.Fatalf("expected non-empty summary")
	}
	if report.Vitals == nil {
		t.Fatalf("expected non-nil vitals")
	}
	if report.Recommendations.Diet == nil || report.Recommendations.Exercise == nil || report.Recommendations.Lifestyle == nil {
		t.Fatalf("expected all recommendation lists present, got %+v", report.Recommendations)
	}
}

func TestNormalizeFencedAndPlainProduceSameOutcome(t *testing.T) {
	n := NewNormalizer()

	plain := n.Normalize(sampleReportJSON)
	fenced := n.Normalize("```json\n" + sampleReportJSON + "\n```")

	if plain.IsDegraded() {
		t.Fatalf("expected plain outcome to parse")
	}
	if !reflect.DeepEqual(plain, fenced) {
		t.Fatalf("fenced outcome differs:\nplain=%+v\nfenced=%+v", plain, fenced)
	}
	if plain.Report.Score != 82 {
		t.Fatalf("expected score 82, got %d", plain.Report.Score)
	}
	if plain.Report.Vitals["Heart Rate"] != "72" {
		t.Fatalf("expected numeric vital rendered as string, got %q", plain.Report.Vitals["Heart Rate"])
	}
}

func TestNormalizeDefaultsMissingFields(t *testing.T) {
	n := NewNormalizer()

	outcome := n.Normalize(`{"score":64,"summary":"ok","recommendations":{"diet":["Less salt"],"lifestyle":[]}}`)
	if outcome.IsDegraded() {
		t.Fatalf("expected ok outcome")
	}
	assertReportInvariants(t, outcome.Report)
	if len(outcome.Report.Vitals) != 0 {
		t.Fatalf("expected empty vitals, got %+v", outcome.Report.Vitals)
	}
	if len(outcome.Report.Recommendations.Exercise) != 0 {
		t.Fatalf("expected empty exercise list, got %+v", outcome.Report.Recommendations.Exercise)
	}
	if got := outcome.Report.Recommendations.Diet; len(got) != 1 || got[0] != "Less salt" {
		t.Fatalf("unexpected diet list: %+v", got)
	}
}

func TestNormalizeEmptyObjectUsesDefaults(t *testing.T) {
	outcome := NewNormalizer().Normalize(`{}`)
	if outcome.IsDegraded() {
		t.Fatalf("an empty object is a parse success")
	}
	if outcome.Report.Score != 0 {
		t.Fatalf("expected score 0, got %d", outcome.Report.Score)
	}
	if outcome.Report.Summary != domain.DefaultSummary {
		t.Fatalf("expected default summary, got %q", outcome.Report.Summary)
	}
	assertReportInvariants(t, outcome.Report)
}

func TestNormalizeDegradesOnUnparseableOrWrongShape(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"I could not read this document.",
		`[{"score": 90}]`,
		`"just a string"`,
		`42`,
		`null`,
		"```json\n```",
		`{"score": 90`,
	}

	n := NewNormalizer()
	for _, input := range inputs {
		outcome := n.Normalize(input)
		if !outcome.IsDegraded() {
			t.Fatalf("input %q: expected degraded outcome, got %+v", input, outcome)
		}
		if !reflect.DeepEqual(outcome.Report, domain.FallbackReport()) {
			t.Fatalf("input %q: expected fallback report, got %+v", input, outcome.Report)
		}
		assertReportInvariants(t, outcome.Report)
	}
}

func TestNormalizeCoercesScore(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`{"score": 150}`, 100},
		{`{"score": -3}`, 0},
		{`{"score": 82.6}`, 83},
		{`{"score": "71"}`, 71},
		{`{"score": "high"}`, 0},
		{`{"score": true}`, 0},
		{`{"Score": 55}`, 55},
	}

	n := NewNormalizer()
	for _, tc := range cases {
		outcome := n.Normalize(tc.raw)
		if outcome.Report.Score != tc.want {
			t.Fatalf("input %s: expected score %d, got %d", tc.raw, tc.want, outcome.Report.Score)
		}
	}
}

func TestNormalizeToleratesWrongTypedFields(t *testing.T) {
	outcome := NewNormalizer().Normalize(`{"score":70,"summary":12,"vitals":["bp"],"recommendations":"eat well"}`)
	if outcome.IsDegraded() {
		t.Fatalf("wrong-typed fields should default, not degrade")
	}
	assertReportInvariants(t, outcome.Report)
	if outcome.Report.Summary != domain.DefaultSummary {
		t.Fatalf("expected default summary, got %q", outcome.Report.Summary)
	}
	if len(outcome.Report.Vitals) != 0 {
		t.Fatalf("expected empty vitals, got %+v", outcome.Report.Vitals)
	}
}

func TestNormalizeFoldsLegacyShape(t *testing.T) {
	outcome := NewNormalizer().Normalize(`{"score":80,"summary":"fine","bmi":24.5,"bmiStatus":"Healthy Weight","vitals":{"bp":"120/80 mmHg"},"dietPlan":["Eat greens","Drink water"]}`)

	if got := outcome.Report.Recommendations.Diet; len(got) != 2 || got[0] != "Eat greens" {
		t.Fatalf("expected dietPlan to fill diet, got %+v", got)
	}
	if outcome.Report.Vitals["bmi"] != "24.5" || outcome.Report.Vitals["bmiStatus"] != "Healthy Weight" {
		t.Fatalf("expected legacy bmi fields in vitals, got %+v", outcome.Report.Vitals)
	}
}

func TestNormalizeTruncatesLongSummary(t *testing.T) {
	long := make([]byte, 0, 2000)
	for i := 0; i < 2000; i++ {
		long = append(long, 'a')
	}
	outcome := NewNormalizer().Normalize(`{"summary":"` + string(long) + `"}`)
	if got := len([]rune(outcome.Report.Summary)); got != domain.MaxSummaryRunes {
		t.Fatalf("expected summary truncated to %d runes, got %d", domain.MaxSummaryRunes, got)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"opening only", "```json\n{\"a\":1}", `{"a":1}`},
		{"closing only", "{\"a\":1}\n```", `{"a":1}`},
		{"single line", "```json {\"a\":1}```", `{"a":1}`},
		{"surrounding whitespace", "\n\n  ```JSON\n{\"a\":1}\n```  \n", `{"a":1}`},
		{"prose wrapper", "Here is the result:\n```json\n{\"a\":1}\n```\nHope this helps.", `{"a":1}`},
		{"array untouched", `[{"a":1}]`, `[{"a":1}]`},
		{"empty fence", "```\n```", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.raw); got != tc.want {
				t.Fatalf("StripFences(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
