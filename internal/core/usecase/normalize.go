package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

// Normalizer turns raw model text into an Outcome. It is the only place
// where missing or mistyped fields are defaulted.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize never fails: anything that does not parse as a JSON object
// becomes the degraded fallback.
func (n *Normalizer) Normalize(raw string) domain.Outcome {
	report, err := n.Parse(raw)
	if err != nil {
		return domain.Degraded()
	}
	return domain.OK(report)
}

// Parse strips fences, decodes a JSON object and coerces it into a Report.
func (n *Normalizer) Parse(raw string) (domain.Report, error) {
	text := StripFences(raw)
	if text == "" {
		return domain.Report{}, domain.WrapError(domain.ErrAnalysis, "parse report", errors.New("empty model output"))
	}

	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return domain.Report{}, domain.WrapError(domain.ErrAnalysis, "parse report", err)
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return domain.Report{}, domain.WrapError(
			domain.ErrAnalysis,
			"parse report",
			fmt.Errorf("top-level value is %s, want object", jsonKind(value)),
		)
	}

	return coerceReport(fields).Normalize(), nil
}

// StripFences removes code fence markers (with an optional language tag)
// around model output and narrows the text to the outermost JSON object.
// Zero, one, or mismatched fences are all accepted.
func StripFences(raw string) string {
	text := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))

	if strings.HasPrefix(text, "`") {
		text = strings.TrimLeft(text, "`")
		text = dropLanguageTag(text)
		text = strings.TrimSpace(text)
	}
	if strings.HasSuffix(text, "`") {
		text = strings.TrimSpace(strings.TrimRight(text, "`"))
	}

	if text == "" || text[0] == '[' || text[0] == '"' {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func dropLanguageTag(text string) string {
	i := 0
	for i < len(text) {
		c := text[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '+' {
			i++
			continue
		}
		break
	}
	if i == 0 {
		return text
	}
	rest := text[i:]
	if rest == "" || rest[0] == '\n' || rest[0] == '\r' || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '{' {
		return rest
	}
	return text
}

func coerceReport(fields map[string]any) domain.Report {
	report := domain.Report{
		Score:   coerceScore(lookup(fields, "score")),
		Summary: coerceString(lookup(fields, "summary")),
		Vitals:  coerceVitals(lookup(fields, "vitals")),
	}

	recs, _ := lookup(fields, "recommendations").(map[string]any)
	report.Recommendations = domain.Recommendations{
		Diet:      coerceList(lookup(recs, "diet")),
		Exercise:  coerceList(lookup(recs, "exercise")),
		Lifestyle: coerceList(lookup(recs, "lifestyle")),
	}

	// Older prompt shape: flat dietPlan plus bmi fields.
	if len(report.Recommendations.Diet) == 0 {
		report.Recommendations.Diet = coerceList(lookup(fields, "dietPlan"))
	}
	foldLegacyVital(report.Vitals, "bmi", lookup(fields, "bmi"))
	foldLegacyVital(report.Vitals, "bmiStatus", lookup(fields, "bmiStatus"))

	return report
}

// lookup matches keys case-insensitively; an exact match wins.
func lookup(fields map[string]any, key string) any {
	if fields == nil {
		return nil
	}
	if v, ok := fields[key]; ok {
		return v
	}
	for k, v := range fields {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func coerceScore(value any) int {
	var f float64
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Round(f)
	if f < domain.MinScore {
		return domain.MinScore
	}
	if f > domain.MaxScore {
		return domain.MaxScore
	}
	return int(f)
}

func coerceString(value any) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

func coerceVitals(value any) map[string]string {
	out := map[string]string{}
	fields, ok := value.(map[string]any)
	if !ok {
		return out
	}
	for k, v := range fields {
		label := strings.TrimSpace(k)
		if label == "" {
			continue
		}
		if rendered, ok := renderScalar(v); ok {
			out[label] = rendered
		}
	}
	return out
}

func coerceList(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if rendered, ok := renderScalar(item); ok && rendered != "" {
				out = append(out, rendered)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

func renderScalar(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			return "", false
		}
		return strings.TrimSpace(buf.String()), true
	}
}

func foldLegacyVital(vitals map[string]string, key string, value any) {
	if _, exists := vitals[key]; exists {
		return
	}
	rendered, ok := renderScalar(value)
	if !ok {
		return
	}
	switch strings.ToUpper(rendered) {
	case "", "0", "N/A":
		return
	}
	vitals[key] = rendered
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
