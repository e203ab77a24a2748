package oracle

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseResult parses an oracle response body into a Result. The model is
// never trusted to return well-typed output: code fences are stripped,
// every field is optional, numeric fields tolerate strings and integers,
// and entries lacking their identity field are dropped. Only a body with
// no JSON object at all is an error.
func ParseResult(text string) (*Result, error) {
	cleaned := cleanJSON(text)

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "oracle: parse response")
	}

	result := &Result{}
	if s, ok := raw["summary"].(string); ok {
		result.Summary = strings.TrimSpace(s)
	}

	for _, item := range asSlice(raw["participants"]) {
		email, _ := item["email"].(string)
		if strings.TrimSpace(email) == "" {
			continue
		}
		name, _ := item["name"].(string)
		role, _ := item["role"].(string)
		result.Participants = append(result.Participants, Participant{
			Email: strings.TrimSpace(email),
			Name:  strings.TrimSpace(name),
			Role:  strings.TrimSpace(role),
		})
	}

	for _, item := range asSlice(raw["companies"]) {
		domain, _ := item["domain"].(string)
		if strings.TrimSpace(domain) == "" {
			continue
		}
		name, _ := item["name"].(string)
		result.Companies = append(result.Companies, Company{
			Domain: strings.TrimSpace(domain),
			Name:   strings.TrimSpace(name),
		})
	}

	for _, item := range asSlice(raw["expertise_claims"]) {
		email, _ := item["person_email"].(string)
		area, _ := item["area"].(string)
		if strings.TrimSpace(email) == "" || strings.TrimSpace(area) == "" {
			continue
		}
		conf, _ := toFloat64(item["confidence"])
		result.ExpertiseClaims = append(result.ExpertiseClaims, ExpertiseClaim{
			PersonEmail: strings.TrimSpace(email),
			Area:        strings.ToLower(strings.TrimSpace(area)),
			Confidence:  conf,
		})
	}

	return result, nil
}

// cleanJSON strips markdown code fences and surrounding prose, keeping the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// asSlice coerces a decoded JSON value into a slice of objects, dropping
// non-object elements.
func asSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// toFloat64 coerces decoded JSON numbers, including ones the model quoted
// as strings.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
