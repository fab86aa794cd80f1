// Package schema defines the external contracts of the extraction layer:
// the validated input record, the JSON output envelope, and the
// MessageEnvelope carrier object shared with the upstream layers.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// htmlTagRe is the heuristic tag detector: any raw HTML tag in the input
// text rejects the message, since upstream is responsible for de-HTMLing.
var htmlTagRe = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)

// ErrorRecord is a single structured error or warning. Validation errors
// carry Field; internal faults carry Component.
type ErrorRecord struct {
	Field     string `json:"field,omitempty"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

// ValidationError is the hard-failure result of input validation.
type ValidationError struct {
	Records []ErrorRecord
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Field, r.Message))
	}
	return "input validation failed: " + strings.Join(parts, "; ")
}

// ExtractionInput is the validated message payload received from the
// upstream layer. Lingua is nil when language detection failed upstream;
// that is a soft warning, not a rejection.
type ExtractionInput struct {
	IDConversazione   string
	IDMessaggio       string
	TestoNormalizzato string
	Lingua            *string
	Timestamp         string
	Mittente          string
	Destinatario      string

	// Optional upstream enrichments, passed through untouched.
	PreAnnotations []map[string]any
	RoutingRules   []string
	UpstreamTags   []string
}

var requiredStringFields = []string{
	"id_conversazione",
	"id_messaggio",
	"testo_normalizzato",
	"timestamp",
	"mittente",
	"destinatario",
}

// ValidateInput validates a raw key-value map against the input contract.
// On success it returns the parsed input plus non-blocking warnings
// (e.g. lingua missing). On hard failure it returns a ValidationError
// listing every violated rule.
func ValidateInput(raw map[string]any, maxTextLength int) (*ExtractionInput, []ErrorRecord, *ValidationError) {
	var errs []ErrorRecord
	var warnings []ErrorRecord

	if raw == nil {
		errs = append(errs, ErrorRecord{Field: "input", Message: "input map is nil", Type: "missing_field"})
		return nil, nil, &ValidationError{Records: errs}
	}

	fields := map[string]string{}
	for _, name := range requiredStringFields {
		v, ok := raw[name]
		if !ok || v == nil {
			errs = append(errs, ErrorRecord{Field: name, Message: "required field is missing", Type: "missing_field"})
			continue
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, ErrorRecord{Field: name, Message: fmt.Sprintf("expected string, got %T", v), Type: "wrong_type"})
			continue
		}
		if s == "" && name != "testo_normalizzato" {
			errs = append(errs, ErrorRecord{Field: name, Message: "must not be empty", Type: "empty_value"})
			continue
		}
		fields[name] = s
	}

	if text, ok := fields["testo_normalizzato"]; ok {
		switch {
		case strings.TrimSpace(text) == "":
			errs = append(errs, ErrorRecord{
				Field: "testo_normalizzato", Message: "must not be empty or whitespace-only", Type: "empty_text",
			})
		case len(text) > maxTextLength:
			errs = append(errs, ErrorRecord{
				Field:   "testo_normalizzato",
				Message: fmt.Sprintf("exceeds maximum allowed length of %d (got %d)", maxTextLength, len(text)),
				Type:    "text_too_long",
			})
		case htmlTagRe.MatchString(text):
			errs = append(errs, ErrorRecord{
				Field:   "testo_normalizzato",
				Message: "must not contain raw HTML tags; strip HTML upstream",
				Type:    "html_detected",
			})
		}
	}

	var lingua *string
	if v, ok := raw["lingua"]; !ok || v == nil {
		warnings = append(warnings, ErrorRecord{
			Field:   "lingua",
			Message: "lingua is null; NER engine will be skipped for this message",
			Type:    "null_language",
		})
	} else if s, ok := v.(string); !ok {
		errs = append(errs, ErrorRecord{Field: "lingua", Message: fmt.Sprintf("expected string or null, got %T", v), Type: "wrong_type"})
	} else if strings.TrimSpace(s) == "" {
		errs = append(errs, ErrorRecord{Field: "lingua", Message: "must be a non-empty string or null", Type: "empty_value"})
	} else {
		l := strings.ToLower(s)
		lingua = &l
	}

	if len(errs) > 0 {
		return nil, warnings, &ValidationError{Records: errs}
	}

	in := &ExtractionInput{
		IDConversazione:   fields["id_conversazione"],
		IDMessaggio:       fields["id_messaggio"],
		TestoNormalizzato: fields["testo_normalizzato"],
		Lingua:            lingua,
		Timestamp:         fields["timestamp"],
		Mittente:          fields["mittente"],
		Destinatario:      fields["destinatario"],
		PreAnnotations:    mapSlice(raw["pre_annotations"]),
		RoutingRules:      stringSlice(raw["routing_rules"]),
		UpstreamTags:      stringSlice(raw["upstream_tags"]),
	}
	return in, warnings, nil
}

// mapSlice coerces a decoded JSON array into []map[string]any, skipping
// elements of other shapes.
func mapSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// stringSlice coerces a decoded JSON array into []string, skipping
// non-string elements.
func stringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
