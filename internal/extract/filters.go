package extract

import (
	"fmt"
	"regexp"
	"strings"

	"mailnerd/internal/config"
	"mailnerd/internal/entity"
)

// Post-extraction filters, applied in fixed order after resolution:
// empty-guard, blacklist, type flags, canonical format. Canonicalization
// rewrites Value only; Span keeps pointing at the original substring.

// FilterEmpty removes invalid entities. The engines already guard for
// this; the filter is the final safety net.
func FilterEmpty(entities []entity.Entity) []entity.Entity {
	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if e.IsValid() {
			out = append(out, e)
		}
	}
	return out
}

// ApplyBlacklist drops entities whose value matches a blacklist entry,
// case-insensitively.
func ApplyBlacklist(entities []entity.Entity, blacklist []string) []entity.Entity {
	if len(blacklist) == 0 {
		return entities
	}
	blocked := make(map[string]struct{}, len(blacklist))
	for _, v := range blacklist {
		blocked[strings.ToLower(v)] = struct{}{}
	}

	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if _, hit := blocked[strings.ToLower(e.Value)]; !hit {
			out = append(out, e)
		}
	}
	return out
}

// ApplyTypeFlags drops entities whose type is explicitly disabled.
// Unknown types default to enabled.
func ApplyTypeFlags(entities []entity.Entity, cfg *config.Pipeline) []entity.Entity {
	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if cfg.IsEntityTypeEnabled(e.Type) {
			out = append(out, e)
		}
	}
	return out
}

var (
	dateRe   = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})$`)
	amountRe = regexp.MustCompile(`^(\d[\d.,]*)$`)
)

// CanonicalizeFormats rewrites values to canonical representations:
// DATA to ISO 8601, IMPORTO to a dot-decimal with two fraction digits,
// CODICEFISCALE and PARTITAIVA to uppercase without whitespace. Other
// types pass through unchanged.
func CanonicalizeFormats(entities []entity.Entity) []entity.Entity {
	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		canonical := e.Value
		switch e.Type {
		case "DATA":
			canonical = canonicalDate(e.Value)
		case "IMPORTO":
			canonical = canonicalAmount(e.Value)
		case "CODICEFISCALE", "PARTITAIVA":
			canonical = strings.ReplaceAll(strings.ToUpper(e.Value), " ", "")
		}

		if canonical != e.Value {
			e = entity.Entity{
				Type:       e.Type,
				Value:      canonical,
				Span:       e.Span,
				Confidence: e.Confidence,
				Source:     e.Source,
				Version:    e.Version,
			}
		}
		out = append(out, e)
	}
	return out
}

// canonicalDate converts dd/mm/yyyy (or dd-mm-yyyy, dd.mm.yyyy) to ISO
// 8601. Two-digit years expand as 00-49 -> 2000s, 50-99 -> 1900s. Values
// in an unknown format pass through unchanged.
func canonicalDate(value string) string {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return value
	}
	day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if len(m[3]) == 2 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// canonicalAmount normalizes currency values ("€ 1.234,56", "1500,5 €",
// "€ 10.50") to a plain dot-decimal with two fraction digits.
func canonicalAmount(value string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, "€", ""))
	if !amountRe.MatchString(cleaned) {
		return value
	}

	intPart := cleaned
	decPart := ""
	if i := strings.LastIndex(cleaned, ","); i >= 0 {
		// Italian format: comma is the decimal separator, dots group
		// thousands.
		intPart, decPart = cleaned[:i], cleaned[i+1:]
	} else if i := strings.LastIndex(cleaned, "."); i >= 0 && len(cleaned)-i-1 <= 2 {
		// A trailing dot group of 1-2 digits is a decimal part, not a
		// thousands group.
		intPart, decPart = cleaned[:i], cleaned[i+1:]
	}

	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" || strings.ContainsAny(decPart, ".,") {
		return value
	}
	switch len(decPart) {
	case 0:
		decPart = "00"
	case 1:
		decPart += "0"
	case 2:
	default:
		return value
	}
	return intPart + "." + decPart
}

// ApplyAll runs every post-filter in the canonical order.
func ApplyAll(entities []entity.Entity, cfg *config.Pipeline) []entity.Entity {
	entities = FilterEmpty(entities)
	entities = ApplyBlacklist(entities, cfg.BlacklistValues)
	entities = ApplyTypeFlags(entities, cfg)
	entities = CanonicalizeFormats(entities)
	return entities
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
