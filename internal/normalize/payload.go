package normalize

import (
	"strings"

	"github.com/sakif/game-gateway/internal/model"
)

// Payload is one game object exactly as the recommendation backend sent
// it. Field names vary by endpoint, so every accessor takes a list of
// aliases and uses the first one present.
type Payload map[string]any

// value returns the first non-nil value among keys.
func (p Payload) value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// text returns the first non-blank string among keys, trimmed.
func (p Payload) text(keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// number returns the first finite numeric value among keys. Numeric
// strings count.
func (p Payload) number(keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := model.ToFloat(p[k]); ok {
			return f, true
		}
	}
	return 0, false
}

// list returns the first non-empty token list among keys. Strings are
// split on any rune in seps; arrays keep their non-blank string items.
func (p Payload) list(seps string, keys ...string) []string {
	for _, k := range keys {
		if tokens := splitTokens(p[k], seps); len(tokens) > 0 {
			return tokens
		}
	}
	return nil
}

func splitTokens(v any, seps string) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.FieldsFunc(t, func(r rune) bool { return strings.ContainsRune(seps, r) })
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	case []string:
		parts = t
	default:
		return nil
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
