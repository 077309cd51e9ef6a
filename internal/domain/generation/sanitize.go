package generation

import "strings"

// Sanitize returns a copy of opts fit for persistence: raw bytes and inline data URLs
// are dropped, including inside lists.
func Sanitize(opts Options) Options {
	out := make(Options, len(opts))
	for k, v := range opts {
		if s, ok := sanitizeValue(v); ok {
			out[k] = s
		}
	}
	return out
}

func sanitizeValue(v any) (any, bool) {
	switch t := v.(type) {
	case []byte:
		return nil, false
	case string:
		if strings.HasPrefix(t, "data:") {
			return nil, false
		}
		return t, true
	case []any:
		kept := make([]any, 0, len(t))
		for _, item := range t {
			if s, ok := sanitizeValue(item); ok {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 && len(t) > 0 {
			return nil, false
		}
		return kept, true
	case []string:
		kept := make([]string, 0, len(t))
		for _, item := range t {
			if !strings.HasPrefix(item, "data:") {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 && len(t) > 0 {
			return nil, false
		}
		return kept, true
	case map[string]any:
		return map[string]any(Sanitize(t)), true
	case Options:
		return Sanitize(t), true
	}
	return v, true
}
