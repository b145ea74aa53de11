package query

import (
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
)

// matchesFilters reports whether the chunk's metadata satisfies every filter.
// A scalar filter value requires equality; a slice value requires membership.
// A chunk missing a filtered key fails that filter.
func matchesFilters(c *models.Chunk, filters map[string]interface{}) bool {
	for key, want := range filters {
		got, ok := c.Metadata[key]
		if !ok {
			return false
		}
		switch want := want.(type) {
		case []interface{}:
			found := false
			for _, w := range want {
				if metaEqual(got, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case []string:
			found := false
			for _, w := range want {
				if metaEqual(got, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if !metaEqual(got, want) {
				return false
			}
		}
	}
	return true
}

// metaEqual compares metadata values loosely: numeric types are compared by
// value so that a filter int matches a JSON-decoded float64, everything else
// falls back to string formatting.
func metaEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
