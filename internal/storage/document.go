package storage

import (
	"encoding/json"
	"time"
)

// Timestamps inside free-form payloads are persisted as
// {"_seconds": <unix>, "_nanoseconds": <nanos>} so that readers of the raw
// column see a native timestamp shape instead of an RFC 3339 string.
const (
	secondsKey     = "_seconds"
	nanosecondsKey = "_nanoseconds"
)

// toDocument returns a copy of m with every time.Time, at any depth,
// replaced by its timestamp document.
func toDocument(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := encodeValue(m).(map[string]any)
	return out
}

// fromDocument reverses toDocument.
func fromDocument(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := decodeValue(m).(map[string]any)
	return out
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{
			secondsKey:     val.Unix(),
			nanosecondsKey: int32(val.Nanosecond()),
		}
	case *time.Time:
		if val == nil {
			return nil
		}
		return encodeValue(*val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item)
		}
		return out
	default:
		return v
	}
}

func decodeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if t, ok := asTimestamp(val); ok {
			return t
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = decodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = decodeValue(item)
		}
		return out
	default:
		return v
	}
}

func asTimestamp(m map[string]any) (time.Time, bool) {
	if len(m) != 2 {
		return time.Time{}, false
	}
	secs, ok := asInt64(m[secondsKey])
	if !ok {
		return time.Time{}, false
	}
	nanos, ok := asInt64(m[nanosecondsKey])
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(secs, nanos).UTC(), true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// copyDocument deep-copies maps and slices; leaf values are shared.
func copyDocument(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := copyValue(m).(map[string]any)
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
