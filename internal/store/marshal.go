package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// marshalStrings serializes a string slice to a JSON array. nil and empty
// both serialize to "[]" so the column is never NULL.
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(raw), nil
}

// unmarshalStrings is the inverse of marshalStrings. Empty input decodes
// to nil.
func unmarshalStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// Timestamps are stored as integer unix nanoseconds; zero means unset.

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
