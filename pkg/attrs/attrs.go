// Package attrs reads values back out of slog-style key/value lists.
package attrs

// Extract returns the value stored under key when it has type T. Keys that
// are not strings are skipped.
func Extract[T any](list []any, key string) (T, bool) {
	var zero T
	for i := 0; i+1 < len(list); i += 2 {
		if k, ok := list[i].(string); ok && k == key {
			v, ok := list[i+1].(T)
			return v, ok
		}
	}
	return zero, false
}

// ExtractString returns the string under key, or "".
func ExtractString(list []any, key string) string {
	v, _ := Extract[string](list, key)
	return v
}

// ExtractStrings returns the string slice under key, or nil.
func ExtractStrings(list []any, key string) []string {
	v, _ := Extract[[]string](list, key)
	return v
}

// FirstString returns the first non-empty string found under keys, in order.
func FirstString(list []any, keys ...string) string {
	for _, key := range keys {
		if v := ExtractString(list, key); v != "" {
			return v
		}
	}
	return ""
}
