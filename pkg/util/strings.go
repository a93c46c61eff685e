package util

import "unicode/utf8"

// MaxLogBodySize is the default maximum body size for logging (10KB).
const MaxLogBodySize = 10 * 1024

// MaxPropertyLength is the default maximum length of a captured
// header, cookie, query or form value.
const MaxPropertyLength = 4 * 1024

// TruncatedMarker is appended to values that were cut by Truncate.
const TruncatedMarker = "...(truncated)"

// Truncate cuts value so that the result, marker included, is at most
// maxLen bytes. It reports whether the value was cut. Values at or below
// maxLen are returned unchanged, so Truncate is idempotent. The cut never
// splits a UTF-8 sequence. If maxLen <= 0, MaxPropertyLength is used.
func Truncate(value string, maxLen int) (string, bool) {
	if maxLen <= 0 {
		maxLen = MaxPropertyLength
	}
	if len(value) <= maxLen {
		return value, false
	}

	keep := maxLen - len(TruncatedMarker)
	marker := TruncatedMarker
	if keep < 0 {
		keep = maxLen
		marker = ""
	}
	for keep > 0 && !utf8.RuneStart(value[keep]) {
		keep--
	}
	return value[:keep] + marker, true
}

// TruncateBody truncates a string to maxSize bytes using Truncate.
// If maxSize <= 0, uses MaxLogBodySize.
func TruncateBody(data string, maxSize int) string {
	if maxSize <= 0 {
		maxSize = MaxLogBodySize
	}
	out, _ := Truncate(data, maxSize)
	return out
}
