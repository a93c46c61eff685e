package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		input         string
		maxLen        int
		wantTruncated bool
	}{
		{"below max", "hello", 10, false},
		{"at max", "helloworld", 10, false},
		{"above max", strings.Repeat("a", 100), 32, true},
		{"max shorter than marker", strings.Repeat("b", 20), 5, true},
		{"empty", "", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, truncated := Truncate(tt.input, tt.maxLen)
			assert.Equal(t, tt.wantTruncated, truncated)
			assert.LessOrEqual(t, len(got), tt.maxLen)
			if !tt.wantTruncated {
				assert.Equal(t, tt.input, got)
			}
		})
	}
}

func TestTruncate_MarkerAndIdempotent(t *testing.T) {
	t.Parallel()

	value := strings.Repeat("x", 200)
	once, truncated := Truncate(value, 50)
	assert.True(t, truncated)
	assert.Len(t, once, 50)
	assert.True(t, strings.HasSuffix(once, TruncatedMarker))

	twice, truncatedAgain := Truncate(once, 50)
	assert.False(t, truncatedAgain)
	assert.Equal(t, once, twice)
}

func TestTruncate_DoesNotSplitRunes(t *testing.T) {
	t.Parallel()

	value := strings.Repeat("é", 40) // 2 bytes each
	got, truncated := Truncate(value, 31)
	assert.True(t, truncated)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 31)
}

func TestTruncate_DefaultMax(t *testing.T) {
	t.Parallel()

	value := strings.Repeat("z", MaxPropertyLength+1)
	got, truncated := Truncate(value, 0)
	assert.True(t, truncated)
	assert.Len(t, got, MaxPropertyLength)
}

func TestTruncateBody(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", TruncateBody("short", 0))
	long := strings.Repeat("y", MaxLogBodySize*2)
	assert.Len(t, TruncateBody(long, 0), MaxLogBodySize)
}

func TestSafeFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantPath string
		wantOK   bool
	}{
		{"simple relative", "logs/app", "logs/app", true},
		{"dot prefix", "./logs", "logs", true},
		{"current dir dot", ".", ".", true},
		{"simple traversal", "../secret", "", false},
		{"nested traversal", "logs/../../etc", "", false},
		{"traversal resolves to dot", "logs/..", ".", true},
		{"absolute unix", "/var/log", "", false},
		{"empty string", "", "", false},
		{"backslash traversal", `logs\..\..\secret`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotPath, gotOK := SafeFilePath(tt.input)
			assert.Equal(t, tt.wantOK, gotOK, "SafeFilePath(%q) ok", tt.input)
			assert.Equal(t, tt.wantPath, gotPath, "SafeFilePath(%q) path", tt.input)
		})
	}
}

func TestSafeFilePathAllowAbsolute(t *testing.T) {
	t.Parallel()

	got, ok := SafeFilePathAllowAbsolute("/var/log/capturelog")
	assert.True(t, ok)
	assert.Equal(t, "/var/log/capturelog", got)

	_, ok = SafeFilePathAllowAbsolute("../../etc/passwd")
	assert.False(t, ok)
}
