package format

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

var start = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func TestTextFormatter_FormatUnit(t *testing.T) {
	t.Parallel()

	uc := &requestlog.UnitContext{
		StartTime: start,
		EndTime:   start.Add(12 * time.Millisecond),
		Request: &requestlog.RequestSnapshot{
			Method: "GET",
			RawURL: "http://host/api/users",
			User:   &requestlog.UserDetails{Name: "ada"},
		},
		Response: &requestlog.ResponseSnapshot{
			StatusCode: 200,
			Headers:    requestlog.Pairs{{Key: "Content-Type", Value: "application/json"}},
		},
	}

	got := Text().FormatUnit(uc)
	assert.Equal(t, "2026-10-14 09:30:00.000 GET http://host/api/users 200 application/json 12ms user=ada", got)
}

func TestTextFormatter_FormatUnitSparse(t *testing.T) {
	t.Parallel()

	f := &TextFormatter{TimeFormat: time.RFC3339}
	got := f.FormatUnit(&requestlog.UnitContext{StartTime: start, Request: &requestlog.RequestSnapshot{}})
	assert.Equal(t, "2026-10-14T09:30:00Z - - 0 0ms", got)
	assert.Empty(t, f.FormatUnit(nil))
}

func TestTextFormatter_FormatEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry unitlog.Entry
		want  string
	}{
		{
			name:  "plain",
			entry: unitlog.Entry{Timestamp: start, Level: unitlog.LevelInformation, Message: "start"},
			want:  "2026-10-14 09:30:00.000 [Information] start",
		},
		{
			name:  "category",
			entry: unitlog.Entry{Timestamp: start, Level: unitlog.LevelDebug, Message: "hit", Category: "cache"},
			want:  "2026-10-14 09:30:00.000 [Debug] cache: hit",
		},
		{
			name:  "multiline message stays on one line",
			entry: unitlog.Entry{Timestamp: start, Level: unitlog.LevelWarning, Message: "a\nb\r\nc"},
			want:  `2026-10-14 09:30:00.000 [Warning] a\nb\nc`,
		},
		{
			name: "exception",
			entry: unitlog.Entry{
				Timestamp: start,
				Level:     unitlog.LevelError,
				Message:   "request failed",
				Exception: unitlog.NewExceptionDetail(errors.New("boom")),
			},
			want: "2026-10-14 09:30:00.000 [Error] request failed exception=*errors.errorString: boom",
		},
		{
			name: "local timestamps are printed in UTC",
			entry: unitlog.Entry{
				Timestamp: start.In(time.FixedZone("CEST", 2*60*60)),
				Level:     unitlog.LevelInformation,
				Message:   "done",
			},
			want: "2026-10-14 09:30:00.000 [Information] done",
		},
	}

	f := Text()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.FormatEntry(tt.entry)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.ContainsAny(got, "\r\n"))
		})
	}
}
