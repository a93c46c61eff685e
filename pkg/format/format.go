// Package format turns captured units and buffered entries into text lines.
package format

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/getmockd/capturelog/pkg/requestlog"
	"github.com/getmockd/capturelog/pkg/unitlog"
)

// DefaultTimeFormat is used by TextFormatter when TimeFormat is empty.
const DefaultTimeFormat = "2006-01-02 15:04:05.000"

// Formatter renders one line of text per unit header or entry. Lines
// never contain a newline.
type Formatter interface {
	FormatUnit(uc *requestlog.UnitContext) string
	FormatEntry(e unitlog.Entry) string
}

// TextFormatter is the default human-readable Formatter.
//
//	2026-10-14 09:30:00.000 GET http://host/api/users 200 application/json 12ms
//	2026-10-14 09:30:00.004 [Information] start
type TextFormatter struct {
	// TimeFormat is a time.Format layout. Timestamps are printed in UTC.
	TimeFormat string
}

// Text returns a TextFormatter with the default layout.
func Text() *TextFormatter { return &TextFormatter{} }

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func (f *TextFormatter) layout() string {
	if f == nil || f.TimeFormat == "" {
		return DefaultTimeFormat
	}
	return f.TimeFormat
}

// FormatUnit summarizes a web unit as method, URL, status, content type
// and duration.
func (f *TextFormatter) FormatUnit(uc *requestlog.UnitContext) string {
	if uc == nil {
		return ""
	}
	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()

	buf.WriteString(uc.StartTime.UTC().Format(f.layout()))
	if req := uc.Request; req != nil {
		buf.WriteByte(' ')
		buf.WriteString(orDash(req.Method))
		buf.WriteByte(' ')
		buf.WriteString(orDash(singleLine(req.RawURL)))
	}
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(uc.StatusCode()))
	if ct := uc.Response.ContentType(); ct != "" {
		buf.WriteByte(' ')
		buf.WriteString(singleLine(ct))
	}
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatInt(uc.Duration().Milliseconds(), 10))
	buf.WriteString("ms")
	if req := uc.Request; req != nil && req.User != nil && req.User.Name != "" {
		buf.WriteString(" user=")
		buf.WriteString(singleLine(req.User.Name))
	}
	return buf.String()
}

// FormatEntry renders timestamp, level, optional category and message.
func (f *TextFormatter) FormatEntry(e unitlog.Entry) string {
	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()

	buf.WriteString(e.Timestamp.UTC().Format(f.layout()))
	buf.WriteString(" [")
	buf.WriteString(e.Level.String())
	buf.WriteString("] ")
	if e.Category != "" {
		buf.WriteString(singleLine(e.Category))
		buf.WriteString(": ")
	}
	buf.WriteString(singleLine(e.Message))
	if exc := e.Exception; exc != nil {
		buf.WriteString(" exception=")
		buf.WriteString(singleLine(exc.Type))
		if exc.Message != "" && exc.Message != e.Message {
			buf.WriteString(": ")
			buf.WriteString(singleLine(exc.Message))
		}
	}
	return buf.String()
}

var lineEscaper = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`)

func singleLine(s string) string { return lineEscaper.Replace(s) }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
