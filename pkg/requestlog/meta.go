package requestlog

import (
	"errors"
	"io"
	"mime"
	"os"
	"strings"
)

// ErrBodyReleased is returned when a captured body is read after its
// spool file was deleted.
var ErrBodyReleased = errors.New("requestlog: captured body already released")

// UserDetails is the caller identity derived from claims.
type UserDetails struct {
	Name         string `json:"name,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
}

// CapturedBody references a response body spooled to a temporary file.
// It is only readable while the flush record is being delivered; the
// file is deleted as soon as the unit finishes.
type CapturedBody struct {
	// Path is the temporary file holding the body bytes.
	Path string `json:"-"`

	// FileName is a suggested display name, e.g. "Response.json".
	FileName string `json:"fileName"`

	// Size is the number of bytes spooled.
	Size int64 `json:"size"`

	// ContentType is the response Content-Type.
	ContentType string `json:"contentType,omitempty"`
}

// Open opens the spooled body for reading.
func (b *CapturedBody) Open() (io.ReadCloser, error) {
	f, err := os.Open(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBodyReleased
	}
	return f, err
}

// ReadText reads at most limit bytes of the body as text. limit <= 0 reads all.
func (b *CapturedBody) ReadText(limit int64) (string, error) {
	rc, err := b.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ResponseFileName derives a display file name from a content type.
func ResponseFileName(contentType string) string {
	ext := ".txt"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.HasSuffix(mediaType, "json"):
			ext = ".json"
		case strings.HasSuffix(mediaType, "xml"):
			ext = ".xml"
		case mediaType == "text/html":
			ext = ".html"
		case mediaType == "text/plain":
			ext = ".txt"
		default:
			if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}
	return "Response" + ext
}
