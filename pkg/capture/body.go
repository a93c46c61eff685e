package capture

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// replayBody serves already-read bytes followed by the rest of the
// original body, and closes the original.
type replayBody struct {
	io.Reader
	io.Closer
}

// peekBody reads at most n bytes of r.Body and restores it so downstream
// handlers see the full, unread body.
func peekBody(r *http.Request, n int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	original := r.Body
	data, err := io.ReadAll(io.LimitReader(original, n))
	r.Body = &replayBody{
		Reader: io.MultiReader(bytes.NewReader(data), original),
		Closer: original,
	}
	return data, err
}

// decodeText converts body bytes to a string honoring the charset
// parameter of contentType. Unknown charsets fall back to UTF-8.
func decodeText(data []byte, contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := strings.ToLower(params["charset"]); cs != "" && cs != "utf-8" && cs != "utf8" {
			if enc, err := htmlindex.Get(cs); err == nil {
				if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
					return string(decoded)
				}
			}
		}
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// cutUTF8 trims data to at most n bytes without splitting a rune.
func cutUTF8(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	for n > 0 && !utf8.RuneStart(data[n]) {
		n--
	}
	return data[:n]
}
