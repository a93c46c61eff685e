package capture

import (
	"net/url"
	"strings"

	"github.com/getmockd/capturelog/pkg/requestlog"
)

// paramSeparator joins the values of a multi-valued parameter.
const paramSeparator = "; "

// parseOrdered parses a url-encoded string keeping first-seen key order.
// Values of repeated keys are joined with paramSeparator. Malformed
// pairs are skipped.
func parseOrdered(raw string) requestlog.Pairs {
	if raw == "" {
		return nil
	}

	var keys []string
	values := make(map[string][]string)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = append(values[key], value)
	}

	out := make(requestlog.Pairs, 0, len(keys))
	for _, k := range keys {
		out = append(out, requestlog.KeyValue{Key: k, Value: strings.Join(values[k], paramSeparator)})
	}
	return out
}
