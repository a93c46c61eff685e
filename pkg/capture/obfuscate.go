package capture

import (
	"fmt"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// jsonObfuscator hides values at JSONPath locations of a JSON document.
type jsonObfuscator struct {
	paths []jp.Expr
}

func newJSONObfuscator(paths []string) (*jsonObfuscator, error) {
	o := &jsonObfuscator{}
	for _, p := range paths {
		x, err := jp.ParseString(p)
		if err != nil {
			return nil, fmt.Errorf("capture: invalid JSONPath %q: %w", p, err)
		}
		o.paths = append(o.paths, x)
	}
	return o, nil
}

// Apply returns text with every matched value replaced by ObfuscatedValue.
// Text that is not JSON, or has no matches, is returned unchanged.
func (o *jsonObfuscator) Apply(text string) string {
	if o == nil || len(o.paths) == 0 || text == "" {
		return text
	}
	doc, err := oj.ParseString(text)
	if err != nil {
		return text
	}

	changed := false
	for _, x := range o.paths {
		for _, loc := range x.Locate(doc, 0) {
			if err := loc.Set(doc, ObfuscatedValue); err == nil {
				changed = true
			}
		}
	}
	if !changed {
		return text
	}
	return oj.JSON(doc, &ojg.Options{Sort: true})
}
