package sink

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/capturelog/pkg/unitlog"
)

// Policy decides which records a sink receives.
type Policy struct {
	// MinLevel skips records whose highest entry level is lower.
	MinLevel unitlog.Level `json:"minLevel" yaml:"minLevel"`

	// MinStatusCode skips web units answered with a lower status.
	// Background units are never filtered on status.
	MinStatusCode int `json:"minStatusCode,omitempty" yaml:"minStatusCode,omitempty"`

	// When is an optional boolean expr-lang expression evaluated against
	// the record. See FilterEnv for the available variables.
	When string `json:"when,omitempty" yaml:"when,omitempty"`
}

// filter is a compiled Policy.
type filter struct {
	policy  Policy
	program *vm.Program
}

// Validate reports whether the policy's expression compiles.
func (p Policy) Validate() error {
	_, err := compilePolicy(p)
	return err
}

func compilePolicy(p Policy) (*filter, error) {
	f := &filter{policy: p}
	if p.When == "" {
		return f, nil
	}
	program, err := expr.Compile(p.When, expr.Env(FilterEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("sink: compile when %q: %w", p.When, err)
	}
	f.program = program
	return f, nil
}

// accepts applies the thresholds, then the expression.
func (f *filter) accepts(rec *unitlog.FlushRecord) (bool, error) {
	if rec.Level() < f.policy.MinLevel {
		return false, nil
	}
	if rec.IsWebUnit && rec.StatusCode() < f.policy.MinStatusCode {
		return false, nil
	}
	if f.program == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, FilterEnv(rec))
	if err != nil {
		return false, fmt.Errorf("sink: evaluate when %q: %w", f.policy.When, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// FilterEnv returns the variables visible to a Policy.When expression:
//
//	name        unit name ("" for web units unless set)
//	web         true for HTTP units
//	status      final status code, 0 for background units
//	method      request method
//	path        request path
//	url         full request URL
//	level       highest entry level, comparable with Trace..Fatal
//	count       number of entries
//	durationMs  unit duration in milliseconds
func FilterEnv(rec *unitlog.FlushRecord) map[string]any {
	env := map[string]any{
		"name":       "",
		"web":        false,
		"status":     0,
		"method":     "",
		"path":       "",
		"url":        "",
		"level":      int(unitlog.LevelTrace),
		"count":      0,
		"durationMs": int64(0),

		"Trace":       int(unitlog.LevelTrace),
		"Debug":       int(unitlog.LevelDebug),
		"Information": int(unitlog.LevelInformation),
		"Warning":     int(unitlog.LevelWarning),
		"Error":       int(unitlog.LevelError),
		"Fatal":       int(unitlog.LevelFatal),
	}
	if rec == nil {
		return env
	}
	env["name"] = rec.Name
	env["web"] = rec.IsWebUnit
	env["status"] = rec.StatusCode()
	env["level"] = int(rec.Level())
	env["count"] = rec.Count()
	if uc := rec.Web; uc != nil {
		env["durationMs"] = uc.Duration().Milliseconds()
		if req := uc.Request; req != nil {
			env["method"] = req.Method
			env["path"] = req.Path()
			env["url"] = req.RawURL
		}
	}
	return env
}
