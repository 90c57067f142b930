// Package builder loads logic definitions from YAML. The file describes
// matchers, cancel matchers, and limits declaratively; validate, transform,
// and process stages reference Go functions by name, bound through a
// HandlerSet at load time.
package builder

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drblury/actionflow"
)

// HandlerSet maps handler names referenced in YAML to Go stage functions.
type HandlerSet struct {
	Validate  map[string]actionflow.ValidateFunc
	Transform map[string]actionflow.TransformFunc
	Process   map[string]actionflow.ProcessFunc
}

// File is the top-level YAML document.
type File struct {
	Logic []LogicSpec `yaml:"logic"`
}

// LogicSpec describes one logic definition.
type LogicSpec struct {
	// Name uniquely identifies this logic.
	Name string `yaml:"name"`

	// Match selects the actions that trigger this logic.
	Match MatcherSpec `yaml:"match"`

	// Cancel optionally selects actions that cancel running executions.
	Cancel *MatcherSpec `yaml:"cancel,omitempty"`

	// Limit optionally bounds concurrent executions.
	Limit *LimitSpec `yaml:"limit,omitempty"`

	// Stage handler names, resolved against the HandlerSet.
	Validate  string `yaml:"validate,omitempty"`
	Transform string `yaml:"transform,omitempty"`
	Process   string `yaml:"process,omitempty"`
}

// MatcherSpec describes a matcher. Exactly one selector must be set.
type MatcherSpec struct {
	// Type matches one action type exactly.
	Type string `yaml:"type,omitempty"`

	// Pattern matches action types against a regular expression.
	Pattern string `yaml:"pattern,omitempty"`

	// Types matches any of the listed action types.
	Types []string `yaml:"types,omitempty"`

	// All matches every action.
	All bool `yaml:"all,omitempty"`
}

// LimitSpec describes a limit mode. Mode is "latest", "debounce", or
// "throttle"; debounce and throttle require a positive window.
type LimitSpec struct {
	Mode   string        `yaml:"mode"`
	Window time.Duration `yaml:"window,omitempty"`
}

// Load reads a YAML document and resolves it into logic definitions.
func Load(r io.Reader, handlers HandlerSet) ([]actionflow.Definition, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read logic file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse logic file: %w", err)
	}

	return Resolve(file, handlers)
}

// LoadFile reads a YAML file from disk and resolves it into logic
// definitions.
func LoadFile(path string, handlers HandlerSet) ([]actionflow.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logic file: %w", err)
	}
	defer f.Close()

	return Load(f, handlers)
}

// Resolve turns a parsed File into logic definitions, binding stage handler
// names through the HandlerSet.
func Resolve(file File, handlers HandlerSet) ([]actionflow.Definition, error) {
	defs := make([]actionflow.Definition, 0, len(file.Logic))

	for i, spec := range file.Logic {
		def, err := resolveLogic(spec, handlers)
		if err != nil {
			return nil, fmt.Errorf("logic %q (index %d): %w", spec.Name, i, err)
		}
		defs = append(defs, def)
	}

	return defs, nil
}

func resolveLogic(spec LogicSpec, handlers HandlerSet) (actionflow.Definition, error) {
	match, err := spec.Match.matcher()
	if err != nil {
		return actionflow.Definition{}, fmt.Errorf("match: %w", err)
	}

	def := actionflow.Definition{
		Name:  spec.Name,
		Match: match,
	}

	if spec.Cancel != nil {
		cancel, err := spec.Cancel.matcher()
		if err != nil {
			return actionflow.Definition{}, fmt.Errorf("cancel: %w", err)
		}
		def.Cancel = cancel
	}

	if spec.Limit != nil {
		limit, err := spec.Limit.limit()
		if err != nil {
			return actionflow.Definition{}, fmt.Errorf("limit: %w", err)
		}
		def.Limit = limit
	}

	if spec.Validate != "" {
		fn, ok := handlers.Validate[spec.Validate]
		if !ok {
			return actionflow.Definition{}, fmt.Errorf("%w: validate handler %q", actionflow.ErrHandlersRequired, spec.Validate)
		}
		def.Validate = fn
	}
	if spec.Transform != "" {
		fn, ok := handlers.Transform[spec.Transform]
		if !ok {
			return actionflow.Definition{}, fmt.Errorf("%w: transform handler %q", actionflow.ErrHandlersRequired, spec.Transform)
		}
		def.Transform = fn
	}
	if spec.Process != "" {
		fn, ok := handlers.Process[spec.Process]
		if !ok {
			return actionflow.Definition{}, fmt.Errorf("%w: process handler %q", actionflow.ErrHandlersRequired, spec.Process)
		}
		def.Process = fn
	}

	return def, nil
}

func (m MatcherSpec) matcher() (actionflow.Matcher, error) {
	selectors := 0
	if m.Type != "" {
		selectors++
	}
	if m.Pattern != "" {
		selectors++
	}
	if len(m.Types) > 0 {
		selectors++
	}
	if m.All {
		selectors++
	}
	if selectors != 1 {
		return nil, fmt.Errorf("exactly one of type, pattern, types, or all must be set")
	}

	switch {
	case m.Type != "":
		return actionflow.MatchType(m.Type), nil
	case m.Pattern != "":
		matcher, err := actionflow.MatchPattern(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", m.Pattern, err)
		}
		return matcher, nil
	case len(m.Types) > 0:
		return actionflow.MatchTypes(m.Types...), nil
	default:
		return actionflow.MatchAll(), nil
	}
}

func (l LimitSpec) limit() (actionflow.LimitSpec, error) {
	switch l.Mode {
	case "latest":
		if l.Window != 0 {
			return actionflow.LimitSpec{}, fmt.Errorf("latest mode takes no window")
		}
		return actionflow.LimitSpec{Latest: true}, nil
	case "debounce":
		if l.Window <= 0 {
			return actionflow.LimitSpec{}, fmt.Errorf("debounce mode requires a window: %w", actionflow.ErrNonPositiveWindow)
		}
		return actionflow.LimitSpec{Debounce: l.Window}, nil
	case "throttle":
		if l.Window <= 0 {
			return actionflow.LimitSpec{}, fmt.Errorf("throttle mode requires a window: %w", actionflow.ErrNonPositiveWindow)
		}
		return actionflow.LimitSpec{Throttle: l.Window}, nil
	case "":
		return actionflow.LimitSpec{}, fmt.Errorf("limit mode is required")
	default:
		return actionflow.LimitSpec{}, fmt.Errorf("unknown limit mode %q", l.Mode)
	}
}
