package config

import (
	"encoding/json"

	"labpivot/internal/extract"
	"labpivot/internal/normalize"
)

// Config: run configuration, parsed once and read-only afterwards.
// Keys are snake_case; unknown keys fail the parse.
type Config struct {
	Inputs []string `json:"inputs" mapstructure:"inputs"`
	// Suffix selects documents under the inputs (literal, case-sensitive).
	Suffix string `json:"suffix" mapstructure:"suffix"`
	// Template: path of the test catalogue JSON.
	Template       string `json:"template" mapstructure:"template"`
	Concurrency    int    `json:"concurrency" mapstructure:"concurrency"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	MergePolicy    string `json:"merge_policy" mapstructure:"merge_policy"`
	DateLayout     string `json:"date_layout" mapstructure:"date_layout"`
	// VisitMetadata adds collection date/time, age and source files per visit.
	VisitMetadata *bool `json:"visit_metadata,omitempty" mapstructure:"visit_metadata"`
	// Strict turns skipped documents into a distinct exit status.
	Strict          *bool  `json:"strict,omitempty" mapstructure:"strict"`
	MetricsFile     string `json:"metrics_file" mapstructure:"metrics_file"`
	DiagnosticsFile string `json:"diagnostics_file" mapstructure:"diagnostics_file"`

	Profile Profile `json:"profile" mapstructure:"profile"`
	Logging Logging `json:"logging" mapstructure:"logging"`

	// Component names (registry keys); empty means the default.
	Components Components `json:"components" mapstructure:"components"`
	// Raw JSON options per component, decoded strictly by the factories.
	Options Options `json:"options" mapstructure:"options"`
}

// Profile: report-template specific text handling. nil parts use the
// Hospital São Paulo defaults.
type Profile struct {
	Boilerplate *normalize.Profile        `json:"boilerplate,omitempty" mapstructure:"boilerplate"`
	Identity    *extract.IdentityPatterns `json:"identity,omitempty" mapstructure:"identity"`
}

// Logging: level plus the rotating file location.
type Logging struct {
	Level    string `json:"level" mapstructure:"level"`
	Dir      string `json:"dir" mapstructure:"dir"`
	MaxBytes int64  `json:"max_bytes" mapstructure:"max_bytes"`
	// Console mirrors log events on stderr in human-readable form.
	Console *bool `json:"console,omitempty" mapstructure:"console"`
}

// Components: implementation names from pkg/registry.
type Components struct {
	Lister string `json:"lister" mapstructure:"lister"`
	Source string `json:"source" mapstructure:"source"`
	Writer string `json:"writer" mapstructure:"writer"`
}

// Options: raw JSON options per component.
type Options struct {
	Lister json.RawMessage `json:"lister" mapstructure:"lister"`
	Source json.RawMessage `json:"source" mapstructure:"source"`
	Writer json.RawMessage `json:"writer" mapstructure:"writer"`
}

func (c Config) visitMetadata() bool { return c.VisitMetadata != nil && *c.VisitMetadata }

// IsStrict reports whether skipped documents change the exit status.
func (c Config) IsStrict() bool { return c.Strict != nil && *c.Strict }
