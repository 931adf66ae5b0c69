package config

import (
	"encoding/json"

	"labpivot/internal/extract"
	"labpivot/internal/normalize"
)

// DefaultTemplateConfig returns a runnable starting point for init-config:
// every option key of the default components is present, the profile is
// spelled out so it can be edited, and the output goes to out/results.csv.
func DefaultTemplateConfig() Config {
	d := Defaults()
	off := false
	bp := normalize.DefaultProfile()
	id := extract.DefaultIdentityPatterns()
	cfg := Config{
		Inputs:          []string{"reports"},
		Suffix:          d.Suffix,
		Template:        "clinical_tests.json",
		Concurrency:     d.Concurrency,
		TimeoutSeconds:  d.TimeoutSeconds,
		MergePolicy:     d.MergePolicy,
		DateLayout:      d.DateLayout,
		VisitMetadata:   &off,
		Strict:          &off,
		MetricsFile:     "",
		DiagnosticsFile: "out/diagnostics.jsonl",
		Profile:         Profile{Boilerplate: &bp, Identity: &id},
		Logging:         Logging{Level: "info", Dir: "logs", MaxBytes: 10 << 20, Console: &off},
		Components:      d.Components,
	}
	cfg.Options.Lister = json.RawMessage(`{
  "recursive": false,
  "exclude_dir_names": [".git", "processed"]
}`)
	cfg.Options.Source = json.RawMessage(`{
  "gap_factor": 0.2,
  "max_pages": 0
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "path": "out/results.csv",
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536,
  "delimiter": ",",
  "bom": false
}`)
	return cfg
}
