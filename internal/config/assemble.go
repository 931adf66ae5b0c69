package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"labpivot/internal/extract"
	"labpivot/internal/merge"
	"labpivot/internal/normalize"
	"labpivot/internal/pipeline"
	"labpivot/internal/record"
	"labpivot/internal/template"
	"labpivot/pkg/registry"
)

// ErrConfig marks an invalid configuration (as opposed to a failed run).
var ErrConfig = errors.New("config")

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}

// Validate checks the static bounds of cfg. It does not touch the file
// system; the template is loaded by Assemble.
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return configErr("inputs empty")
	}
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return configErr("input path cannot be empty")
		}
	}
	if strings.TrimSpace(cfg.Template) == "" {
		return configErr("template not set")
	}
	if cfg.Concurrency < 1 {
		return configErr("concurrency must be >= 1")
	}
	if cfg.TimeoutSeconds < 0 {
		return configErr("timeout_seconds must be >= 0")
	}
	if _, err := merge.ParsePolicy(cfg.MergePolicy); err != nil {
		return configErr("%v", err)
	}
	if err := checkLayout(cfg.DateLayout); err != nil {
		return err
	}
	if _, err := stripper(cfg.Profile); err != nil {
		return configErr("profile.boilerplate: %v", err)
	}
	if _, err := identityParser(cfg.Profile); err != nil {
		return configErr("profile.identity: %v", err)
	}
	d := Defaults()
	if name := effName(cfg.Components.Lister, d.Components.Lister); registry.Lister[name] == nil {
		return configErr("lister %q not registered (have %v)", name, registry.Names(registry.Lister))
	}
	if name := effName(cfg.Components.Source, d.Components.Source); registry.Source[name] == nil {
		return configErr("source %q not registered (have %v)", name, registry.Names(registry.Source))
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return configErr("writer %q not registered (have %v)", name, registry.Names(registry.Writer))
	}
	return nil
}

// checkLayout rejects layouts that cannot hold a day, month and year.
func checkLayout(layout string) error {
	if layout == "" {
		return nil
	}
	ref := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)
	got, err := time.Parse(layout, ref.Format(layout))
	if err != nil || !got.Equal(ref) {
		return configErr("date_layout %q does not round-trip a calendar date", layout)
	}
	return nil
}

func stripper(p Profile) (*normalize.Stripper, error) {
	if p.Boilerplate == nil {
		return normalize.NewStripper(normalize.DefaultProfile())
	}
	return normalize.NewStripper(*p.Boilerplate)
}

func identityParser(p Profile) (*extract.IdentityParser, error) {
	if p.Identity == nil {
		return extract.NewIdentityParser(extract.DefaultIdentityPatterns())
	}
	return extract.NewIdentityParser(*p.Identity)
}

// Assemble validates cfg, loads the template and builds the run's components.
// The template is loaded before any component is built.
// Component options are decoded strictly by the registry factories; a
// template failure keeps contract.ErrTemplateLoad in the chain.
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	reg, err := template.Load(cfg.Template)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	ln := effName(cfg.Components.Lister, d.Components.Lister)
	sn := effName(cfg.Components.Source, d.Components.Source)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	lister, err := registry.Lister[ln](cfg.Options.Lister)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, configErr("lister %s: %v", ln, err)
	}
	src, err := registry.Source[sn](cfg.Options.Source)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, configErr("source %s: %v", sn, err)
	}
	w, err := registry.Writer[wn](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, configErr("writer %s: %v", wn, err)
	}

	st, _ := stripper(cfg.Profile)
	ip, _ := identityParser(cfg.Profile)
	b, err := record.NewBuilder(src, reg, st, ip)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	policy, _ := merge.ParsePolicy(cfg.MergePolicy)
	comp := pipeline.Components{
		Lister:  lister,
		Builder: b,
		Tests:   reg.Tests(),
		Writer:  w,
	}
	set := pipeline.Settings{
		Inputs:        cloneStrings(cfg.Inputs),
		Suffix:        cfg.Suffix,
		Concurrency:   cfg.Concurrency,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		Policy:        policy,
		DateLayout:    cfg.DateLayout,
		VisitMetadata: cfg.visitMetadata(),
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
