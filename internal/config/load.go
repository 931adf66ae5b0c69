package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix of the environment overlay (LABPIVOT_CONCURRENCY, ...).
const EnvPrefix = "LABPIVOT"

// ConfigName is the base name Discover looks for (labpivot.json, .yaml, .toml).
const ConfigName = "labpivot"

// Defaults returns the baseline every other layer overrides.
// Template and inputs have no default.
func Defaults() Config {
	return Config{
		Suffix:         ".pdf",
		Concurrency:    4,
		TimeoutSeconds: 60,
		MergePolicy:    "first",
		DateLayout:     "2/1/2006",
		Logging:        Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Lister: "fs",
			Source: "pdf",
			Writer: "csv",
		},
	}
}

// LoadJSON parses Config from raw bytes or, when raw is empty, from path.
// Unknown fields are rejected.
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads a config file; the format follows the extension. JSON goes
// through LoadJSON, YAML and TOML through viper with the same strictness.
func Load(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path, nil)
	case ".yaml", ".yml", ".toml":
		return loadViper(path)
	default:
		return Config{}, fmt.Errorf("config: unsupported format %q", filepath.Ext(path))
	}
}

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

func loadViper(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	var cfg Config
	// component options stay raw JSON whatever the file format.
	hook := func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != rawMessageType || data == nil {
			return data, nil
		}
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(hook)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Discover returns the first labpivot.{json,yaml,yml,toml} found in dirs, or
// "" when there is none.
func Discover(dirs ...string) (string, error) {
	v := viper.New()
	v.SetConfigName(ConfigName)
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if errors.As(err, &nf) {
			return "", nil
		}
		return "", err
	}
	return v.ConfigFileUsed(), nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// Merge overlays over onto base (over wins). Scalars, strings and raw JSON
// are replaced, never deep-merged; zero values mean "not set".
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if s := strings.TrimSpace(over.Suffix); s != "" {
		out.Suffix = s
	}
	if s := strings.TrimSpace(over.Template); s != "" {
		out.Template = s
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.TimeoutSeconds != 0 {
		out.TimeoutSeconds = over.TimeoutSeconds
	}
	if s := strings.TrimSpace(over.MergePolicy); s != "" {
		out.MergePolicy = s
	}
	if s := strings.TrimSpace(over.DateLayout); s != "" {
		out.DateLayout = s
	}
	if over.VisitMetadata != nil {
		out.VisitMetadata = cloneBool(over.VisitMetadata)
	}
	if over.Strict != nil {
		out.Strict = cloneBool(over.Strict)
	}
	if s := strings.TrimSpace(over.MetricsFile); s != "" {
		out.MetricsFile = s
	}
	if s := strings.TrimSpace(over.DiagnosticsFile); s != "" {
		out.DiagnosticsFile = s
	}

	if over.Profile.Boilerplate != nil {
		p := *over.Profile.Boilerplate
		p.DropLinePrefixes = cloneStrings(p.DropLinePrefixes)
		out.Profile.Boilerplate = &p
	}
	if over.Profile.Identity != nil {
		p := *over.Profile.Identity
		out.Profile.Identity = &p
	}

	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if over.Logging.MaxBytes != 0 {
		out.Logging.MaxBytes = over.Logging.MaxBytes
	}
	if over.Logging.Console != nil {
		out.Logging.Console = cloneBool(over.Logging.Console)
	}

	if over.Components.Lister != "" {
		out.Components.Lister = over.Components.Lister
	}
	if over.Components.Source != "" {
		out.Components.Source = over.Components.Source
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	if len(over.Options.Lister) > 0 {
		out.Options.Lister = cloneRaw(over.Options.Lister)
	}
	if len(over.Options.Source) > 0 {
		out.Options.Source = cloneRaw(over.Options.Source)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// envKeys: config keys readable from LABPIVOT_<KEY> ("." becomes "_").
var envKeys = []string{
	"inputs", "suffix", "template", "concurrency", "timeout_seconds",
	"merge_policy", "date_layout", "visit_metadata", "strict",
	"metrics_file", "diagnostics_file",
	"logging.level", "logging.dir", "logging.max_bytes", "logging.console",
	"components.lister", "components.source", "components.writer",
	"options.lister", "options.source", "options.writer",
}

// EnvOverlay builds a Config overlay from LABPIVOT_* variables. INPUTS is
// comma-separated; OPTIONS_* hold raw JSON. Empty variables are ignored;
// malformed numbers, booleans or JSON are errors.
func EnvOverlay() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, err
		}
	}

	var over Config
	var errs []error
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	num := func(key string, dst *int) {
		if !v.IsSet(key) {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", envName(key), err))
			return
		}
		*dst = n
	}
	flag := func(key string, dst **bool) {
		if !v.IsSet(key) {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", envName(key), err))
			return
		}
		*dst = &b
	}
	raw := func(key string, dst *json.RawMessage) {
		if !v.IsSet(key) {
			return
		}
		s := strings.TrimSpace(v.GetString(key))
		if !json.Valid([]byte(s)) {
			errs = append(errs, fmt.Errorf("env %s: invalid JSON", envName(key)))
			return
		}
		*dst = json.RawMessage(s)
	}

	if v.IsSet("inputs") {
		over.Inputs = splitComma(v.GetString("inputs"))
	}
	str("suffix", &over.Suffix)
	str("template", &over.Template)
	num("concurrency", &over.Concurrency)
	num("timeout_seconds", &over.TimeoutSeconds)
	str("merge_policy", &over.MergePolicy)
	str("date_layout", &over.DateLayout)
	flag("visit_metadata", &over.VisitMetadata)
	flag("strict", &over.Strict)
	str("metrics_file", &over.MetricsFile)
	str("diagnostics_file", &over.DiagnosticsFile)

	str("logging.level", &over.Logging.Level)
	str("logging.dir", &over.Logging.Dir)
	if v.IsSet("logging.max_bytes") {
		n, err := strconv.ParseInt(strings.TrimSpace(v.GetString("logging.max_bytes")), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", envName("logging.max_bytes"), err))
		} else {
			over.Logging.MaxBytes = n
		}
	}
	flag("logging.console", &over.Logging.Console)

	str("components.lister", &over.Components.Lister)
	str("components.source", &over.Components.Source)
	str("components.writer", &over.Components.Writer)
	raw("options.lister", &over.Options.Lister)
	raw("options.source", &over.Options.Source)
	raw("options.writer", &over.Options.Writer)

	return over, errors.Join(errs...)
}

// EnvNames lists every variable EnvOverlay reads, in config key order.
func EnvNames() []string {
	out := make([]string, len(envKeys))
	for i, k := range envKeys {
		out[i] = envName(k)
	}
	return out
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// WithOutputPath returns writer options with "path" set to p, keeping every
// other key.
func WithOutputPath(raw json.RawMessage, p string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("writer options: %w", err)
		}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	m["path"] = b
	return json.Marshal(m)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
