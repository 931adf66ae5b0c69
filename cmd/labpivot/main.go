package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "labpivot/internal/config"
	"labpivot/internal/diag"
	"labpivot/internal/pipeline"
	"labpivot/pkg/contract"
	wfs "labpivot/plugins/writer/filesystem"
	pgw "labpivot/plugins/writer/postgres"
)

// Exit statuses.
const (
	exitOK      = 0
	exitRun     = 1
	exitSkipped = 2
	exitConfig  = 3
)

var pipelineRun = pipeline.Run

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError carries the exit status out of cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitf(code int, format string, a ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, a...)}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "labpivot: %v\n", ee.err)
		}
		return ee.code
	}
	// flag and argument errors from cobra
	fmt.Fprintf(stderr, "labpivot: %v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "labpivot",
		Short:         "Extract lab results from report documents into a longitudinal table",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(stdout, stderr), newInitCmd(stdout, stderr))
	return root
}

type runFlags struct {
	config          string
	template        string
	suffix          string
	concurrency     int
	timeout         int
	mergePolicy     string
	dateLayout      string
	visitMetadata   bool
	strict          bool
	source          string
	writer          string
	output          string
	logLevel        string
	metricsFile     string
	diagnosticsFile string
	status          bool
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [inputs...]",
		Short: "List, extract, merge and pivot every report under the inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f, args)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			return runPipeline(cmd.Context(), cfg, f.status, stdout, stderr)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "config file (.json, .yaml, .toml); default ./labpivot.*")
	fl.StringVarP(&f.template, "template", "t", "", "test catalogue JSON")
	fl.StringVar(&f.suffix, "suffix", "", "document file suffix")
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "documents processed at once")
	fl.IntVar(&f.timeout, "timeout", 0, "per-document timeout in seconds (0 disables)")
	fl.StringVar(&f.mergePolicy, "merge-policy", "", "first|last|mean|error")
	fl.StringVar(&f.dateLayout, "date-layout", "", "Go layout of report dates")
	fl.BoolVar(&f.visitMetadata, "visit-metadata", false, "add collection date/time, age and source columns")
	fl.BoolVar(&f.strict, "strict", false, "exit with status 2 when a document is skipped")
	fl.StringVar(&f.source, "source", "", "text source: pdf|text")
	fl.StringVar(&f.writer, "writer", "", "table writer: csv|xlsx|postgres")
	fl.StringVarP(&f.output, "output", "o", "", "output file of csv/xlsx writers")
	fl.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics here after the run")
	fl.StringVar(&f.diagnosticsFile, "diagnostics-file", "", "write skipped documents here as JSON lines")
	fl.BoolVar(&f.status, "status", true, "progress lines on stderr")
	return cmd
}

// loadConfig layers defaults < config file < LABPIVOT_* < flags.
func loadConfig(cmd *cobra.Command, f *runFlags, args []string) (cfgpkg.Config, error) {
	if err := cfgpkg.LoadDotEnv(".env"); err != nil {
		return cfgpkg.Config{}, err
	}
	path := f.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "_CONFIG_FILE")
	}
	if path == "" {
		found, err := cfgpkg.Discover(".")
		if err != nil {
			return cfgpkg.Config{}, err
		}
		path = found
	}

	cfg := cfgpkg.Defaults()
	if path != "" {
		file, err := cfgpkg.Load(path)
		if err != nil {
			return cfgpkg.Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		cfg = cfgpkg.Merge(cfg, file)
	}
	env, err := cfgpkg.EnvOverlay()
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfg = cfgpkg.Merge(cfg, env)

	fl := cmd.Flags()
	var over cfgpkg.Config
	over.Inputs = args
	over.Template = f.template
	over.Suffix = f.suffix
	over.Concurrency = f.concurrency
	over.TimeoutSeconds = f.timeout
	over.MergePolicy = f.mergePolicy
	over.DateLayout = f.dateLayout
	over.Components.Source = f.source
	over.Components.Writer = f.writer
	over.Logging.Level = f.logLevel
	over.MetricsFile = f.metricsFile
	over.DiagnosticsFile = f.diagnosticsFile
	if fl.Changed("visit-metadata") {
		over.VisitMetadata = &f.visitMetadata
	}
	if fl.Changed("strict") {
		over.Strict = &f.strict
	}
	cfg = cfgpkg.Merge(cfg, over)

	if f.output != "" {
		raw, err := cfgpkg.WithOutputPath(cfg.Options.Writer, f.output)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfg.Options.Writer = raw
	}
	return cfg, nil
}

func runPipeline(ctx context.Context, cfg cfgpkg.Config, status bool, stdout, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()
	opts := diag.LogOptions{Level: cfg.Logging.Level, Dir: cfg.Logging.Dir, MaxBytes: cfg.Logging.MaxBytes}
	if cfg.Logging.Console != nil && *cfg.Logging.Console {
		opts.Console = stderr
	}
	logger := diag.NewLogger(corrID, opts)
	defer logger.Close()

	if cfg.MetricsFile != "" {
		defer func() {
			if err := diag.WriteMetrics(cfg.MetricsFile); err != nil {
				logger.Error("metrics", string(diag.Classify(err)), err.Error(), nil)
			}
		}()
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.Error("config", string(diag.Classify(err)), err.Error(), &start)
		if errors.Is(err, cfgpkg.ErrConfig) || errors.Is(err, contract.ErrTemplateLoad) {
			return &exitError{code: exitConfig, err: err}
		}
		return &exitError{code: exitRun, err: err}
	}
	logger.DebugStart("config", "effective", "", map[string]string{
		"inputs":       strings.Join(cfg.Inputs, ","),
		"template":     cfg.Template,
		"concurrency":  strconv.Itoa(cfg.Concurrency),
		"merge_policy": cfg.MergePolicy,
		"lister":       cfg.Components.Lister,
		"source":       cfg.Components.Source,
		"writer":       cfg.Components.Writer,
	})

	diag.SetTerminal(diag.NewTerminal(stderr, status))
	defer diag.SetTerminal(nil)

	rep, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, err.Error(), &start)
		diag.IncOp("pipeline", "error", "error")
		diag.IncError("pipeline", code)
		return &exitError{code: exitRun, err: err}
	}
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())

	if cfg.DiagnosticsFile != "" {
		if err := writeDiagnostics(ctx, cfg.DiagnosticsFile, corrID, rep.Diagnostics); err != nil {
			return exitf(exitRun, "diagnostics: %w", err)
		}
	}
	rows := 0
	if rep.Table != nil {
		rows = len(rep.Table.Rows)
	}
	fmt.Fprintf(stdout, "%d patients from %d documents (%d records, %d skipped)\n",
		rows, rep.Documents, rep.Records, len(rep.Diagnostics))
	if cfg.IsStrict() && rep.Skipped() {
		return &exitError{code: exitSkipped}
	}
	return nil
}

type diagnosticLine struct {
	CorrID string `json:"corr_id"`
	contract.Diagnostic
	Error string `json:"error,omitempty"`
}

// writeDiagnostics replaces path with one JSON object per skipped item. An
// empty run still replaces a previous report.
func writeDiagnostics(ctx context.Context, path, corrID string, diags []contract.Diagnostic) error {
	sink, err := wfs.New(&wfs.Options{Path: path})
	if err != nil {
		return err
	}
	return sink.WriteFrom(ctx, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, d := range diags {
			line := diagnosticLine{CorrID: corrID, Diagnostic: d}
			if d.Err != nil {
				line.Error = d.Err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return nil
	})
}

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config [dir|-]",
		Short: "Write labpivot.json and a .env template (existing files are kept)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			cfg := cfgpkg.DefaultTemplateConfig()
			if dir == "-" {
				return writeConfig(stdout, cfg)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return exitf(exitConfig, "init-config: %w", err)
			}
			p := filepath.Join(dir, cfgpkg.ConfigName+".json")
			if err := createFile(p, force, func(w io.Writer) error { return writeConfig(w, cfg) }); err != nil {
				return exitf(exitConfig, "init-config: %w", err)
			}
			if err := createFile(filepath.Join(dir, ".env"), false, writeDotEnv); err != nil && !errors.Is(err, os.ErrExist) {
				fmt.Fprintf(stderr, "labpivot: .env skipped: %v\n", err)
			}
			fmt.Fprintf(stdout, "wrote %s\n", p)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing labpivot.json")
	return cmd
}

func writeConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// createFile fails with os.ErrExist when path exists and force is false.
func createFile(path string, force bool, fill func(io.Writer) error) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeDotEnv lists every LABPIVOT_* override, unset.
func writeDotEnv(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# labpivot overrides; precedence: flags > environment (.env) > config file\n")
	b.WriteString("# empty values are ignored\n\n")
	b.WriteString(cfgpkg.EnvPrefix + "_CONFIG_FILE=\n")
	for _, name := range cfgpkg.EnvNames() {
		b.WriteString(name + "=\n")
	}
	b.WriteString("\n# postgres writer connection string\n")
	b.WriteString(pgw.DefaultDSNEnv + "=\n")
	_, err := io.WriteString(w, b.String())
	return err
}
