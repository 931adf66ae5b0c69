package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"labpivot/internal/diag"
	"labpivot/internal/enrich"
	"labpivot/internal/merge"
	"labpivot/internal/record"
	"labpivot/internal/reshape"
	"labpivot/pkg/contract"
)

// - Concurrency lives here only: documents fan out over a bounded errgroup,
//   each worker owns one slot of a pre-sized slice.
// - Per-document failures become diagnostics; only cancellation of the run
//   context aborts the map phase.
// - Merge, pivot and write run on one goroutine after every document is done.

// Builder turns one document path into a record (record.Builder in
// production).
type Builder interface {
	Build(ctx context.Context, path string) (contract.DocumentRecord, error)
}

// Components aggregates the collaborators of one run.
type Components struct {
	Lister  contract.Lister
	Builder Builder
	// Tests: catalogue test names in registry order (pivot column order).
	Tests  []string
	Writer contract.Writer
}

// Settings: run parameters resolved from config.
type Settings struct {
	Inputs []string
	// Suffix selects documents (literal, case-sensitive).
	Suffix      string
	Concurrency int
	// Timeout per document; 0 disables it.
	Timeout       time.Duration
	Policy        merge.Policy
	DateLayout    string
	VisitMetadata bool
}

// slot: outcome of one document.
type slot struct {
	rec  contract.DocumentRecord
	diag *contract.Diagnostic
}

// Run executes list -> build (concurrent) -> collect -> enrich -> merge ->
// pivot -> write and returns the table together with every skipped document
// or record.
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*contract.Report, error) {
	if err := sanity(comp, &set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.NewLoggerWriter(io.Discard, "", "error")
	}
	runStart := time.Now()

	paths, err := listAll(ctx, comp.Lister, set, logger)
	if err != nil {
		return nil, err
	}
	term := diag.GetTerminal()
	term.RunStart(set.Concurrency, len(paths))
	ok := false
	rows := 0
	defer func() { term.RunFinish(ok, rows, time.Since(runStart)) }()

	// map phase
	slots := make([]slot, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = buildOne(gctx, comp.Builder, p, set.Timeout, logger)
			// a per-document deadline is a diagnostic; a canceled run is not.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "run canceled", &runStart)
		return nil, err
	}

	// reduce phase
	rep := &contract.Report{Documents: len(paths)}
	var coll record.Collection
	for _, s := range slots {
		if s.diag != nil {
			rep.Diagnostics = append(rep.Diagnostics, *s.diag)
			continue
		}
		coll.Add(s.rec)
	}

	enriched, dateDiags := enrich.EnrichAll(coll.Records(), set.DateLayout)
	for _, d := range dateDiags {
		logger.Skip("enrich", d.Code, d.Msg, string(d.FileID))
		diag.IncOp("enrich", "skip", "error")
		diag.IncError("enrich", d.Code)
	}
	rep.Diagnostics = append(rep.Diagnostics, dateDiags...)
	rep.Records = len(enriched)

	mt := logger.Start("merge", "merge")
	merged, err := merge.Merge(enriched, set.Policy)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("merge", code, err.Error(), nil)
		diag.IncOp("merge", "error", "error")
		diag.IncError("merge", code)
		return nil, fmt.Errorf("merge: %w", err)
	}
	mt.Finish("merge", int64(len(merged)))
	diag.IncOp("merge", "finish", "success")

	pt := logger.Start("reshape", "pivot")
	table := reshape.Pivot(merged, reshape.Options{Tests: comp.Tests, VisitMetadata: set.VisitMetadata})
	pt.Finish("pivot", int64(len(table.Rows)))
	rep.Table = table

	wt := logger.Start("writer", "write")
	if err := comp.Writer.Write(ctx, table); err != nil {
		code := string(diag.Classify(err))
		logger.Error("writer", code, err.Error(), nil)
		diag.IncOp("writer", "error", "error")
		diag.IncError("writer", code)
		return nil, fmt.Errorf("writer: %w", err)
	}
	wt.Finish("write", int64(len(table.Rows)))
	diag.IncOp("writer", "finish", "success")
	diag.ObserveDuration("writer", "write", time.Since(wt.Since()).Milliseconds())

	logger.InfoFinish("pipeline", "run", runStart, int64(len(table.Rows)))
	ok, rows = true, len(table.Rows)
	return rep, nil
}

// listAll runs the lister over every input root. A path reached from two
// roots is kept once, at its first position.
func listAll(ctx context.Context, l contract.Lister, set Settings, logger *diag.Logger) ([]string, error) {
	t := logger.Start("lister", "list")
	var out []string
	seen := map[contract.FileID]bool{}
	for _, root := range set.Inputs {
		paths, err := l.List(ctx, root, set.Suffix)
		if err != nil {
			code := string(diag.Classify(err))
			logger.ErrorWithKV("lister", code, err.Error(), nil, "", map[string]string{"root": root})
			diag.IncOp("lister", "error", "error")
			diag.IncError("lister", code)
			return nil, fmt.Errorf("list %s: %w", root, err)
		}
		for _, p := range paths {
			id := contract.NormalizeFileID(p)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, p)
		}
	}
	t.Finish("list", int64(len(out)))
	diag.IncOp("lister", "finish", "success")
	return out, nil
}

func buildOne(ctx context.Context, b Builder, path string, timeout time.Duration, logger *diag.Logger) slot {
	fileID := string(contract.NormalizeFileID(path))
	t := logger.StartWith("record", "build", fileID)
	rec, err := buildWithin(ctx, b, path, timeout)
	dur := time.Since(t.Since())
	if errors.Is(err, errAbandoned) {
		t0 := t.Since()
		logger.ErrorWith("record", string(diag.Classify(err)), "build abandoned at deadline", &t0, fileID)
	}
	diag.ObserveDuration("record", "build", dur.Milliseconds())
	if err != nil {
		code := string(diag.Classify(err))
		logger.Skip("record", code, err.Error(), fileID)
		diag.IncOp("record", "skip", "error")
		diag.IncError("record", code)
		diag.IncDocument(false)
		diag.GetTerminal().DocFinish(fileID, false, dur)
		return slot{diag: &contract.Diagnostic{
			FileID: contract.FileID(fileID),
			Stage:  stageOf(err),
			Code:   code,
			Err:    err,
			Msg:    err.Error(),
		}}
	}
	t.Finish("build", int64(len(rec.Results)))
	diag.IncOp("record", "finish", "success")
	diag.IncDocument(true)
	diag.GetTerminal().DocFinish(fileID, true, dur)
	return slot{rec: rec}
}

// errAbandoned marks a build still running when its deadline passed.
var errAbandoned = errors.New("build abandoned")

// buildWithin runs one Build under timeout. A builder that does not return by
// the deadline is left behind; its goroutine ends when the source returns.
func buildWithin(ctx context.Context, b Builder, path string, timeout time.Duration) (contract.DocumentRecord, error) {
	if timeout <= 0 {
		return b.Build(ctx, path)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		rec contract.DocumentRecord
		err error
	}
	done := make(chan result, 1)
	go func() {
		rec, err := b.Build(ctx, path)
		done <- result{rec, err}
	}()
	select {
	case r := <-done:
		return r.rec, r.err
	case <-ctx.Done():
		return contract.DocumentRecord{}, fmt.Errorf("%w: %s: %w: %w",
			contract.ErrDocumentRead, contract.NormalizeFileID(path), errAbandoned, ctx.Err())
	}
}

func stageOf(err error) string {
	if errors.Is(err, contract.ErrIdentityParse) {
		return contract.StageIdentity
	}
	return contract.StageRead
}

func sanity(c Components, s *Settings) error {
	if c.Lister == nil || c.Builder == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.Policy == "" {
		s.Policy = merge.First
	}
	return nil
}
