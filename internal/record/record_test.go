package record

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"labpivot/internal/extract"
	"labpivot/internal/template"
	"labpivot/pkg/contract"
)

// stubSource serves texts by path; unknown paths fail.
type stubSource struct {
	texts map[string]string
	block bool
	// delay is slept without watching ctx.
	delay time.Duration
}

func (s stubSource) Text(ctx context.Context, path string) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	time.Sleep(s.delay)
	t, ok := s.texts[path]
	if !ok {
		return "", errors.New("corrupt file")
	}
	return t, nil
}

const report = "HOSPITAL SÃO PAULO\n" +
	"Nome: JOSÉ  PEREIRA Sexo: M\n" +
	"Data de Nascimento: 10/05/1980\n" +
	"Data de Coleta: 02/02/2022 às 07:15\n" +
	"RESULTADOS\n" +
	"HEMOGLOBINA\n" +
	"Resultado: 14,2 g/dL\n" +
	"A correta interpretação do resultado requer avaliação médica\n" +
	"Vila Clementino, São Paulo - SP\n"

const catalogue = `{
  "type_1": {"tests": ["hemoglobina", "nome"], "regex": "resultado: (-?\\d+,?\\d*)"},
  "type_2": {"tests": ["glicose"], "regex": "(\\d+)"},
  "type_3": {"tests": ["ureia"], "regex": "(\\d+)"}
}`

func newBuilder(t *testing.T, src contract.TextSource) *Builder {
	t.Helper()
	reg, err := template.Parse(strings.NewReader(catalogue))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBuilder(src, reg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBuild(t *testing.T) {
	b := newBuilder(t, stubSource{texts: map[string]string{`in\sub\jose.pdf`: report}})
	rec, err := b.Build(context.Background(), `in\sub\jose.pdf`)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rec.FileID != "in/sub/jose.pdf" || rec.Source != "jose.pdf" {
		t.Fatalf("file id/source = %q/%q", rec.FileID, rec.Source)
	}
	want := contract.Identity{Name: "jose pereira", Sex: "m", BirthDate: "10/05/1980", CollectionDate: "02/02/2022", CollectionTime: "07:15"}
	if rec.Identity != want {
		t.Fatalf("identity = %+v", rec.Identity)
	}
	hb := rec.Results["hemoglobina"]
	if hb == nil || *hb != 14.2 {
		t.Fatalf("hemoglobina = %v", hb)
	}
	// header lines are gone before results are read.
	if _, ok := rec.Results["nome"]; ok {
		t.Fatalf("header leaked into results: %v", rec.Results)
	}
	if len(rec.Results) != 1 {
		t.Fatalf("results = %v", rec.Results)
	}
}

func TestBuildReadError(t *testing.T) {
	b := newBuilder(t, stubSource{})
	_, err := b.Build(context.Background(), "missing.pdf")
	if !errors.Is(err, contract.ErrDocumentRead) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildIdentityError(t *testing.T) {
	text := strings.Replace(report, "Data de Nascimento: 10/05/1980\n", "", 1)
	b := newBuilder(t, stubSource{texts: map[string]string{"x.txt": text}})
	_, err := b.Build(context.Background(), "x.txt")
	var ie *extract.IdentityError
	if !errors.As(err, &ie) || !errors.Is(err, contract.ErrIdentityParse) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "x.txt") {
		t.Fatalf("error should name the document: %v", err)
	}
}

func TestBuildTimeout(t *testing.T) {
	b := newBuilder(t, stubSource{block: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Build(ctx, "slow.pdf")
	if !errors.Is(err, contract.ErrDocumentRead) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

// TestBuildLateSource rejects text that arrives after the deadline.
func TestBuildLateSource(t *testing.T) {
	b := newBuilder(t, stubSource{texts: map[string]string{"late.pdf": report}, delay: 60 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Build(ctx, "late.pdf")
	if !errors.Is(err, contract.ErrDocumentRead) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewBuilderRequiresSourceAndTemplate(t *testing.T) {
	if _, err := NewBuilder(nil, nil, nil, nil); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestCollectionOrder(t *testing.T) {
	var c Collection
	c.Add(contract.DocumentRecord{Source: "b.pdf"})
	c.Add(contract.DocumentRecord{Source: "a.pdf"})
	got := c.Records()
	if c.Len() != 2 || got[0].Source != "b.pdf" || got[1].Source != "a.pdf" {
		t.Fatalf("records = %+v", got)
	}
	got[0].Source = "changed"
	if c.Records()[0].Source != "b.pdf" {
		t.Fatalf("Records must return a copy")
	}
}
