package normalize

import (
	"regexp"
	"strings"
	"testing"
)

const sampleReport = "HOSPITAL SÃO PAULO\r\n" +
	"Nome: MARIA  DA SILVA Sexo: F\r\n" +
	"Data de Nascimento: 01/01/2000\r\n" +
	"Data de Coleta: 01/01/2020 às 08:30\r\n" +
	"RESULTADOS\r\n" +
	"\r\n" +
	"HEMOGLOBINA\r\n" +
	"Resultado:\t13,5 g/dL\r\n" +
	"   \r\n" +
	"A correta interpretação deste resultado depende de avaliação médica\r\n" +
	"Rua Napoleão de Barros, 715 - Vila Clementino, São Paulo - SP\r\n" +
	"\fHOSPITAL SÃO PAULO\r\n" +
	"Nome: MARIA DA SILVA Sexo: F\r\n" +
	"RESULTADOS\r\n" +
	"Data de Coleta: 01/01/2020 às 08:30\r\n" +
	"CREATININA\r\n" +
	"Resultado: 0,8 mg/dL\r\n"

func TestTransliterate(t *testing.T) {
	cases := map[string]string{
		"são paulo":        "sao paulo",
		"interpretação":    "interpretacao",
		"ÁÉÍÓÚ âêô ç":      "AEIOU aeo c",
		"straße":           "strasse",
		"µg/dl":            "ug/dl",
		"nº 2":             "no 2",
		"10³/mm³":          "103/mm3",
		"a–b":              "a-b",
		"plain ascii text": "plain ascii text",
	}
	for in, want := range cases {
		if got := Transliterate(in); got != want {
			t.Errorf("Transliterate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	got := Canonicalize("  Ação \t  HEMOGLOBINA  Total\r\nLinha 2\fPágina")
	want := " acao hemoglobina total\nlinha 2\npagina"
	if got != want {
		t.Fatalf("Canonicalize = %q, want %q", got, want)
	}
}

func TestRemovePairedPages(t *testing.T) {
	start := regexp.MustCompile(`(?m)^H$`)
	end := regexp.MustCompile(`(?m)^R$`)
	text := "keep0\nH\nhdr\nR\nbody1\nH\nhdr2\nR\nbody2\n"
	got := removePaired(text, start, end)
	want := "keep0\n\nbody1\n\nbody2\n"
	if got != want {
		t.Fatalf("removePaired = %q, want %q", got, want)
	}
}

func TestRemovePairedMissingMarker(t *testing.T) {
	start := regexp.MustCompile(`(?m)^H$`)
	end := regexp.MustCompile(`(?m)^R$`)
	cases := []string{
		"no markers at all\n",
		"H\nonly a start marker\nbody\n",
		"only an end marker\nR\nbody\n",
	}
	for _, text := range cases {
		if got := removePaired(text, start, end); got != text {
			t.Fatalf("text changed: %q -> %q", text, got)
		}
	}
	if got := removePaired("x", nil, end); got != "x" {
		t.Fatalf("nil marker should disable the pass")
	}
}

func TestRemovePairedUnterminated(t *testing.T) {
	start := regexp.MustCompile(`(?m)^H$`)
	end := regexp.MustCompile(`(?m)^R$`)
	// the end marker precedes the only start: it is kept as text and the
	// open block runs to the end.
	if got := removePaired("a\nR\nb\nH\nc\n", start, end); got != "a\nR\nb\n" {
		t.Fatalf("got %q", got)
	}
	// two opens, one close: the second block swallows the tail.
	if got := removePaired("x\nH\n1\nR\ny\nH\n2\n", start, end); got != "x\n\ny\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRemoveBlankLines(t *testing.T) {
	got := RemoveBlankLines("a  \n\n   \n b\t\nc")
	if got != "a\n b\nc" {
		t.Fatalf("got %q", got)
	}
}

func TestRemoveLinesWithPrefix(t *testing.T) {
	got := RemoveLinesWithPrefix("data de coleta: x\nhb\n data de coleta\nx", "data de coleta")
	if got != "hb\n data de coleta\nx" {
		t.Fatalf("got %q", got)
	}
	if RemoveLinesWithPrefix("a\nb") != "a\nb" {
		t.Fatalf("no prefixes should be a no-op")
	}
}

func TestNormalizeSample(t *testing.T) {
	s := MustStripper(DefaultProfile())
	canon, clean := s.Normalize(sampleReport)
	if !strings.Contains(canon, "nome: maria da silva sexo: f") {
		t.Fatalf("canonical text lost identity line: %q", canon)
	}
	if !strings.Contains(canon, "data de coleta: 01/01/2020 as 08:30") {
		t.Fatalf("canonical text lost collection line: %q", canon)
	}
	want := "hemoglobina\nresultado: 13,5 g/dl\ncreatinina\nresultado: 0,8 mg/dl"
	if clean != want {
		t.Fatalf("clean = %q\nwant    %q", clean, want)
	}
}

func TestStripIdempotent(t *testing.T) {
	s := MustStripper(DefaultProfile())
	free := "hemoglobina\nresultado: 13,5 g/dl\nglicose 90 mg/dl"
	if got := s.Strip(free); got != free {
		t.Fatalf("boilerplate-free text changed: %q", got)
	}
	once := s.Strip(Canonicalize(sampleReport))
	if twice := s.Strip(once); twice != once {
		t.Fatalf("Strip not idempotent: %q vs %q", once, twice)
	}
}

func TestNewStripperErrors(t *testing.T) {
	p := DefaultProfile()
	p.HeaderEnd = "(unclosed"
	if _, err := NewStripper(p); err == nil || !strings.Contains(err.Error(), "header_end") {
		t.Fatalf("expected header_end error, got %v", err)
	}
	empty, err := NewStripper(Profile{})
	if err != nil {
		t.Fatalf("empty profile: %v", err)
	}
	if got := empty.Strip("hospital sao paulo\nresultados\nhb\n\n"); got != "hospital sao paulo\nresultados\nhb" {
		t.Fatalf("empty profile should only drop blank lines, got %q", got)
	}
}
