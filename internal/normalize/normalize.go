// Package normalize turns raw report text into the canonical form every
// extractor works on.
//
// Two phases:
//   - Canonicalize: lowercase, accent transliteration, horizontal whitespace
//     collapsed to one space. Identity fields are read from this form.
//   - Stripper.Strip: institutional header/trailer blocks removed, blank lines
//     dropped, collection-date lines dropped. Test results are read from this
//     form.
//
// Neither phase fails; missing markers simply leave the text as it is.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that survive NFD decomposition without a combining mark.
var fold = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"µ", "u",
	"º", "o",
	"ª", "a",
	"¹", "1",
	"²", "2",
	"³", "3",
	"–", "-",
	"—", "-",
	"−", "-",
	"‘", "'",
	"’", "'",
	"“", "\"",
	"”", "\"",
	"…", "...",
	"\u00a0", " ",
)

// Transliterate removes diacritics ("ã" -> "a", "ç" -> "c") and folds a few
// letters that have no decomposition.
func Transliterate(s string) string {
	// transform.Chain keeps state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return fold.Replace(out)
}

var (
	lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n")
	// space, tab, vertical tab and the unicode space separators.
	horizontalSpace = regexp.MustCompile(`[\t\v \p{Zs}]+`)
)

// Canonicalize lowercases, transliterates and collapses horizontal whitespace.
// Line structure is kept (CRLF/CR and page breaks become LF).
func Canonicalize(raw string) string {
	s := lineBreaks.Replace(raw)
	s = strings.ToLower(s)
	s = Transliterate(s)
	return horizontalSpace.ReplaceAllString(s, " ")
}

// removePaired discards every block that opens at a match of start and
// closes at the end of the next match of end. Text outside all blocks is kept.
// A block with no closing marker runs to the end of the text; an end marker
// with no open block is ordinary text. Zero matches of either marker leave
// the text unchanged.
func removePaired(text string, start, end *regexp.Regexp) string {
	if start == nil || end == nil {
		return text
	}
	sm := start.FindAllStringIndex(text, -1)
	em := end.FindAllStringIndex(text, -1)
	if len(sm) == 0 || len(em) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	pos, i, j := 0, 0, 0
	for {
		for i < len(sm) && sm[i][0] < pos {
			i++
		}
		if i == len(sm) {
			b.WriteString(text[pos:])
			break
		}
		open := sm[i][0]
		b.WriteString(text[pos:open])
		i++
		for j < len(em) && em[j][0] < open {
			j++
		}
		if j == len(em) {
			break
		}
		pos = em[j][1]
		j++
	}
	return b.String()
}

// RemoveBlankLines drops whitespace-only lines and right-trims the others.
func RemoveBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, strings.TrimRightFunc(l, unicode.IsSpace))
	}
	return strings.Join(out, "\n")
}

// RemoveLinesWithPrefix drops every line starting with one of prefixes.
func RemoveLinesWithPrefix(text string, prefixes ...string) string {
	if len(prefixes) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if hasAnyPrefix(l, prefixes) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
