package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Profile: boilerplate markers of one institutional report template.
// Marker patterns are regular expressions evaluated per line ((?m) is added),
// applied to canonical text (lowercase, no accents).
type Profile struct {
	HeaderStart  string `json:"header_start" mapstructure:"header_start"`
	HeaderEnd    string `json:"header_end" mapstructure:"header_end"`
	TrailerStart string `json:"trailer_start" mapstructure:"trailer_start"`
	TrailerEnd   string `json:"trailer_end" mapstructure:"trailer_end"`
	// DropLinePrefixes: lines starting with any of these are removed after the
	// blank-line pass (the collection-date label by default).
	DropLinePrefixes []string `json:"drop_line_prefixes" mapstructure:"drop_line_prefixes"`
}

// DefaultProfile is the Hospital São Paulo laboratory template.
func DefaultProfile() Profile {
	return Profile{
		HeaderStart:      `hospital sao paulo$`,
		HeaderEnd:        `^resultados$`,
		TrailerStart:     `^a correta interpretacao `,
		TrailerEnd:       `vila clementino, sao paulo - sp$`,
		DropLinePrefixes: []string{"data de coleta"},
	}
}

// Stripper: compiled Profile. Safe for concurrent use.
type Stripper struct {
	headerStart, headerEnd   *regexp.Regexp
	trailerStart, trailerEnd *regexp.Regexp
	dropPrefixes             []string
}

// NewStripper compiles p. Empty patterns disable the corresponding pass.
func NewStripper(p Profile) (*Stripper, error) {
	s := &Stripper{}
	var err error
	if s.headerStart, err = compileLine("header_start", p.HeaderStart); err != nil {
		return nil, err
	}
	if s.headerEnd, err = compileLine("header_end", p.HeaderEnd); err != nil {
		return nil, err
	}
	if s.trailerStart, err = compileLine("trailer_start", p.TrailerStart); err != nil {
		return nil, err
	}
	if s.trailerEnd, err = compileLine("trailer_end", p.TrailerEnd); err != nil {
		return nil, err
	}
	for _, d := range p.DropLinePrefixes {
		if d = strings.TrimSpace(d); d != "" {
			s.dropPrefixes = append(s.dropPrefixes, d)
		}
	}
	return s, nil
}

// MustStripper is NewStripper for known-good profiles.
func MustStripper(p Profile) *Stripper {
	s, err := NewStripper(p)
	if err != nil {
		panic(err)
	}
	return s
}

func compileLine(field, pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", field, err)
	}
	return re, nil
}

// Strip removes header blocks, trailer blocks, blank lines and dropped-prefix
// lines, in that order. Input is expected to be canonical text.
func (s *Stripper) Strip(canon string) string {
	text := removePaired(canon, s.headerStart, s.headerEnd)
	text = removePaired(text, s.trailerStart, s.trailerEnd)
	text = RemoveBlankLines(text)
	return RemoveLinesWithPrefix(text, s.dropPrefixes...)
}

// Normalize runs both phases and returns the canonical text (for identity
// extraction) and the stripped text (for result extraction).
func (s *Stripper) Normalize(raw string) (canon, clean string) {
	canon = Canonicalize(raw)
	return canon, s.Strip(canon)
}
