// Package table reconstructs rows and columns of a statement table from the
// canonical tokens of one page.
package table

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	defaultDatePattern   = `\b\d{2}[./-]\d{2}[./-]\d{2,4}\b`
	defaultAmountPattern = `(?:^|[^\d])-?\d{1,3}(?:[ \x{00A0}']?\d{3})*[.,]\d{2}(?:[^\d]|$)`

	// tableLikeMinRunes is the length a line must exceed to be treated as a row.
	tableLikeMinRunes = 10
)

// PatternConfig holds the lexical knobs of the reconstruction engine.
type PatternConfig struct {
	Delimiters       []string `json:"delimiters" yaml:"delimiters" mapstructure:"delimiters"`
	DateMarkers      []string `json:"date_markers" yaml:"date_markers" mapstructure:"date_markers"`
	OperationMarkers []string `json:"operation_markers" yaml:"operation_markers" mapstructure:"operation_markers"`
	DatePattern      string   `json:"date_pattern" yaml:"date_pattern" mapstructure:"date_pattern"`
	AmountPattern    string   `json:"amount_pattern" yaml:"amount_pattern" mapstructure:"amount_pattern"`
}

// DefaultPatternConfig returns the markers used by Russian and English
// statements. Markers match the start of a word, so stems cover inflections.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		Delimiters:       []string{"|", "\t"},
		DateMarkers:      []string{"дата", "date"},
		OperationMarkers: []string{"операци", "operation"},
		DatePattern:      defaultDatePattern,
		AmountPattern:    defaultAmountPattern,
	}
}

// Patterns is the compiled, immutable form of PatternConfig. It is safe for
// concurrent use.
type Patterns struct {
	delimiters       []string
	dateMarkers      []string
	operationMarkers []string
	date             *regexp.Regexp
	amount           *regexp.Regexp
}

// NewPatterns compiles cfg. Empty pattern strings fall back to the defaults.
func NewPatterns(cfg PatternConfig) (*Patterns, error) {
	if cfg.DatePattern == "" {
		cfg.DatePattern = defaultDatePattern
	}
	if cfg.AmountPattern == "" {
		cfg.AmountPattern = defaultAmountPattern
	}

	date, err := regexp.Compile(cfg.DatePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid date pattern %q: %w", cfg.DatePattern, err)
	}
	amount, err := regexp.Compile(cfg.AmountPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid amount pattern %q: %w", cfg.AmountPattern, err)
	}

	p := &Patterns{
		date:   date,
		amount: amount,
	}
	for _, d := range cfg.Delimiters {
		if d != "" {
			p.delimiters = append(p.delimiters, d)
		}
	}
	p.dateMarkers = foldAll(cfg.DateMarkers)
	p.operationMarkers = foldAll(cfg.OperationMarkers)
	return p, nil
}

// MustPatterns is NewPatterns for known-good configs. It panics on error.
func MustPatterns(cfg PatternConfig) *Patterns {
	p, err := NewPatterns(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPatterns returns patterns compiled from DefaultPatternConfig.
func DefaultPatterns() *Patterns {
	return MustPatterns(DefaultPatternConfig())
}

// Delimiter returns the first configured delimiter that occurs in text.
func (p *Patterns) Delimiter(text string) (string, bool) {
	for _, d := range p.delimiters {
		if strings.Contains(text, d) {
			return d, true
		}
	}
	return "", false
}

// HasDate reports whether text contains a DD.MM.YYYY style date.
func (p *Patterns) HasDate(text string) bool {
	return p.date.MatchString(text)
}

// HasAmount reports whether text contains a decimal amount.
func (p *Patterns) HasAmount(text string) bool {
	return p.amount.MatchString(text)
}

// IsHeader reports whether text carries both a date-column and an
// operation-column marker at the start of a word. Matching is
// case-insensitive.
func (p *Patterns) IsHeader(text string) bool {
	folded := fold(text)
	return hasWordPrefix(folded, p.dateMarkers) && hasWordPrefix(folded, p.operationMarkers)
}

// IsTableLike reports whether text looks like a transaction row.
func (p *Patterns) IsTableLike(text string) bool {
	if !p.HasDate(text) && !p.HasAmount(text) {
		return false
	}
	if p.IsHeader(text) {
		return false
	}
	return utf8.RuneCountInString(text) > tableLikeMinRunes
}

// fold case-folds s. cases.Caser keeps state, so a fresh one is used per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, fold(s))
		}
	}
	return out
}

// hasWordPrefix reports whether one of prefixes occurs in s at a word start.
func hasWordPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		for off := 0; off < len(s); {
			i := strings.Index(s[off:], prefix)
			if i < 0 {
				break
			}
			i += off
			if i == 0 || !isWordRune(lastRune(s[:i])) {
				return true
			}
			_, size := utf8.DecodeRuneInString(s[i:])
			off = i + size
		}
	}
	return false
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
