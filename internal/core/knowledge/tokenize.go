package knowledge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stopwords shared by tokenization and keyword checks. Spanish first,
// then the English subset that shows up in bilingual policy documents.
var stopwords = map[string]bool{
	"que": true, "los": true, "las": true, "del": true, "por": true,
	"con": true, "para": true, "una": true, "uno": true, "unos": true,
	"unas": true, "este": true, "esta": true, "estos": true, "estas": true,
	"ese": true, "esa": true, "esos": true, "esas": true, "como": true,
	"mas": true, "pero": true, "sus": true, "les": true, "nos": true,
	"desde": true, "hasta": true, "entre": true, "sobre": true, "ser": true,
	"son": true, "sin": true, "tambien": true, "muy": true,
	"cual": true, "cuales": true, "donde": true, "cuando": true, "quien": true,
	"the": true, "and": true, "for": true, "are": true, "with": true,
	"that": true, "this": true, "from": true, "not": true, "all": true,
	"any": true, "can": true, "will": true, "shall": true, "must": true,
	"has": true, "have": true, "was": true, "were": true, "our": true,
}

// StripAccents removes combining marks so "política" and "politica"
// tokenize identically. U+00F1 folds to plain n as well.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeForMatch lowercases, strips accents and collapses whitespace.
// Exact-substring and heading comparisons run over this form.
func NormalizeForMatch(s string) string {
	s = StripAccents(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits normalized text into alphanumeric tokens of length
// three or more, dropping stopwords.
func Tokenize(s string) []string {
	normalized := StripAccents(strings.ToLower(s))
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() >= 3 {
			tok := b.String()
			if !stopwords[tok] {
				tokens = append(tokens, tok)
			}
		}
		b.Reset()
	}
	for _, r := range normalized {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// TokenSet returns the unique tokens of s.
func TokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(s) {
		set[tok] = true
	}
	return set
}

// IsStopword reports whether the normalized token is filtered out.
func IsStopword(tok string) bool {
	return stopwords[tok]
}
