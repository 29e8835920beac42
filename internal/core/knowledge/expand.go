package knowledge

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

// ExpanderConfig tunes the additive expansion stages.
type ExpanderConfig struct {
	HeadingMinSharedTokens int
	FuzzyThreshold         float64
	MaxVocabTerms          int
	CoocPerToken           int
}

func (c ExpanderConfig) withDefaults() ExpanderConfig {
	if c.HeadingMinSharedTokens <= 0 {
		c.HeadingMinSharedTokens = 2
	}
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = 0.55
	}
	if c.MaxVocabTerms <= 0 {
		c.MaxVocabTerms = 6
	}
	if c.CoocPerToken <= 0 {
		c.CoocPerToken = 2
	}
	return c
}

// IntentRule forces domain terms when a query matches a known intent.
// Rules fire in table order and stack.
type IntentRule struct {
	Tag         string
	Match       func(normalizedQuery string, ages []int) bool
	ForcedTerms []string
}

var reAge = regexp.MustCompile(`(\d{1,2})\s*anos?\b`)

var minorTriggerWords = []string{"menor", "menores", "nino", "ninos", "nina", "ninas", "nene", "nenes", "adolescente", "adolescentes", "hijo", "hija", "hijos", "hijas"}

// DefaultIntentRules ships the protected-minor labor rule: questions
// about people aged 15 or under, or using minor/dependent words, pull in
// child-labor vocabulary even when the literal words differ.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{
			Tag: "protected_minor_labor",
			Match: func(q string, ages []int) bool {
				for _, age := range ages {
					if age <= 15 {
						return true
					}
				}
				for _, w := range minorTriggerWords {
					if containsWord(q, w) {
						return true
					}
				}
				return false
			},
			ForcedTerms: []string{
				"trabajo infantil", "esclavitud moderna", "trabajo forzado",
				"menores", "edad minima", "derechos humanos",
			},
		},
	}
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		end := pos + len(word)
		okBefore := pos == 0 || !isWordByte(text[pos-1])
		okAfter := end == len(text) || !isWordByte(text[end])
		if okBefore && okAfter {
			return true
		}
		idx = pos + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// QueryExpander widens queries against one index. Stateless; safe for
// concurrent use.
type QueryExpander struct {
	cfg   ExpanderConfig
	rules []IntentRule
}

func NewQueryExpander(cfg ExpanderConfig, rules []IntentRule) *QueryExpander {
	if rules == nil {
		rules = DefaultIntentRules()
	}
	return &QueryExpander{cfg: cfg.withDefaults(), rules: rules}
}

// Expand runs every stage in order. Each stage only ever adds terms;
// original query tokens are never removed or rewritten.
func (e *QueryExpander) Expand(ix *Index, query string) (*domain.ExpandedQuery, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrMalformedQuery, "knowledge.Expand",
			fmt.Errorf("blank query"))
	}

	normalized := NormalizeForMatch(query)
	queryTerms := Tokenize(query)

	eq := &domain.ExpandedQuery{
		Original:      query,
		Normalized:    normalized,
		QueryTerms:    queryTerms,
		Terms:         append([]string(nil), queryTerms...),
		HeadingChunks: make(map[int]bool),
		FuzzyChunks:   make(map[int]bool),
	}

	for _, m := range reAge.FindAllStringSubmatch(normalized, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil {
			eq.AgeValues = append(eq.AgeValues, v)
		}
	}
	eq.RequiresExactAge = strings.Contains(normalized, "edad minima exacta") ||
		strings.Contains(normalized, "edad exacta") ||
		(strings.Contains(normalized, "exacta") && strings.Contains(normalized, "edad"))

	have := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		have[t] = true
	}
	addTerm := func(term string, origin domain.TermOrigin) {
		term = NormalizeForMatch(term)
		if term == "" || have[term] {
			return
		}
		have[term] = true
		eq.Terms = append(eq.Terms, term)
		eq.Added = append(eq.Added, domain.AddedTerm{Term: term, Origin: origin})
	}

	e.expandHeadings(ix, eq, queryTerms, addTerm)
	e.expandVocab(ix, eq, addTerm)
	e.expandCooc(ix, queryTerms, addTerm)

	for _, rule := range e.rules {
		if rule.Match(normalized, eq.AgeValues) {
			eq.IntentTags = append(eq.IntentTags, rule.Tag)
			for _, term := range rule.ForcedTerms {
				addTerm(term, domain.OriginIntentRule)
			}
		}
	}

	eq.ExpandedText = eq.Original
	if len(eq.Added) > 0 {
		extras := make([]string, len(eq.Added))
		for i, a := range eq.Added {
			extras[i] = a.Term
		}
		eq.ExpandedText = eq.Original + " " + strings.Join(extras, " ")
	}
	eq.ExpandedNormalized = NormalizeForMatch(eq.ExpandedText)
	return eq, nil
}

// expandHeadings matches query tokens against section titles: exact
// token sharing first, then fuzzy similarity for misspelled headings.
func (e *QueryExpander) expandHeadings(ix *Index, eq *domain.ExpandedQuery, queryTerms []string, add func(string, domain.TermOrigin)) {
	querySet := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		querySet[t] = true
	}

	titles := make([]string, 0, len(ix.SectionTitles))
	for title := range ix.SectionTitles {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	for _, title := range titles {
		chunkID := ix.SectionTitles[title]
		titleTokens := Tokenize(title)
		shared := 0
		for _, t := range titleTokens {
			if querySet[t] {
				shared++
			}
		}
		minShared := e.cfg.HeadingMinSharedTokens
		if len(titleTokens) == 1 {
			minShared = 1
		}
		if shared >= minShared {
			eq.HeadingChunks[chunkID] = true
			for _, t := range titleTokens {
				if !querySet[t] && !IsStopword(t) {
					add(t, domain.OriginHeadingMatch)
				}
			}
			continue
		}
		// fuzzy pass: any query token close to any title token
		for _, qt := range queryTerms {
			matched := false
			for _, tt := range titleTokens {
				if similarity(qt, tt) >= e.cfg.FuzzyThreshold && qt != tt {
					matched = true
					break
				}
			}
			if matched {
				eq.FuzzyChunks[chunkID] = true
				for _, t := range titleTokens {
					if !querySet[t] && !IsStopword(t) {
						add(t, domain.OriginFuzzyHeading)
					}
				}
				break
			}
		}
	}
}

// expandVocab pulls document n-grams that contain a query token.
func (e *QueryExpander) expandVocab(ix *Index, eq *domain.ExpandedQuery, add func(string, domain.TermOrigin)) {
	type cand struct {
		term string
		freq int
	}
	var cands []cand
	for ngram, freq := range ix.Vocabulary {
		if !strings.Contains(ngram, " ") {
			continue
		}
		for _, qt := range eq.QueryTerms {
			if containsWord(ngram, qt) {
				cands = append(cands, cand{ngram, freq})
				break
			}
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].freq != cands[j].freq {
			return cands[i].freq > cands[j].freq
		}
		return cands[i].term < cands[j].term
	})
	for i := 0; i < len(cands) && i < e.cfg.MaxVocabTerms; i++ {
		add(cands[i].term, domain.OriginVocab)
	}
}

// expandCooc adds the strongest co-occurring neighbors of each query
// token. Neighbor lists are pre-sorted at index build.
func (e *QueryExpander) expandCooc(ix *Index, queryTerms []string, add func(string, domain.TermOrigin)) {
	for _, qt := range queryTerms {
		neighbors := ix.Cooccurrence[qt]
		for i := 0; i < len(neighbors) && i < e.cfg.CoocPerToken; i++ {
			add(neighbors[i], domain.OriginCooc)
		}
	}
}

// similarity is a normalized Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	dist := prev[lb]
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(dist)/float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
