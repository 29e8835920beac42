package knowledge

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

// IndexerConfig holds chunking and vocabulary knobs. Zero values are
// replaced by the defaults below.
type IndexerConfig struct {
	ChunkTargetChars  int
	ChunkMaxChars     int
	ChunkOverlapChars int
	MaxDocumentChars  int
	VocabMinFreq      int
	NgramMinFreq      int
	CoocWindow        int
	CoocMaxNeighbors  int
}

func (c IndexerConfig) withDefaults() IndexerConfig {
	if c.ChunkTargetChars <= 0 {
		c.ChunkTargetChars = 1100
	}
	if c.ChunkMaxChars <= 0 {
		c.ChunkMaxChars = 1400
	}
	if c.ChunkOverlapChars <= 0 {
		c.ChunkOverlapChars = 220
	}
	if c.MaxDocumentChars <= 0 {
		c.MaxDocumentChars = 120000
	}
	if c.VocabMinFreq <= 0 {
		c.VocabMinFreq = 3
	}
	if c.NgramMinFreq <= 0 {
		c.NgramMinFreq = 2
	}
	if c.CoocWindow <= 0 {
		c.CoocWindow = 8
	}
	if c.CoocMaxNeighbors <= 0 {
		c.CoocMaxNeighbors = 8
	}
	return c
}

// Index is an immutable snapshot of one document, ready for retrieval.
// All derived structures are built once; readers never mutate it.
type Index struct {
	Fingerprint   string
	DocumentName  string
	DocumentChars int
	OriginalChars int
	Truncated     bool

	Chunks          []domain.Chunk
	TokenLists      [][]string
	TokenSets       []map[string]bool
	NormalizedTexts []string
	TermFreqs       []map[string]int
	DocFreq         map[string]int
	AvgChunkLen     float64

	SectionTitles map[string]int // normalized title -> first chunk id
	Vocabulary    map[string]int // uni/bi/trigram -> frequency
	Cooccurrence  map[string][]string
	PrimaryEntity string

	cfg IndexerConfig
}

// Config returns the knobs the index was built with.
func (ix *Index) Config() IndexerConfig { return ix.cfg }

// Heading anchors use [ \t]* so leading indentation matches but the
// match can never start on a preceding blank line.
var (
	reArticle  = regexp.MustCompile(`(?im)^[ \t]*art[ií]culo\s+([0-9]+[a-zA-Z0-9-]*)\b`)
	reChapter  = regexp.MustCompile(`(?im)^[ \t]*(cap[ií]tulo|secci[oó]n|section|chapter)\s+([0-9ivxlc]+[a-zA-Z0-9-]*)\b`)
	reNumbered = regexp.MustCompile(`(?m)^[ \t]*(\d+(?:\.\d+)*)[ \t]*[.)-]?[ \t]+(.{3,120})$`)
	reMarkdown = regexp.MustCompile(`(?m)^[ \t]*#{1,4}[ \t]+(.{3,120})$`)
)

// isUpperHeading treats a short line written mostly in uppercase letters
// as a section heading.
func isUpperHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 5 || len(trimmed) > 90 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range trimmed {
		if !isLetter(r) {
			continue
		}
		letters++
		if isUpper(r) {
			upper++
		}
	}
	return letters >= 3 && float64(upper) >= 0.8*float64(letters)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= 'à' && r <= 'ÿ') || (r >= 'À' && r <= 'Þ') || r == 'ñ' || r == 'Ñ'
}

func isUpper(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'À' && r <= 'Þ') || r == 'Ñ'
}

type rawSection struct {
	sectionID string
	articleID string
	title     string
	label     string
	start     int
	end       int
}

// BuildIndex chunks, tokenizes and derives all retrieval structures for
// one document. Deterministic: identical input yields an identical index.
func BuildIndex(doc *domain.Document, cfg IndexerConfig) (*Index, error) {
	cfg = cfg.withDefaults()
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrEmptyDocument, "knowledge.BuildIndex",
			fmt.Errorf("document %q has no content", doc.Name))
	}

	originalChars := len(text)
	truncated := false
	if originalChars > cfg.MaxDocumentChars {
		text = truncateAtBoundary(text, cfg.MaxDocumentChars)
		truncated = true
	}

	sections := splitSections(text)
	chunks := buildChunks(text, sections, cfg)

	ix := &Index{
		Fingerprint:   doc.Fingerprint,
		DocumentName:  doc.Name,
		DocumentChars: len(text),
		OriginalChars: originalChars,
		Truncated:     truncated || doc.Truncated,
		Chunks:        chunks,
		DocFreq:       make(map[string]int),
		SectionTitles: make(map[string]int),
		cfg:           cfg,
	}

	totalLen := 0
	for i := range chunks {
		tokens := Tokenize(chunks[i].Text)
		set := make(map[string]bool, len(tokens))
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
			set[tok] = true
		}
		for tok := range set {
			ix.DocFreq[tok]++
		}
		ix.TokenLists = append(ix.TokenLists, tokens)
		ix.TokenSets = append(ix.TokenSets, set)
		ix.TermFreqs = append(ix.TermFreqs, tf)
		ix.NormalizedTexts = append(ix.NormalizedTexts, NormalizeForMatch(chunks[i].Text))
		totalLen += len(tokens)

		if chunks[i].SectionTitle != "" {
			key := NormalizeForMatch(chunks[i].SectionTitle)
			if _, seen := ix.SectionTitles[key]; !seen {
				ix.SectionTitles[key] = chunks[i].ID
			}
		}
	}
	if len(chunks) > 0 {
		ix.AvgChunkLen = float64(totalLen) / float64(len(chunks))
	}

	ix.Vocabulary = buildVocabulary(ix.TokenLists, cfg)
	ix.Cooccurrence = buildCooccurrence(ix.TokenLists, cfg)
	ix.PrimaryEntity = inferPrimaryEntity(doc.Name, text)
	return ix, nil
}

// CapText applies the document size limit ahead of persistence, so the
// stored text matches what the index will see. Returns the capped text
// and whether anything was cut.
func CapText(text string, limit int) (string, bool) {
	if limit <= 0 {
		limit = 120000
	}
	if len(text) <= limit {
		return text, false
	}
	return truncateAtBoundary(text, limit), true
}

// truncateAtBoundary cuts at the last paragraph break before the limit,
// falling back to the last space, so a truncated index never ends
// mid-word.
func truncateAtBoundary(text string, limit int) string {
	cut := text[:limit]
	if idx := strings.LastIndex(cut, "\n\n"); idx > limit/2 {
		return cut[:idx]
	}
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		return cut[:idx]
	}
	return cut
}

// splitSections finds heading-aligned boundaries. Articles win over
// chapter/numbered/markdown/uppercase headings at the same offset.
func splitSections(text string) []rawSection {
	type marker struct {
		offset    int
		sectionID string
		articleID string
		title     string
		label     string
	}
	var markers []marker

	for _, m := range reArticle.FindAllStringSubmatchIndex(text, -1) {
		id := text[m[2]:m[3]]
		title := headingTitle(firstLine(text[m[3]:]))
		markers = append(markers, marker{
			offset:    m[0],
			articleID: id,
			title:     title,
			label:     "Articulo " + id,
		})
	}
	for _, m := range reChapter.FindAllStringSubmatchIndex(text, -1) {
		id := text[m[4]:m[5]]
		line := firstLine(text[m[0]:])
		markers = append(markers, marker{
			offset:    m[0],
			sectionID: id,
			title:     strings.TrimSpace(line),
			label:     "Seccion " + id,
		})
	}
	for _, m := range reNumbered.FindAllStringSubmatchIndex(text, -1) {
		id := text[m[2]:m[3]]
		title := strings.TrimSpace(text[m[4]:m[5]])
		markers = append(markers, marker{
			offset:    m[0],
			sectionID: id,
			title:     title,
			label:     "Seccion " + id + " - " + title,
		})
	}
	for _, m := range reMarkdown.FindAllStringSubmatchIndex(text, -1) {
		title := strings.TrimSpace(text[m[2]:m[3]])
		markers = append(markers, marker{
			offset: m[0],
			title:  title,
			label:  title,
		})
	}
	for _, line := range splitLinesWithOffsets(text) {
		if isUpperHeading(line.text) {
			markers = append(markers, marker{
				offset: line.offset,
				title:  strings.TrimSpace(line.text),
				label:  strings.TrimSpace(line.text),
			})
		}
	}

	if len(markers) == 0 {
		return nil
	}

	sort.SliceStable(markers, func(i, j int) bool {
		if markers[i].offset != markers[j].offset {
			return markers[i].offset < markers[j].offset
		}
		// article markers dominate other heading kinds at the same line
		return markers[i].articleID != "" && markers[j].articleID == ""
	})
	dedup := markers[:1]
	for _, m := range markers[1:] {
		if m.offset-dedup[len(dedup)-1].offset < 3 {
			continue
		}
		dedup = append(dedup, m)
	}

	var sections []rawSection
	for i, m := range dedup {
		end := len(text)
		if i+1 < len(dedup) {
			end = dedup[i+1].offset
		}
		sections = append(sections, rawSection{
			sectionID: m.sectionID,
			articleID: m.articleID,
			title:     m.title,
			label:     m.label,
			start:     m.offset,
			end:       end,
		})
	}
	if sections[0].start > 0 {
		preamble := rawSection{label: "", start: 0, end: sections[0].start}
		sections = append([]rawSection{preamble}, sections...)
	}
	return sections
}

type offsetLine struct {
	offset int
	text   string
}

func splitLinesWithOffsets(text string) []offsetLine {
	var lines []offsetLine
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, offsetLine{offset: start, text: text[start:i]})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, offsetLine{offset: start, text: text[start:]})
	}
	return lines
}

// headingTitle trims heading punctuation and cuts at the first sentence
// end, so inline headings do not swallow the following sentence.
func headingTitle(s string) string {
	s = strings.TrimLeft(s, " \t.:-")
	if idx := strings.Index(s, ". "); idx > 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(strings.TrimRight(s, "."))
	if len(s) < 3 || len(s) > 120 {
		return ""
	}
	return s
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// buildChunks turns sections into chunks, size-splitting long sections
// and bridging each split with the leading sentences of its successor.
func buildChunks(text string, sections []rawSection, cfg IndexerConfig) []domain.Chunk {
	var chunks []domain.Chunk
	nextID := 0

	add := func(body string, sec rawSection, start, end int) {
		if strings.TrimSpace(body) == "" {
			return
		}
		label := sec.label
		if label == "" {
			label = fmt.Sprintf("Chunk %d", nextID+1)
		}
		chunks = append(chunks, domain.Chunk{
			ID:           nextID,
			Text:         body,
			SectionID:    sec.sectionID,
			ArticleID:    sec.articleID,
			SectionTitle: sec.title,
			SourceLabel:  label,
			StartOffset:  start,
			EndOffset:    end,
		})
		nextID++
	}

	if len(sections) == 0 {
		for _, p := range splitBySize(text, cfg) {
			add(p.text, rawSection{}, p.start, p.end)
		}
	} else {
		for _, sec := range sections {
			body := text[sec.start:sec.end]
			if len(body) <= cfg.ChunkMaxChars {
				add(body, sec, sec.start, sec.end)
				continue
			}
			for _, p := range splitBySize(body, cfg) {
				add(p.text, sec, sec.start+p.start, sec.start+p.end)
			}
		}
	}

	// Bridge split boundaries: append the next chunk's opening sentences
	// so a concept spanning the cut stays retrievable from either side.
	for i := 0; i < len(chunks)-1; i++ {
		if chunks[i].SectionID != chunks[i+1].SectionID ||
			chunks[i].ArticleID != chunks[i+1].ArticleID {
			continue
		}
		tail := leadingSentences(chunks[i+1].Text, cfg.ChunkOverlapChars)
		if tail != "" {
			chunks[i].Text = chunks[i].Text + "\n" + tail
		}
	}
	return chunks
}

type piece struct {
	text  string
	start int
	end   int
}

// splitBySize cuts text near the target size at the latest paragraph or
// space boundary, never exceeding the ceiling.
func splitBySize(text string, cfg IndexerConfig) []piece {
	var pieces []piece
	pos := 0
	for pos < len(text) {
		remaining := len(text) - pos
		if remaining <= cfg.ChunkMaxChars {
			pieces = append(pieces, piece{text: text[pos:], start: pos, end: len(text)})
			break
		}
		cut := pos + cfg.ChunkTargetChars
		window := text[pos:cut]
		if idx := strings.LastIndex(window, "\n\n"); idx > 120 {
			cut = pos + idx
		} else if idx := strings.LastIndex(window, ". "); idx > 120 {
			cut = pos + idx + 1
		} else if idx := strings.LastIndex(window, " "); idx > 120 {
			cut = pos + idx
		}
		pieces = append(pieces, piece{text: text[pos:cut], start: pos, end: cut})
		pos = cut
	}
	return pieces
}

// leadingSentences returns up to two opening sentences of s, capped at
// maxChars.
func leadingSentences(s string, maxChars int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	count := 0
	end := len(s)
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '.' && (s[i+1] == ' ' || s[i+1] == '\n') {
			count++
			if count == 2 {
				end = i + 1
				break
			}
		}
	}
	if end > maxChars {
		end = maxChars
		if idx := strings.LastIndexByte(s[:end], ' '); idx > 0 {
			end = idx
		}
	}
	return strings.TrimSpace(s[:end])
}

// buildVocabulary collects unigrams above VocabMinFreq plus bi/trigrams
// above NgramMinFreq. Keys are space-joined normalized tokens.
func buildVocabulary(tokenLists [][]string, cfg IndexerConfig) map[string]int {
	vocab := make(map[string]int)
	for _, tokens := range tokenLists {
		for i, tok := range tokens {
			vocab[tok]++
			if i+1 < len(tokens) {
				vocab[tok+" "+tokens[i+1]]++
			}
			if i+2 < len(tokens) {
				vocab[tok+" "+tokens[i+1]+" "+tokens[i+2]]++
			}
		}
	}
	for key, freq := range vocab {
		min := cfg.VocabMinFreq
		if strings.Contains(key, " ") {
			min = cfg.NgramMinFreq
		}
		if freq < min {
			delete(vocab, key)
		}
	}
	return vocab
}

// buildCooccurrence maps each token to its most frequent window-mates,
// sorted by count descending with alphabetical tie-break for
// determinism.
func buildCooccurrence(tokenLists [][]string, cfg IndexerConfig) map[string][]string {
	counts := make(map[string]map[string]int)
	for _, tokens := range tokenLists {
		for i, tok := range tokens {
			hi := i + cfg.CoocWindow
			if hi > len(tokens) {
				hi = len(tokens)
			}
			for j := i + 1; j < hi; j++ {
				other := tokens[j]
				if other == tok {
					continue
				}
				if counts[tok] == nil {
					counts[tok] = make(map[string]int)
				}
				if counts[other] == nil {
					counts[other] = make(map[string]int)
				}
				counts[tok][other]++
				counts[other][tok]++
			}
		}
	}
	result := make(map[string][]string, len(counts))
	for tok, neigh := range counts {
		type pair struct {
			term  string
			count int
		}
		pairs := make([]pair, 0, len(neigh))
		for term, c := range neigh {
			pairs = append(pairs, pair{term, c})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].count != pairs[j].count {
				return pairs[i].count > pairs[j].count
			}
			return pairs[i].term < pairs[j].term
		})
		n := cfg.CoocMaxNeighbors
		if n > len(pairs) {
			n = len(pairs)
		}
		terms := make([]string, n)
		for i := 0; i < n; i++ {
			terms[i] = pairs[i].term
		}
		result[tok] = terms
	}
	return result
}

// IDF uses the BM25 log1p form; never negative.
func (ix *Index) IDF(term string) float64 {
	df := ix.DocFreq[term]
	n := len(ix.Chunks)
	v := math.Log1p((float64(n) - float64(df) + 0.5) / (float64(df) + 0.5))
	if v < 0 {
		return 0
	}
	return v
}
