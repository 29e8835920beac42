package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

// RetrieverConfig tunes scoring and context assembly.
type RetrieverConfig struct {
	BM25K1       float64
	BM25B        float64
	ExactBonus   float64
	HeadingBonus float64
	FuzzyBonus   float64
	StrongScore  float64 // top-score floor that enables stitching
}

func (c RetrieverConfig) withDefaults() RetrieverConfig {
	if c.BM25K1 <= 0 {
		c.BM25K1 = 1.5
	}
	if c.BM25B <= 0 {
		c.BM25B = 0.75
	}
	if c.ExactBonus <= 0 {
		c.ExactBonus = 0.28
	}
	if c.HeadingBonus <= 0 {
		c.HeadingBonus = 0.25
	}
	if c.FuzzyBonus <= 0 {
		c.FuzzyBonus = 0.15
	}
	if c.StrongScore <= 0 {
		c.StrongScore = 0.75
	}
	return c
}

// Retriever scores chunks of one index against an expanded query.
// Stateless; safe for concurrent use.
type Retriever struct {
	cfg RetrieverConfig
}

func NewRetriever(cfg RetrieverConfig) *Retriever {
	return &Retriever{cfg: cfg.withDefaults()}
}

// Retrieve scores every chunk, filters by minScore, keeps topK, then
// stitches same-section neighbors of a strong, heading-matched or
// exact-matched top chunk into the context budget. The context is
// assembled in document order regardless of score order.
func (r *Retriever) Retrieve(ix *Index, eq *domain.ExpandedQuery, topK int, minScore float64, maxContextChars int) (*domain.RetrievalResult, error) {
	if ix == nil || len(ix.Chunks) == 0 {
		return nil, domain.WrapError(domain.ErrIndexNotBuilt, "knowledge.Retrieve",
			fmt.Errorf("no chunks indexed"))
	}
	if topK <= 0 {
		topK = 4
	}
	if maxContextChars <= 0 {
		maxContextChars = 1400
	}

	scored := r.scoreAll(ix, eq)

	// score descending, document order on ties
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].TotalScore != scored[j].TotalScore {
			return scored[i].TotalScore > scored[j].TotalScore
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})

	filtered := dedupAndFilter(scored, minScore, topK)

	result := &domain.RetrievalResult{
		Chunks:             filtered,
		ContextCharsBudget: maxContextChars,
		Method:             "bm25+overlap+bonuses",
	}

	selected := make(map[int]bool, len(filtered))
	for _, sc := range filtered {
		selected[sc.ChunkID] = true
	}

	// A strong total score, a heading match or an exact substring match
	// each qualify the top chunk for neighbor stitching.
	if len(filtered) > 0 &&
		(filtered[0].TotalScore >= r.cfg.StrongScore ||
			filtered[0].HeadingBonus > 0 ||
			filtered[0].ExactBonus > 0) {
		result.StitchingAdded = r.stitch(ix, filtered[0], selected, maxContextChars)
	}

	result.ContextText, result.ContextCharsUsed = assembleContext(ix, selected, maxContextChars)
	return result, nil
}

// scoreAll computes the additive score for every chunk. BM25 is
// normalized to [0,1] over the candidate set so the components stay
// comparable.
func (r *Retriever) scoreAll(ix *Index, eq *domain.ExpandedQuery) []domain.ScoredChunk {
	raw := make([]float64, len(ix.Chunks))
	maxRaw := 0.0
	for i := range ix.Chunks {
		raw[i] = r.bm25(ix, i, eq.Terms)
		if raw[i] > maxRaw {
			maxRaw = raw[i]
		}
	}

	queryTokenCount := len(eq.Terms)
	scored := make([]domain.ScoredChunk, 0, len(ix.Chunks))
	for i, ch := range ix.Chunks {
		sc := domain.ScoredChunk{
			ChunkID:     ch.ID,
			SectionID:   ch.SectionID,
			ArticleID:   ch.ArticleID,
			SourceLabel: ch.SourceLabel,
			Text:        ch.Text,
		}
		if maxRaw > 0 {
			sc.BM25Norm = raw[i] / maxRaw
		}
		if queryTokenCount > 0 {
			hits := 0
			for _, t := range eq.Terms {
				if ix.TokenSets[i][t] || (strings.Contains(t, " ") && strings.Contains(ix.NormalizedTexts[i], t)) {
					hits++
				}
			}
			sc.OverlapNorm = float64(hits) / float64(queryTokenCount)
		}
		if eq.Normalized != "" && strings.Contains(ix.NormalizedTexts[i], eq.Normalized) {
			sc.ExactBonus = r.cfg.ExactBonus
		}
		if eq.HeadingChunks[ch.ID] {
			sc.HeadingBonus = r.cfg.HeadingBonus
		}
		if eq.FuzzyChunks[ch.ID] {
			sc.FuzzyBonus = r.cfg.FuzzyBonus
		}
		sc.TotalScore = sc.BM25Norm + sc.OverlapNorm + sc.ExactBonus + sc.HeadingBonus + sc.FuzzyBonus
		scored = append(scored, sc)
	}
	return scored
}

func (r *Retriever) bm25(ix *Index, chunk int, terms []string) float64 {
	tf := ix.TermFreqs[chunk]
	dl := float64(len(ix.TokenLists[chunk]))
	score := 0.0
	for _, term := range terms {
		// multiword expansion terms contribute through their tokens
		for _, tok := range strings.Fields(term) {
			f := float64(tf[tok])
			if f == 0 {
				continue
			}
			idf := ix.IDF(tok)
			denom := f + r.cfg.BM25K1*(1-r.cfg.BM25B+r.cfg.BM25B*dl/ix.AvgChunkLen)
			score += idf * (f * (r.cfg.BM25K1 + 1)) / denom
		}
	}
	return score
}

// dedupAndFilter drops sub-threshold chunks, deduplicates by chunk id
// and by section/article identity, and caps at topK.
func dedupAndFilter(scored []domain.ScoredChunk, minScore float64, topK int) []domain.ScoredChunk {
	var out []domain.ScoredChunk
	seenChunk := make(map[int]bool)
	seenSection := make(map[string]bool)
	for _, sc := range scored {
		if sc.TotalScore < minScore || sc.TotalScore <= 0 {
			continue
		}
		if seenChunk[sc.ChunkID] {
			continue
		}
		secKey := sectionKey(sc)
		if secKey != "" && seenSection[secKey] {
			continue
		}
		seenChunk[sc.ChunkID] = true
		if secKey != "" {
			seenSection[secKey] = true
		}
		out = append(out, sc)
		if len(out) == topK {
			break
		}
	}
	return out
}

func sectionKey(sc domain.ScoredChunk) string {
	if sc.ArticleID != "" {
		return "a:" + sc.ArticleID
	}
	if sc.SectionID != "" {
		return "s:" + sc.SectionID
	}
	return ""
}

// stitch adds document-order neighbors of the top chunk from the same
// section while the context budget allows. Returns the number added.
func (r *Retriever) stitch(ix *Index, top domain.ScoredChunk, selected map[int]bool, budget int) int {
	used := 0
	for id := range selected {
		used += len(ix.Chunks[id].Text) + len(ix.Chunks[id].SourceLabel) + 4
	}
	added := 0
	for _, delta := range []int{-1, 1, -2, 2} {
		id := top.ChunkID + delta
		if id < 0 || id >= len(ix.Chunks) || selected[id] {
			continue
		}
		neigh := ix.Chunks[id]
		if neigh.SectionID != ix.Chunks[top.ChunkID].SectionID ||
			neigh.ArticleID != ix.Chunks[top.ChunkID].ArticleID {
			continue
		}
		cost := len(neigh.Text) + len(neigh.SourceLabel) + 4
		if used+cost > budget {
			continue
		}
		selected[id] = true
		used += cost
		added++
	}
	return added
}

// assembleContext renders selected chunks in document order, trimming
// the final chunk if the budget would otherwise be exceeded.
func assembleContext(ix *Index, selected map[int]bool, budget int) (string, int) {
	ids := make([]int, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		ch := ix.Chunks[id]
		entry := "[" + ch.SourceLabel + "]\n" + ch.Text
		if b.Len() > 0 {
			entry = "\n\n" + entry
		}
		if b.Len()+len(entry) > budget {
			room := budget - b.Len()
			if room > len(ch.SourceLabel)+40 {
				// never cut inside a multi-byte rune
				for room > 0 && !utf8.RuneStart(entry[room]) {
					room--
				}
				b.WriteString(entry[:room])
			}
			break
		}
		b.WriteString(entry)
	}
	return b.String(), b.Len()
}
