package domain

// ResponseMode controls how the assistant behaves when evidence is weak.
type ResponseMode string

const (
	// ModeStrict refuses with a fixed message when evidence is insufficient.
	ModeStrict ResponseMode = "strict"
	// ModeGeneral may answer from general knowledge, clearly labelled.
	ModeGeneral ResponseMode = "general"
)

// NormalizeResponseMode accepts the aliases the web UI historically sent.
func NormalizeResponseMode(raw string) (ResponseMode, bool) {
	switch raw {
	case "strict", "solo_documento", "document_only":
		return ModeStrict, true
	case "general", "hibrido", "hybrid", "":
		return ModeGeneral, true
	default:
		return "", false
	}
}

// TermOrigin records which expansion stage contributed a query term.
type TermOrigin string

const (
	OriginHeadingMatch TermOrigin = "heading_match"
	OriginFuzzyHeading TermOrigin = "fuzzy_heading"
	OriginVocab        TermOrigin = "vocab"
	OriginCooc         TermOrigin = "cooc"
	OriginIntentRule   TermOrigin = "intent_rule"
)

type AddedTerm struct {
	Term   string     `json:"term"`
	Origin TermOrigin `json:"origin"`
}

// ExpandedQuery is the full output of query expansion. Added terms widen
// retrieval only; the quality gate judges evidence against QueryTerms.
type ExpandedQuery struct {
	Original           string      `json:"original"`
	Normalized         string      `json:"normalized"`
	ExpandedText       string      `json:"expanded_text"`
	ExpandedNormalized string      `json:"-"`
	QueryTerms         []string    `json:"query_terms"`
	Terms              []string    `json:"terms"`
	Added              []AddedTerm `json:"added"`
	IntentTags         []string    `json:"intent_tags,omitempty"`
	AgeValues          []int       `json:"age_values,omitempty"`
	RequiresExactAge   bool        `json:"requires_exact_age,omitempty"`
	HeadingChunks      map[int]bool `json:"-"`
	FuzzyChunks        map[int]bool `json:"-"`
}

// Chunk is one indexed fragment of the active document.
type Chunk struct {
	ID           int    `json:"id"`
	Text         string `json:"text"`
	SectionID    string `json:"section_id,omitempty"`
	ArticleID    string `json:"article_id,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	SourceLabel  string `json:"source_label"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
}

// ScoredChunk carries the additive score breakdown for one candidate.
type ScoredChunk struct {
	ChunkID      int     `json:"chunk_id"`
	SectionID    string  `json:"section_id,omitempty"`
	ArticleID    string  `json:"article_id,omitempty"`
	SourceLabel  string  `json:"source_label"`
	Text         string  `json:"text"`
	BM25Norm     float64 `json:"bm25_norm"`
	OverlapNorm  float64 `json:"overlap_norm"`
	ExactBonus   float64 `json:"exact_bonus"`
	HeadingBonus float64 `json:"heading_bonus"`
	FuzzyBonus   float64 `json:"fuzzy_bonus"`
	TotalScore   float64 `json:"total_score"`
}

// RetrievalResult is the retriever output handed to the evidence gate.
type RetrievalResult struct {
	Chunks             []ScoredChunk `json:"chunks"`
	StitchingAdded     int           `json:"stitching_added_count"`
	ContextText        string        `json:"-"`
	ContextCharsUsed   int           `json:"context_chars_used"`
	ContextCharsBudget int           `json:"context_chars_budget"`
	Method             string        `json:"method"`
}

// DecisionMode is the outcome class of the evidence gate.
type DecisionMode string

const (
	DecisionGrounded          DecisionMode = "grounded"
	DecisionUngroundedGeneral DecisionMode = "ungrounded_general"
	DecisionInternalBlocked   DecisionMode = "ungrounded_internal_blocked"
	DecisionOrgMismatch       DecisionMode = "org_mismatch"
)

// Citation points at the evidence backing a grounded answer.
type Citation struct {
	SourceLabel string  `json:"source_label"`
	Excerpt     string  `json:"excerpt"`
	Score       float64 `json:"score"`
}

// DebugTrace is the fixed-shape decision audit record.
type DebugTrace struct {
	QueryExpanded      string        `json:"query_expanded"`
	AddedTerms         []AddedTerm   `json:"added_terms"`
	IntentTags         []string      `json:"intent_tags,omitempty"`
	Chunks             []ScoredChunk `json:"chunks"`
	TopScore           float64       `json:"top_score"`
	CumulativeScore    float64       `json:"cumulative_score"`
	KeywordHits        int           `json:"keyword_hits"`
	KeywordRequired    int           `json:"keyword_required"`
	MissingAcronyms    []string      `json:"missing_acronyms,omitempty"`
	SufficientEvidence bool          `json:"sufficient_evidence"`
	OrgMismatch        bool          `json:"org_mismatch"`
	PrimaryEntity      string        `json:"primary_entity,omitempty"`
	QueryEntities      []string      `json:"query_entities,omitempty"`
	StitchingAdded     int           `json:"stitching_added_count"`
	ContextCharsUsed   int           `json:"context_chars_used"`
	ContextCharsBudget int           `json:"context_chars_budget"`
	Method             string        `json:"method"`
}

// GroundingDecision is what the gate hands back to the host: how to
// answer, with what context, and why.
type GroundingDecision struct {
	Mode        DecisionMode `json:"mode"`
	UsedContext bool         `json:"used_context"`
	ContextText string       `json:"-"`
	Citations   []Citation   `json:"citations,omitempty"`
	Notice      string       `json:"notice,omitempty"`
	Debug       DebugTrace   `json:"debug"`
}

// AskOptions are per-request knob overrides; zero values fall back to
// runtime settings, then config defaults.
type AskOptions struct {
	TopK            int     `json:"top_k,omitempty"`
	MinScore        float64 `json:"min_score,omitempty"`
	MaxContextChars int     `json:"max_context_chars,omitempty"`
}

type Answer struct {
	Text     string            `json:"text"`
	Decision GroundingDecision `json:"decision"`
}

// RuntimeSettings are the admin-adjustable knobs persisted between runs.
type RuntimeSettings struct {
	Provider        string       `json:"provider,omitempty"`
	DefaultMode     ResponseMode `json:"default_mode,omitempty"`
	TopK            int          `json:"top_k,omitempty"`
	MinScore        float64      `json:"min_score,omitempty"`
	MaxContextChars int          `json:"max_context_chars,omitempty"`
}
