package knowledge

import (
	"regexp"
	"strings"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

// GateConfig tunes the sufficiency floors and the keyword quality gate.
type GateConfig struct {
	ModerateFloor   float64 // second-chunk floor when the top is strong
	StrongTop       float64 // top-chunk floor for the strong+moderate path
	CumulativeFloor float64
	CumulativeTopN  int
	HighFloor       float64 // single-chunk floor that passes alone
	ManyKeywords    int     // query keyword count that raises the hit requirement
}

func (c GateConfig) withDefaults() GateConfig {
	if c.ModerateFloor <= 0 {
		c.ModerateFloor = 0.55
	}
	if c.StrongTop <= 0 {
		c.StrongTop = 0.75
	}
	if c.CumulativeFloor <= 0 {
		c.CumulativeFloor = 1.20
	}
	if c.CumulativeTopN <= 0 {
		c.CumulativeTopN = 3
	}
	if c.HighFloor <= 0 {
		c.HighFloor = 0.90
	}
	if c.ManyKeywords <= 0 {
		c.ManyKeywords = 6
	}
	return c
}

// fillerWords carry no evidential weight in the keyword gate.
var fillerWords = map[string]bool{
	"politica": true, "politicas": true, "policy": true, "policies": true,
	"empresa": true, "company": true, "compania": true,
	"procedimiento": true, "procedimientos": true, "documento": true,
	"norma": true, "normas": true, "normativa": true, "regla": true,
	"reglas": true, "dice": true, "sobre": true, "acerca": true,
	"respecto": true, "segun": true, "existe": true, "tiene": true,
	"puede": true, "debe": true, "hace": true, "pasa": true,
	"cual": true, "cuales": true, "what": true, "does": true, "say": true,
	"about": true,
}

var (
	reAcronym   = regexp.MustCompile(`\b[A-ZÁÉÍÓÚÑ]{2,6}\b`)
	reAgeInText = regexp.MustCompile(`\d{1,2}\s*años?|\d{1,2}\s*anos?`)
)

// internalPolicyCues mark a question as asking about internal rules, the
// signal that combines with a foreign entity into an org mismatch.
var internalPolicyCues = []string{
	"politica interna", "politicas internas", "codigo de conducta",
	"reglamento interno", "normativa interna", "internal policy",
	"internal policies", "code of conduct", "company policy",
	"nuestra politica", "esta politica", "este codigo",
}

// EvidenceGate turns a retrieval result into a grounding decision.
type EvidenceGate struct {
	cfg      GateConfig
	detector Detector
}

func NewEvidenceGate(cfg GateConfig, detector Detector) *EvidenceGate {
	if detector == nil {
		detector = NewHeuristicDetector()
	}
	return &EvidenceGate{cfg: cfg.withDefaults(), detector: detector}
}

// Decide classifies the answer path. Precedence: org mismatch first,
// then sufficiency plus keyword quality, then the mode split for
// insufficient evidence. Insufficiency is an outcome, never an error.
func (g *EvidenceGate) Decide(ix *Index, eq *domain.ExpandedQuery, res *domain.RetrievalResult, mode domain.ResponseMode) domain.GroundingDecision {
	debug := domain.DebugTrace{
		QueryExpanded:      eq.ExpandedText,
		AddedTerms:         eq.Added,
		IntentTags:         eq.IntentTags,
		Chunks:             res.Chunks,
		StitchingAdded:     res.StitchingAdded,
		ContextCharsUsed:   res.ContextCharsUsed,
		ContextCharsBudget: res.ContextCharsBudget,
		Method:             res.Method,
		PrimaryEntity:      ix.PrimaryEntity,
	}

	sufficient := g.sufficient(res.Chunks, &debug)
	if sufficient {
		sufficient = g.keywordQuality(eq, res, &debug)
	}
	debug.SufficientEvidence = sufficient

	if mismatch := g.orgMismatch(eq, &debug); mismatch {
		debug.OrgMismatch = true
		dec := domain.GroundingDecision{
			Mode:   domain.DecisionOrgMismatch,
			Notice: noticeOrgMismatch(ix.DocumentName, ix.PrimaryEntity),
			Debug:  debug,
		}
		// General mode still surfaces what the loaded document says for
		// its own organization when the evidence was sufficient.
		if mode == domain.ModeGeneral && sufficient && len(res.Chunks) > 0 {
			dec.Citations = citations(res.Chunks[:1])
		}
		return dec
	}

	if sufficient {
		dec := domain.GroundingDecision{
			Mode:        domain.DecisionGrounded,
			UsedContext: true,
			ContextText: res.ContextText,
			Citations:   citations(res.Chunks),
			Debug:       debug,
		}
		// Exact-figure questions with no figure in evidence keep the
		// context but drop citations, so the answer cannot imply the
		// document states a number it does not contain.
		if eq.RequiresExactAge && !reAgeInText.MatchString(res.ContextText) {
			dec.Citations = nil
			dec.Notice = "El documento no indica una cifra exacta para esta pregunta."
		}
		return dec
	}

	// Strict mode always answers insufficiency with the fixed refusal;
	// the fragment-request phrasing is a general-mode courtesy only.
	if mode == domain.ModeStrict {
		return domain.GroundingDecision{
			Mode:  domain.DecisionInternalBlocked,
			Debug: debug,
		}
	}

	if g.internalPolicyQuestion(eq.Normalized) {
		return domain.GroundingDecision{
			Mode:   domain.DecisionInternalBlocked,
			Notice: "El documento cargado no contiene esa seccion. Por favor comparta el fragmento correspondiente de la politica interna.",
			Debug:  debug,
		}
	}

	return domain.GroundingDecision{
		Mode:   domain.DecisionUngroundedGeneral,
		Notice: "El documento cargado no menciona este tema.",
		Debug:  debug,
	}
}

// sufficient applies the three-path floor test.
func (g *EvidenceGate) sufficient(chunks []domain.ScoredChunk, debug *domain.DebugTrace) bool {
	if len(chunks) == 0 {
		return false
	}
	debug.TopScore = chunks[0].TotalScore
	cumulative := 0.0
	for i := 0; i < len(chunks) && i < g.cfg.CumulativeTopN; i++ {
		cumulative += chunks[i].TotalScore
	}
	debug.CumulativeScore = cumulative

	if chunks[0].TotalScore >= g.cfg.HighFloor {
		return true
	}
	if cumulative >= g.cfg.CumulativeFloor {
		return true
	}
	if len(chunks) >= 2 && chunks[0].TotalScore >= g.cfg.StrongTop && chunks[1].TotalScore >= g.cfg.ModerateFloor {
		return true
	}
	return false
}

// keywordQuality requires the evidence to literally contain query
// keywords, with acronyms checked verbatim. Expansion terms do not count
// toward the requirement; they widened retrieval, not the question.
func (g *EvidenceGate) keywordQuality(eq *domain.ExpandedQuery, res *domain.RetrievalResult, debug *domain.DebugTrace) bool {
	contextNorm := NormalizeForMatch(res.ContextText)
	if contextNorm == "" {
		var b strings.Builder
		for _, sc := range res.Chunks {
			b.WriteString(NormalizeForMatch(sc.Text))
			b.WriteString(" ")
		}
		contextNorm = b.String()
	}

	var keywords []string
	for _, t := range eq.QueryTerms {
		if !fillerWords[t] {
			keywords = append(keywords, t)
		}
	}
	if len(keywords) == 0 {
		return true
	}

	hits := 0
	for _, kw := range keywords {
		if containsWord(contextNorm, kw) {
			hits++
		}
	}
	required := 1
	if len(keywords) >= g.cfg.ManyKeywords {
		required = 2
	}
	debug.KeywordHits = hits
	debug.KeywordRequired = required
	if hits < required {
		return false
	}

	// acronyms must appear verbatim; a lowercase occurrence of the same
	// letters is a different word
	for _, acr := range reAcronym.FindAllString(eq.Original, -1) {
		if !strings.Contains(res.ContextText, acr) {
			debug.MissingAcronyms = append(debug.MissingAcronyms, acr)
		}
	}
	return len(debug.MissingAcronyms) == 0
}

// orgMismatch fires when the query names an entity other than the
// document's primary one AND asks about internal policy.
func (g *EvidenceGate) orgMismatch(eq *domain.ExpandedQuery, debug *domain.DebugTrace) bool {
	if debug.PrimaryEntity == "" {
		return false
	}
	entities := g.detector.ExtractCandidateEntities(eq.Original)
	debug.QueryEntities = entities
	if len(entities) == 0 {
		return false
	}
	foreign := false
	for _, ent := range entities {
		if ent != debug.PrimaryEntity && !strings.Contains(debug.PrimaryEntity, ent) && !strings.Contains(ent, debug.PrimaryEntity) {
			foreign = true
			break
		}
	}
	return foreign && g.internalPolicyQuestion(eq.Normalized)
}

func (g *EvidenceGate) internalPolicyQuestion(normalizedQuery string) bool {
	for _, cue := range internalPolicyCues {
		if strings.Contains(normalizedQuery, cue) {
			return true
		}
	}
	return false
}

func citations(chunks []domain.ScoredChunk) []domain.Citation {
	out := make([]domain.Citation, 0, len(chunks))
	for _, sc := range chunks {
		excerpt := sc.Text
		if len(excerpt) > 240 {
			excerpt = excerpt[:240]
			if idx := strings.LastIndexByte(excerpt, ' '); idx > 0 {
				excerpt = excerpt[:idx]
			}
			excerpt += "…"
		}
		out = append(out, domain.Citation{
			SourceLabel: sc.SourceLabel,
			Excerpt:     excerpt,
			Score:       sc.TotalScore,
		})
	}
	return out
}

func noticeOrgMismatch(documentName, primaryEntity string) string {
	if primaryEntity != "" {
		return "El documento cargado corresponde a " + primaryEntity + "; no puedo responder por las politicas internas de otra organizacion."
	}
	return "El documento cargado (" + documentName + ") no corresponde a la organizacion mencionada en la pregunta."
}
