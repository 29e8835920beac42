package knowledge

import (
	"regexp"
	"strings"
)

// Detector is the pluggable organization-detection strategy used by the
// evidence gate. The default is the heuristic below; callers may swap in
// anything smarter.
type Detector interface {
	InferPrimaryEntity(documentName, text string) string
	ExtractCandidateEntities(query string) []string
}

// HeuristicDetector scans for capitalized org-like names near policy
// vocabulary. Good enough for single-company policy documents; not an
// NER system.
type HeuristicDetector struct{}

func NewHeuristicDetector() *HeuristicDetector { return &HeuristicDetector{} }

var (
	reEntityCandidate = regexp.MustCompile(`\b([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?|[A-ZÁÉÍÓÚÑ]{2,})\b`)
	reOrgSuffix       = regexp.MustCompile(`(?i)\b(s\.?a\.?|s\.?l\.?|inc\.?|ltd\.?|corp\.?|llc|group|grupo)\b`)
)

// orgContextWords mark sentences where a capitalized name likely refers
// to the issuing organization.
var orgContextWords = []string{
	"politica", "policy", "codigo", "code", "empresa", "company",
	"organizacion", "organization", "compania", "normativa",
}

// nonEntityWords are capitalized words that never name an organization:
// document structure words plus sentence-initial question words.
var nonEntityWords = map[string]bool{
	"articulo": true, "capitulo": true, "seccion": true, "section": true,
	"chapter": true, "el": true, "la": true, "los": true, "las": true,
	"este": true, "esta": true, "todo": true, "toda": true,
	"codigo": true, "politica": true, "policy": true, "code": true,
	"conducta": true, "conduct": true, "etica": true,
	"que": true, "cual": true, "cuales": true, "como": true,
	"cuando": true, "donde": true, "quien": true, "cuanto": true,
	"cuantos": true, "cuantas": true, "puede": true, "pueden": true,
	"existe": true, "tiene": true, "dice": true, "hay": true,
	"what": true, "which": true, "how": true, "who": true, "when": true,
	"where": true, "does": true, "can": true, "is": true, "are": true,
}

func (d *HeuristicDetector) InferPrimaryEntity(documentName, text string) string {
	return inferPrimaryEntity(documentName, text)
}

func inferPrimaryEntity(documentName, text string) string {
	counts := make(map[string]int)
	order := make(map[string]int)
	next := 0

	consider := func(window string, weight int) {
		for _, m := range reEntityCandidate.FindAllString(window, -1) {
			key := NormalizeForMatch(m)
			if nonEntityWords[key] || len(key) < 3 {
				continue
			}
			if _, seen := order[key]; !seen {
				order[key] = next
				next++
			}
			counts[key] += weight
		}
	}

	consider(documentName, 3)
	head := text
	if len(head) > 4000 {
		head = head[:4000]
	}
	for _, line := range strings.Split(head, "\n") {
		lower := NormalizeForMatch(line)
		weight := 1
		for _, w := range orgContextWords {
			if strings.Contains(lower, w) {
				weight = 2
				break
			}
		}
		if reOrgSuffix.MatchString(line) {
			weight += 2
		}
		consider(line, weight)
	}

	best, bestCount, bestOrder := "", 0, 0
	for key, c := range counts {
		if c > bestCount || (c == bestCount && order[key] < bestOrder) {
			best, bestCount, bestOrder = key, c, order[key]
		}
	}
	if bestCount < 2 {
		return ""
	}
	return best
}

func (d *HeuristicDetector) ExtractCandidateEntities(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range reEntityCandidate.FindAllString(query, -1) {
		key := NormalizeForMatch(m)
		if nonEntityWords[key] || len(key) < 3 || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}
