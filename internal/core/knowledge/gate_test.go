package knowledge

import (
	"strings"
	"testing"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

func TestDecideGroundedDirectQuestion(t *testing.T) {
	dec := runPipeline(t, "¿Cuantos dias de vacaciones tienen los empleados?", domain.ModeGeneral)
	if dec.Mode != domain.DecisionGrounded {
		t.Fatalf("mode = %q, want grounded (debug: %+v)", dec.Mode, dec.Debug)
	}
	if !dec.UsedContext || dec.ContextText == "" {
		t.Fatalf("grounded decision without context")
	}
	if len(dec.Citations) == 0 {
		t.Fatalf("grounded decision without citations")
	}
	found := false
	for _, c := range dec.Citations {
		if c.SourceLabel == "Articulo 7" {
			found = true
		}
	}
	if !found {
		t.Fatalf("citations missing article 7: %+v", dec.Citations)
	}
}

func TestDecideMinorLaborViaIntentExpansion(t *testing.T) {
	dec := runPipeline(t, "¿Puede trabajar un niño de 12 años en nuestras operaciones?", domain.ModeStrict)
	if dec.Mode != domain.DecisionGrounded {
		t.Fatalf("mode = %q, want grounded (debug: %+v)", dec.Mode, dec.Debug)
	}
	hasIntentTerm := false
	for _, a := range dec.Debug.AddedTerms {
		if a.Origin == domain.OriginIntentRule {
			hasIntentTerm = true
		}
	}
	if !hasIntentTerm {
		t.Fatalf("expected intent-rule expansion in debug trace: %+v", dec.Debug.AddedTerms)
	}
	if !strings.Contains(NormalizeForMatch(dec.ContextText), "trabajo infantil") {
		t.Fatalf("context does not cover child labor: %q", dec.ContextText)
	}
}

func TestDecideOffTopicGeneralMode(t *testing.T) {
	dec := runPipeline(t, "¿Cual es la capital de Francia?", domain.ModeGeneral)
	if dec.Mode != domain.DecisionUngroundedGeneral {
		t.Fatalf("mode = %q, want ungrounded_general (debug: %+v)", dec.Mode, dec.Debug)
	}
	if dec.UsedContext || dec.ContextText != "" {
		t.Fatalf("off-topic answer must not carry document context")
	}
	if dec.Notice == "" {
		t.Fatalf("expected a not-in-document notice")
	}
}

func TestDecideOffTopicStrictMode(t *testing.T) {
	dec := runPipeline(t, "¿Cual es la capital de Francia?", domain.ModeStrict)
	if dec.Mode != domain.DecisionInternalBlocked {
		t.Fatalf("mode = %q, want ungrounded_internal_blocked", dec.Mode)
	}
	if dec.UsedContext {
		t.Fatalf("strict refusal must not use context")
	}
}

func TestDecideOrgMismatchWinsOverSufficiency(t *testing.T) {
	dec := runPipeline(t, "¿Que dice el codigo de conducta de Acme sobre las vacaciones?", domain.ModeGeneral)
	if dec.Mode != domain.DecisionOrgMismatch {
		t.Fatalf("mode = %q, want org_mismatch (debug: %+v)", dec.Mode, dec.Debug)
	}
	if !dec.Debug.OrgMismatch {
		t.Fatalf("debug trace missing mismatch flag")
	}
	if dec.Debug.PrimaryEntity != "securion" {
		t.Fatalf("primary entity = %q", dec.Debug.PrimaryEntity)
	}
	if dec.UsedContext {
		t.Fatalf("mismatch must not ground on the loaded document")
	}
}

func TestDecideStrictModeInternalPolicyRefusal(t *testing.T) {
	dec := runPipeline(t, "¿Cual es la politica interna sobre criptomonedas y apuestas?", domain.ModeStrict)
	if dec.Mode != domain.DecisionInternalBlocked {
		t.Fatalf("mode = %q, want ungrounded_internal_blocked (debug: %+v)", dec.Mode, dec.Debug)
	}
	// strict mode keeps the fixed refusal; the fragment-request notice
	// belongs to general mode only
	if dec.Notice != "" {
		t.Fatalf("strict refusal must carry no notice, got %q", dec.Notice)
	}
}

func TestDecideOrgMismatchCitesOwnDocument(t *testing.T) {
	dec := runPipeline(t, "¿Que dice el codigo de conducta de Acme sobre las vacaciones?", domain.ModeGeneral)
	if dec.Mode != domain.DecisionOrgMismatch {
		t.Fatalf("mode = %q, want org_mismatch (debug: %+v)", dec.Mode, dec.Debug)
	}
	if !dec.Debug.SufficientEvidence {
		t.Fatalf("expected sufficient on-topic evidence (debug: %+v)", dec.Debug)
	}
	if len(dec.Citations) != 1 || dec.Citations[0].Excerpt == "" {
		t.Fatalf("general-mode mismatch with evidence must cite the loaded document once: %+v", dec.Citations)
	}
	if dec.UsedContext {
		t.Fatalf("mismatch must not ground on the loaded document")
	}
}

func TestDecideMissingAcronymBlocksGrounding(t *testing.T) {
	dec := runPipeline(t, "¿Cumple la empresa con la norma ISO de seguridad y salud?", domain.ModeGeneral)
	if dec.Mode == domain.DecisionGrounded {
		t.Fatalf("grounded despite missing acronym (debug: %+v)", dec.Debug)
	}
	foundISO := false
	for _, acr := range dec.Debug.MissingAcronyms {
		if acr == "ISO" {
			foundISO = true
		}
	}
	if !foundISO {
		t.Fatalf("missing acronyms = %v, want ISO", dec.Debug.MissingAcronyms)
	}
}

func TestDecideExactAgeSuppressesCitations(t *testing.T) {
	dec := runPipeline(t, "¿Cual es la edad minima exacta para trabajar?", domain.ModeStrict)
	if dec.Mode != domain.DecisionGrounded {
		t.Fatalf("mode = %q, want grounded (debug: %+v)", dec.Mode, dec.Debug)
	}
	if len(dec.Citations) != 0 {
		t.Fatalf("citations must be suppressed when the document states no figure: %+v", dec.Citations)
	}
	if dec.Notice == "" {
		t.Fatalf("expected a no-exact-figure notice")
	}
	if len(dec.Debug.Chunks) == 0 {
		t.Fatalf("debug trace must keep the evidence set")
	}
}

func TestDecideInternalPolicyQuestionWithoutEvidence(t *testing.T) {
	dec := runPipeline(t, "¿Que dice el reglamento interno sobre teletrabajo y dietas de viaje?", domain.ModeGeneral)
	if dec.Mode != domain.DecisionInternalBlocked {
		t.Fatalf("mode = %q, want ungrounded_internal_blocked (debug: %+v)", dec.Mode, dec.Debug)
	}
	if dec.Notice == "" {
		t.Fatalf("expected a request for the missing fragment")
	}
}
