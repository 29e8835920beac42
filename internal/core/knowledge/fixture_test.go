package knowledge

import (
	"testing"
	"time"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

const conductPolicyText = `CÓDIGO DE CONDUCTA DE SECURION S.A.

Este documento establece las normas de comportamiento aplicables a todo el
personal de Securion y de sus filiales.

Artículo 1. Objeto y alcance. El presente código define los principios
éticos que rigen las actividades de Securion. Aplica a empleados,
directivos y proveedores en todas nuestras operaciones.

Artículo 7. Vacaciones y descanso. Los empleados tienen derecho a
veintidós días hábiles de vacaciones pagadas por cada ejercicio completo
de servicio. Las solicitudes de vacaciones se presentan al responsable
directo con un mes de antelación.

Artículo 9. Trabajo infantil y esclavitud moderna. Prohibimos el trabajo
infantil, la esclavitud moderna y el trabajo forzado en todas nuestras
operaciones. No contratamos a menores de dieciocho años y exigimos a
nuestros proveedores el mismo compromiso. La edad mínima de admisión al
empleo respeta en todo caso la legislación local y los derechos humanos.

Artículo 12. Seguridad y salud laboral. Securion garantiza condiciones de
seguridad y salud en el trabajo, con formación obligatoria y equipos de
protección adecuados para cada puesto.

Artículo 15. Confidencialidad. La información de clientes y empleados se
trata como confidencial y solo se comparte con autorización expresa.
`

func conductPolicyDocument() *domain.Document {
	updated := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:          "doc-1",
		Name:        "Codigo de Conducta Securion",
		Text:        conductPolicyText,
		UpdatedAt:   updated,
		Fingerprint: domain.ContentFingerprint(conductPolicyText, updated),
	}
}

func buildConductIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := BuildIndex(conductPolicyDocument(), IndexerConfig{})
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	return ix
}

// runPipeline expands, retrieves and gates one query against the conduct
// policy fixture with default knobs.
func runPipeline(t *testing.T, query string, mode domain.ResponseMode) domain.GroundingDecision {
	t.Helper()
	ix := buildConductIndex(t)
	eq, err := NewQueryExpander(ExpanderConfig{}, nil).Expand(ix, query)
	if err != nil {
		t.Fatalf("Expand(%q) error = %v", query, err)
	}
	res, err := NewRetriever(RetrieverConfig{}).Retrieve(ix, eq, 4, 0.15, 1400)
	if err != nil {
		t.Fatalf("Retrieve(%q) error = %v", query, err)
	}
	return NewEvidenceGate(GateConfig{}, nil).Decide(ix, eq, res, mode)
}
