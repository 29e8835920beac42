package knowledge

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

func TestBuildIndexEmptyDocument(t *testing.T) {
	_, err := BuildIndex(&domain.Document{Name: "blank", Text: "   \n\t "}, IndexerConfig{})
	if !domain.IsKind(err, domain.ErrEmptyDocument) {
		t.Fatalf("BuildIndex() error = %v, want ErrEmptyDocument", err)
	}
}

func TestBuildIndexArticleChunks(t *testing.T) {
	ix := buildConductIndex(t)
	if len(ix.Chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	byArticle := make(map[string]domain.Chunk)
	for _, ch := range ix.Chunks {
		if ch.ArticleID != "" {
			byArticle[ch.ArticleID] = ch
		}
	}
	for _, id := range []string{"1", "7", "9", "12", "15"} {
		ch, ok := byArticle[id]
		if !ok {
			t.Fatalf("missing chunk for article %s", id)
		}
		if ch.SourceLabel != "Articulo "+id {
			t.Fatalf("article %s label = %q", id, ch.SourceLabel)
		}
	}
	// the fixture hard-wraps the phrase, so compare whitespace-collapsed
	if !strings.Contains(NormalizeForMatch(byArticle["9"].Text), "trabajo infantil") {
		t.Fatalf("article 9 text = %q", byArticle["9"].Text)
	}
}

func TestBuildIndexHeadingAfterBlankLine(t *testing.T) {
	text := "REGLAMENTO DE JORNADA\n\nTexto introductorio del reglamento.\n\n" +
		"  Artículo 3. Jornada laboral. La jornada ordinaria es de cuarenta horas semanales\n" +
		"distribuidas de lunes a viernes.\n\n" +
		"Artículo 4. Horas extraordinarias. Las horas extraordinarias se compensan con descanso.\n"
	doc := &domain.Document{Name: "jornada", Text: text, UpdatedAt: time.Now()}
	ix, err := BuildIndex(doc, IndexerConfig{})
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	byArticle := make(map[string]domain.Chunk)
	for _, ch := range ix.Chunks {
		if ch.ArticleID != "" {
			byArticle[ch.ArticleID] = ch
		}
	}
	ch3, ok := byArticle["3"]
	if !ok {
		t.Fatalf("missing chunk for the indented article after a blank line: %+v", ix.Chunks)
	}
	if ch3.SectionTitle != "Jornada laboral" {
		t.Fatalf("article 3 title = %q, want %q", ch3.SectionTitle, "Jornada laboral")
	}
	if _, ok := byArticle["4"]; !ok {
		t.Fatalf("missing chunk for article 4")
	}
}

func TestBuildIndexSectionTitles(t *testing.T) {
	ix := buildConductIndex(t)
	if _, ok := ix.SectionTitles["trabajo infantil y esclavitud moderna"]; !ok {
		t.Fatalf("section titles missing article 9 heading: %v", ix.SectionTitles)
	}
}

func TestBuildIndexDeterministic(t *testing.T) {
	a := buildConductIndex(t)
	b := buildConductIndex(t)
	if len(a.Chunks) != len(b.Chunks) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a.Chunks), len(b.Chunks))
	}
	for i := range a.Chunks {
		if a.Chunks[i].Text != b.Chunks[i].Text || a.Chunks[i].SourceLabel != b.Chunks[i].SourceLabel {
			t.Fatalf("chunk %d differs between builds", i)
		}
	}
	if len(a.Vocabulary) != len(b.Vocabulary) {
		t.Fatalf("vocabulary sizes differ: %d vs %d", len(a.Vocabulary), len(b.Vocabulary))
	}
	for tok, neigh := range a.Cooccurrence {
		other := b.Cooccurrence[tok]
		if len(neigh) != len(other) {
			t.Fatalf("cooc list for %q differs in length", tok)
		}
		for i := range neigh {
			if neigh[i] != other[i] {
				t.Fatalf("cooc order for %q differs at %d: %q vs %q", tok, i, neigh[i], other[i])
			}
		}
	}
}

func TestBuildIndexSizeSplitRespectsCeiling(t *testing.T) {
	var b strings.Builder
	b.WriteString("POLITICA DE CONFIDENCIALIDAD\n\n")
	for i := 0; i < 60; i++ {
		b.WriteString("La informacion confidencial de los clientes se protege mediante controles de acceso estrictos y revisiones periodicas. ")
	}
	doc := &domain.Document{Name: "larga", Text: b.String(), UpdatedAt: time.Now()}
	ix, err := BuildIndex(doc, IndexerConfig{})
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if len(ix.Chunks) < 2 {
		t.Fatalf("expected the long section to split, got %d chunks", len(ix.Chunks))
	}
	cfg := ix.Config()
	// overlap tails may extend a chunk past the ceiling by at most one bridge
	for i, ch := range ix.Chunks {
		if len(ch.Text) > cfg.ChunkMaxChars+cfg.ChunkOverlapChars+1 {
			t.Fatalf("chunk %d exceeds ceiling: %d chars", i, len(ch.Text))
		}
	}
}

func TestBuildIndexTruncatesOversizedDocument(t *testing.T) {
	var b strings.Builder
	for b.Len() < 130000 {
		b.WriteString("Parrafo de relleno con contenido repetido para superar el limite del documento.\n\n")
	}
	doc := &domain.Document{Name: "enorme", Text: b.String(), UpdatedAt: time.Now()}
	ix, err := BuildIndex(doc, IndexerConfig{})
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if !ix.Truncated {
		t.Fatalf("expected truncated flag")
	}
	if ix.DocumentChars > 120000 {
		t.Fatalf("indexed chars = %d, want <= 120000", ix.DocumentChars)
	}
	if ix.OriginalChars != len(doc.Text) {
		t.Fatalf("original chars = %d, want %d", ix.OriginalChars, len(doc.Text))
	}
}

func TestIDFNeverNegative(t *testing.T) {
	ix := buildConductIndex(t)
	for tok := range ix.DocFreq {
		if ix.IDF(tok) < 0 {
			t.Fatalf("negative idf for %q", tok)
		}
	}
}
