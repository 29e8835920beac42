package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/knowledge"
)

func TestUploadEmptyDocument(t *testing.T) {
	uc := NewUploadPolicyUseCase(newFakeRepo(), &fakeQueue{}, knowledge.NewIndexCache(), knowledge.IndexerConfig{})
	_, err := uc.Upload(context.Background(), "politica", "  \n ")
	if !domain.IsKind(err, domain.ErrEmptyDocument) {
		t.Fatalf("Upload() error = %v, want ErrEmptyDocument", err)
	}
}

func TestUploadCreatesAndPublishes(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}
	cache := knowledge.NewIndexCache()
	uc := NewUploadPolicyUseCase(repo, queue, cache, knowledge.IndexerConfig{})

	doc, err := uc.Upload(context.Background(), "politica", askPolicyText)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" || doc.Fingerprint == "" {
		t.Fatalf("document missing id or fingerprint: %+v", doc)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("status = %q, want uploaded", doc.Status)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("published = %v, want [%s]", queue.published, doc.ID)
	}
	ix := cache.Current()
	if ix == nil || ix.Fingerprint != doc.Fingerprint {
		t.Fatalf("upload did not warm the index cache")
	}
}

func TestUploadTruncatesOversizedText(t *testing.T) {
	var b strings.Builder
	for b.Len() < 130000 {
		b.WriteString("Parrafo repetido con suficiente contenido para superar el limite.\n\n")
	}
	uc := NewUploadPolicyUseCase(newFakeRepo(), &fakeQueue{}, knowledge.NewIndexCache(), knowledge.IndexerConfig{})

	doc, err := uc.Upload(context.Background(), "enorme", b.String())
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !doc.Truncated {
		t.Fatalf("expected truncated flag")
	}
	if doc.Chars > 120000 || doc.OriginalChars != b.Len() {
		t.Fatalf("chars = %d, original = %d", doc.Chars, doc.OriginalChars)
	}
}

func TestRebuildMarksStatusTransitions(t *testing.T) {
	repo := newFakeRepo()
	doc := policyDoc("d1", askPolicyText)
	repo.docs[doc.ID] = doc
	repo.active = doc

	uc := NewRebuildIndexUseCase(repo, knowledge.NewIndexCache(), knowledge.IndexerConfig{})
	if err := uc.RebuildByID(context.Background(), "d1"); err != nil {
		t.Fatalf("RebuildByID() error = %v", err)
	}
	want := []domain.DocumentStatus{domain.StatusIndexing, domain.StatusReady}
	if len(repo.statusUpdates) != len(want) {
		t.Fatalf("status updates = %v", repo.statusUpdates)
	}
	for i := range want {
		if repo.statusUpdates[i] != want[i] {
			t.Fatalf("status update %d = %q, want %q", i, repo.statusUpdates[i], want[i])
		}
	}
	if len(repo.indexStats) != 1 {
		t.Fatalf("expected index stats update, got %v", repo.indexStats)
	}
}

func TestRebuildUnknownDocument(t *testing.T) {
	uc := NewRebuildIndexUseCase(newFakeRepo(), knowledge.NewIndexCache(), knowledge.IndexerConfig{})
	err := uc.RebuildByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("RebuildByID() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestRebuildIdempotent(t *testing.T) {
	repo := newFakeRepo()
	doc := policyDoc("d1", askPolicyText)
	repo.docs[doc.ID] = doc
	repo.active = doc
	cache := knowledge.NewIndexCache()

	uc := NewRebuildIndexUseCase(repo, cache, knowledge.IndexerConfig{})
	if err := uc.RebuildByID(context.Background(), "d1"); err != nil {
		t.Fatalf("first RebuildByID() error = %v", err)
	}
	first := cache.Current()
	if err := uc.RebuildByID(context.Background(), "d1"); err != nil {
		t.Fatalf("second RebuildByID() error = %v", err)
	}
	if cache.Current() != first {
		t.Fatalf("rebuild replaced an up-to-date snapshot")
	}
}
