package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

type fakeRepo struct {
	docs          map[string]*domain.Document
	active        *domain.Document
	statusUpdates []domain.DocumentStatus
	createErr     error
	indexStats    []int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[string]*domain.Document)}
}

func (r *fakeRepo) Create(_ context.Context, doc *domain.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.docs[doc.ID] = doc
	r.active = doc
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake get", errors.New(id))
	}
	return doc, nil
}

func (r *fakeRepo) GetActive(_ context.Context) (*domain.Document, error) {
	if r.active == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fake active", errors.New("none"))
	}
	return r.active, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	r.statusUpdates = append(r.statusUpdates, status)
	if doc, ok := r.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (r *fakeRepo) UpdateIndexStats(_ context.Context, id string, chars int, truncated bool) error {
	r.indexStats = append(r.indexStats, chars)
	if doc, ok := r.docs[id]; ok {
		doc.Chars = chars
		doc.Truncated = truncated
	}
	return nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (q *fakeQueue) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, documentID)
	return nil
}

func (q *fakeQueue) SubscribeDocumentUploaded(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type fakeGenerator struct {
	groundedCalls int
	generalCalls  int
	lastContext   string
	groundedText  string
	generalText   string
	err           error
}

func (g *fakeGenerator) GenerateGrounded(_ context.Context, _ string, contextText string) (string, error) {
	g.groundedCalls++
	g.lastContext = contextText
	if g.err != nil {
		return "", g.err
	}
	if g.groundedText == "" {
		return "respuesta basada en el documento", nil
	}
	return g.groundedText, nil
}

func (g *fakeGenerator) GenerateGeneral(_ context.Context, _ string) (string, error) {
	g.generalCalls++
	if g.err != nil {
		return "", g.err
	}
	if g.generalText == "" {
		return "respuesta general", nil
	}
	return g.generalText, nil
}

type fakeSettings struct {
	settings domain.RuntimeSettings
	err      error
}

func (s *fakeSettings) Load(_ context.Context) (domain.RuntimeSettings, error) {
	return s.settings, s.err
}

func (s *fakeSettings) Save(_ context.Context, v domain.RuntimeSettings) error {
	s.settings = v
	return nil
}

func policyDoc(id, text string) *domain.Document {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:          id,
		Name:        "politica",
		Text:        text,
		Fingerprint: domain.ContentFingerprint(text, now),
		Chars:       len(text),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
