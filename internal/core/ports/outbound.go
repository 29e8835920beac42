package ports

import (
	"context"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetActive(ctx context.Context) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	UpdateIndexStats(ctx context.Context, id string, chars int, truncated bool) error
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// AnswerGenerator phrases the final user-facing answer. GenerateGrounded
// must answer strictly from the supplied context; GenerateGeneral is the
// clearly-labelled general-knowledge path.
type AnswerGenerator interface {
	GenerateGrounded(ctx context.Context, question, contextText string) (string, error)
	GenerateGeneral(ctx context.Context, question string) (string, error)
}

// SettingsStore persists admin-adjustable runtime knobs.
type SettingsStore interface {
	Load(ctx context.Context) (domain.RuntimeSettings, error)
	Save(ctx context.Context, s domain.RuntimeSettings) error
}
