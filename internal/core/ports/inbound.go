package ports

import (
	"context"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

// PolicyUploader is the inbound contract for replacing the active document.
type PolicyUploader interface {
	Upload(ctx context.Context, name, text string) (*domain.Document, error)
}

// PolicyReader is the inbound read model for document metadata/state.
type PolicyReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Status(ctx context.Context) (*domain.Document, error)
}

// PolicyAnswerer is the inbound contract for grounded question answering.
type PolicyAnswerer interface {
	Ask(ctx context.Context, question string, mode domain.ResponseMode, opts domain.AskOptions) (*domain.Answer, error)
}

// IndexRebuilder is the inbound contract for asynchronous index warming.
type IndexRebuilder interface {
	RebuildByID(ctx context.Context, documentID string) error
}
