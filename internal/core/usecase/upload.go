package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/knowledge"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
)

type UploadPolicyUseCase struct {
	repo       ports.DocumentRepository
	queue      ports.MessageQueue
	cache      *knowledge.IndexCache
	indexerCfg knowledge.IndexerConfig
}

func NewUploadPolicyUseCase(
	repo ports.DocumentRepository,
	queue ports.MessageQueue,
	cache *knowledge.IndexCache,
	indexerCfg knowledge.IndexerConfig,
) *UploadPolicyUseCase {
	return &UploadPolicyUseCase{
		repo:       repo,
		queue:      queue,
		cache:      cache,
		indexerCfg: indexerCfg,
	}
}

// Upload replaces the active policy document. The text is capped to the
// document limit before persistence, so the stored record and every
// index built from it agree on content and truncation.
func (uc *UploadPolicyUseCase) Upload(ctx context.Context, name, text string) (*domain.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrEmptyDocument, "upload document", errors.New("blank document body"))
	}
	if strings.TrimSpace(name) == "" {
		name = "documento"
	}

	originalChars := len(text)
	capped, truncated := knowledge.CapText(text, uc.indexerCfg.MaxDocumentChars)
	now := time.Now().UTC()

	doc := &domain.Document{
		ID:            uuid.NewString(),
		Name:          name,
		Text:          capped,
		Fingerprint:   domain.ContentFingerprint(capped, now),
		Chars:         len(capped),
		OriginalChars: originalChars,
		Truncated:     truncated,
		Status:        domain.StatusUploaded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	// warm this process immediately; the worker handles status and
	// metrics, queries never wait for it
	if uc.cache != nil {
		_, _ = uc.cache.GetOrBuild(doc.Fingerprint, func() (*knowledge.Index, error) {
			return knowledge.BuildIndex(doc, uc.indexerCfg)
		})
	}

	return doc, nil
}
