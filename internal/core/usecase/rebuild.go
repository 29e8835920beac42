package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/knowledge"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
)

type RebuildIndexUseCase struct {
	repo       ports.DocumentRepository
	cache      *knowledge.IndexCache
	indexerCfg knowledge.IndexerConfig
}

func NewRebuildIndexUseCase(
	repo ports.DocumentRepository,
	cache *knowledge.IndexCache,
	indexerCfg knowledge.IndexerConfig,
) *RebuildIndexUseCase {
	return &RebuildIndexUseCase{
		repo:       repo,
		cache:      cache,
		indexerCfg: indexerCfg,
	}
}

// RebuildByID warms the index for an uploaded document and records the
// status transition. Idempotent: rebuilding an already-indexed document
// reuses the cached snapshot.
func (uc *RebuildIndexUseCase) RebuildByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusIndexing, ""); err != nil {
		return fmt.Errorf("set status=indexing: %w", err)
	}

	ix, err := uc.cache.GetOrBuild(doc.Fingerprint, func() (*knowledge.Index, error) {
		return knowledge.BuildIndex(doc, uc.indexerCfg)
	})
	if err != nil {
		if failErr := uc.markStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateIndexStats(ctx, documentID, ix.DocumentChars, ix.Truncated); err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *RebuildIndexUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}
