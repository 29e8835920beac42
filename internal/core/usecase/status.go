package usecase

import (
	"context"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
)

// PolicyStatusUseCase exposes the read side: document lookup by id and
// the state of the currently active document.
type PolicyStatusUseCase struct {
	repo ports.DocumentRepository
}

func NewPolicyStatusUseCase(repo ports.DocumentRepository) *PolicyStatusUseCase {
	return &PolicyStatusUseCase{repo: repo}
}

func (uc *PolicyStatusUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.repo.GetByID(ctx, id)
}

// Status returns the most recent document, whatever its indexing state.
func (uc *PolicyStatusUseCase) Status(ctx context.Context) (*domain.Document, error) {
	return uc.repo.GetActive(ctx)
}
