package market

import (
	"context"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
)

var _ domrepo.BarSource = (*ArchiveSource)(nil)

// ArchiveSource serves bars previously saved to a BarStore.
type ArchiveSource struct {
	store domrepo.BarStore
}

func NewArchiveSource(store domrepo.BarStore) *ArchiveSource {
	return &ArchiveSource{store: store}
}

func (s *ArchiveSource) Name() string { return "archive" }

func (s *ArchiveSource) FetchDaily(ctx context.Context, ticker, period string) ([]models.Bar, error) {
	return s.store.LoadBars(ctx, ticker, period)
}
