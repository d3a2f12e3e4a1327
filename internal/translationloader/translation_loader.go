package translationloader

import (
	"context"
	"fmt"
	"time"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// TranslationLoader batches per-request translation lookups (source rows for
// materialized copies, originals behind archived versions) into single
// GetByIDs calls.
type TranslationLoader struct {
	Loader *dataloader.Loader
}

func NewTranslationLoader(repo repository.TranslationRepository) *TranslationLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return []*dataloader.Result{{Error: fmt.Errorf("invalid UUID: %w", err)}}
			}
			ids[i] = id
		}

		rows, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		rowMap := make(map[uuid.UUID]domain.Translation)
		for _, row := range rows {
			rowMap[row.ID] = row
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if row, ok := rowMap[id]; ok {
				results[i] = &dataloader.Result{Data: row}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &TranslationLoader{Loader: loader}
}

// Load fetches one translation through the batcher.
func (l *TranslationLoader) Load(ctx context.Context, id uuid.UUID) (domain.Translation, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	data, err := thunk()
	if err != nil {
		return domain.Translation{}, err
	}
	row, ok := data.(domain.Translation)
	if !ok {
		return domain.Translation{}, domain.ErrNotFound
	}
	return row, nil
}
