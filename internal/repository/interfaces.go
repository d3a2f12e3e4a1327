package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/query"
)

// DataSetRepository defines the interface for data-set operations.
type DataSetRepository interface {
	// Save creates or updates a data set and diffs its include edge set:
	// requested edges missing from storage are inserted, stored edges absent
	// from the request are deleted. Runs in one transaction.
	Save(ctx context.Context, ds domain.DataSet) (domain.DataSet, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.DataSet, error)
	GetByName(ctx context.Context, name string) (domain.DataSet, error)
	// ListAll returns every data set with its include edges in
	// (created_at, included id) order. Used by the hierarchy resolver and the
	// authorization gate.
	ListAll(ctx context.Context) ([]domain.DataSet, error)
	// List executes a composed query: the composer prepares authorization,
	// filters, ordering and paging on the repository's base select, the
	// repository executes it and returns the page plus the total count.
	List(ctx context.Context, c *query.Composer, p query.Params) ([]domain.DataSet, int, error)
	// Delete removes the data set and cascades its include edges.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TranslationKeyRow is the minimal projection used by the flatten and
// materialization passes: just enough to decide key precedence.
type TranslationKeyRow struct {
	ID  uuid.UUID
	Key domain.TranslationKey
}

// TranslationRepository defines the interface for translation row
// operations. Insert maps unique-key races to domain.ErrConflict; lookups
// that find nothing return domain.ErrNotFound.
type TranslationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Translation, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Translation, error)
	FindCurrentByKey(ctx context.Context, dataSetID uuid.UUID, key domain.TranslationKey) (domain.Translation, error)
	List(ctx context.Context, c *query.Composer, p query.Params) ([]domain.Translation, int, error)

	// ListKeys returns the minimal current-version projection for one data
	// set. With originalsOnly set, materialized rows are excluded.
	ListKeys(ctx context.Context, dataSetID uuid.UUID, originalsOnly bool) ([]TranslationKeyRow, error)
	// ListCurrentByDataSet returns full current-version rows for one data set.
	ListCurrentByDataSet(ctx context.Context, dataSetID uuid.UUID) ([]domain.Translation, error)
	// ListMaterialized returns current rows in the data set that carry
	// materialization provenance.
	ListMaterialized(ctx context.Context, dataSetID uuid.UUID) ([]domain.Translation, error)
	// ListMissingGroupLabels pages current rows without derived grouping
	// labels, bounded by limit, for the reindex sweep.
	ListMissingGroupLabels(ctx context.Context, dataSetID uuid.UUID, limit int) ([]domain.Translation, error)

	Insert(ctx context.Context, t domain.Translation) error
	InsertBatch(ctx context.Context, ts []domain.Translation) error
	Update(ctx context.Context, t domain.Translation) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID) error

	// RunInTx executes fn against a repository bound to a single
	// transaction, committing on nil and rolling back on error.
	RunInTx(ctx context.Context, fn func(TranslationRepository) error) error
}
