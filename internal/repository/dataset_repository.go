package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/query"
)

const dataSetColumns = `ds.id, ds.name, ds.description, ds.notes, ds.allowed_identities,
	ds.cultures, ds.secret_key, ds.webhook_urls, ds.created_at, ds.updated_at`

const dataSetBaseSelect = `SELECT ` + dataSetColumns + `, COUNT(*) OVER() AS total_count FROM data_sets ds`

// dataSetRepository implements DataSetRepository on PostgreSQL.
type dataSetRepository struct {
	pool *pgxpool.Pool
}

// NewDataSetRepository creates a data-set repository.
func NewDataSetRepository(pool *pgxpool.Pool) DataSetRepository {
	return &dataSetRepository{pool: pool}
}

func (r *dataSetRepository) Save(ctx context.Context, ds domain.DataSet) (domain.DataSet, error) {
	slug, err := domain.CanonicalizeName(ds.Name)
	if err != nil {
		return domain.DataSet{}, err
	}
	ds.Name = slug

	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
		ds.CreatedAt = time.Now()
	}
	ds.UpdatedAt = time.Now()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.DataSet{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO data_sets (id, name, description, notes, allowed_identities, cultures, secret_key, webhook_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			notes = EXCLUDED.notes,
			allowed_identities = EXCLUDED.allowed_identities,
			cultures = EXCLUDED.cultures,
			secret_key = EXCLUDED.secret_key,
			webhook_urls = EXCLUDED.webhook_urls,
			updated_at = EXCLUDED.updated_at`,
		ds.ID, ds.Name, ds.Description, ds.Notes, ds.AllowedIdentities,
		ds.Cultures, ds.SecretKey, ds.WebhookURLs, ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return domain.DataSet{}, fmt.Errorf("failed to save data set: %w", err)
	}

	if err := r.diffIncludes(ctx, tx, ds); err != nil {
		return domain.DataSet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DataSet{}, fmt.Errorf("failed to commit data set save: %w", err)
	}

	return r.GetByID(ctx, ds.ID)
}

// diffIncludes reconciles stored include edges with the requested set:
// missing edges are inserted, removed ones deleted.
func (r *dataSetRepository) diffIncludes(ctx context.Context, tx pgx.Tx, ds domain.DataSet) error {
	rows, err := tx.Query(ctx,
		`SELECT included_data_set_id FROM data_set_includes WHERE parent_data_set_id = $1`, ds.ID)
	if err != nil {
		return fmt.Errorf("failed to load include edges: %w", err)
	}
	existing := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan include edge: %w", err)
		}
		existing[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read include edges: %w", err)
	}

	requested := make(map[uuid.UUID]struct{}, len(ds.Includes))
	for _, inc := range ds.Includes {
		requested[inc.IncludedDataSetID] = struct{}{}
		if _, ok := existing[inc.IncludedDataSetID]; ok {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO data_set_includes (parent_data_set_id, included_data_set_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (parent_data_set_id, included_data_set_id) DO NOTHING`,
			ds.ID, inc.IncludedDataSetID, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert include edge: %w", err)
		}
	}

	for id := range existing {
		if _, ok := requested[id]; ok {
			continue
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM data_set_includes WHERE parent_data_set_id = $1 AND included_data_set_id = $2`,
			ds.ID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete include edge: %w", err)
		}
	}

	return nil
}

func (r *dataSetRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.DataSet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dataSetColumns+` FROM data_sets ds WHERE ds.id = $1`, id)
	ds, err := scanDataSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DataSet{}, domain.ErrNotFound
		}
		return domain.DataSet{}, fmt.Errorf("failed to get data set: %w", err)
	}

	includes, err := r.loadIncludes(ctx, []uuid.UUID{ds.ID})
	if err != nil {
		return domain.DataSet{}, err
	}
	ds.Includes = includes[ds.ID]
	return ds, nil
}

func (r *dataSetRepository) GetByName(ctx context.Context, name string) (domain.DataSet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dataSetColumns+` FROM data_sets ds WHERE ds.name = $1`, name)
	ds, err := scanDataSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DataSet{}, domain.ErrNotFound
		}
		return domain.DataSet{}, fmt.Errorf("failed to get data set by name: %w", err)
	}

	includes, err := r.loadIncludes(ctx, []uuid.UUID{ds.ID})
	if err != nil {
		return domain.DataSet{}, err
	}
	ds.Includes = includes[ds.ID]
	return ds, nil
}

func (r *dataSetRepository) ListAll(ctx context.Context) ([]domain.DataSet, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+dataSetColumns+` FROM data_sets ds ORDER BY ds.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sets: %w", err)
	}
	defer rows.Close()

	var datasets []domain.DataSet
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		ds, err := scanDataSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data set: %w", err)
		}
		datasets = append(datasets, ds)
		ids = append(ids, ds.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data sets: %w", err)
	}

	includes, err := r.loadIncludes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range datasets {
		datasets[i].Includes = includes[datasets[i].ID]
	}
	return datasets, nil
}

func (r *dataSetRepository) List(ctx context.Context, c *query.Composer, p query.Params) ([]domain.DataSet, int, error) {
	b := query.NewBuilder(dataSetBaseSelect)
	if err := c.Compose(ctx, query.EntityDataSets, b, p); err != nil {
		return nil, 0, fmt.Errorf("failed to compose data set query: %w", err)
	}

	sql, args := b.SQL()
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list data sets: %w", err)
	}
	defer rows.Close()

	var datasets []domain.DataSet
	ids := make([]uuid.UUID, 0)
	totalCount := 0
	for rows.Next() {
		var ds domain.DataSet
		if err := rows.Scan(
			&ds.ID, &ds.Name, &ds.Description, &ds.Notes, &ds.AllowedIdentities,
			&ds.Cultures, &ds.SecretKey, &ds.WebhookURLs, &ds.CreatedAt, &ds.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan data set: %w", err)
		}
		datasets = append(datasets, ds)
		ids = append(ids, ds.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read data sets: %w", err)
	}

	includes, err := r.loadIncludes(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range datasets {
		datasets[i].Includes = includes[datasets[i].ID]
	}
	return datasets, totalCount, nil
}

func (r *dataSetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Include edges cascade via foreign keys.
	tag, err := r.pool.Exec(ctx, `DELETE FROM data_sets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// loadIncludes fetches include edges for the given parents, ordered by
// creation time then included id so hierarchy traversal is deterministic.
func (r *dataSetRepository) loadIncludes(ctx context.Context, parents []uuid.UUID) (map[uuid.UUID][]domain.DataSetInclude, error) {
	result := make(map[uuid.UUID][]domain.DataSetInclude)
	if len(parents) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT parent_data_set_id, included_data_set_id, created_at
		FROM data_set_includes
		WHERE parent_data_set_id = ANY($1)
		ORDER BY created_at, included_data_set_id`, parents)
	if err != nil {
		return nil, fmt.Errorf("failed to load include edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inc domain.DataSetInclude
		if err := rows.Scan(&inc.ParentDataSetID, &inc.IncludedDataSetID, &inc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan include edge: %w", err)
		}
		result[inc.ParentDataSetID] = append(result[inc.ParentDataSetID], inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read include edges: %w", err)
	}
	return result, nil
}

func scanDataSet(row pgx.Row) (domain.DataSet, error) {
	var ds domain.DataSet
	err := row.Scan(
		&ds.ID, &ds.Name, &ds.Description, &ds.Notes, &ds.AllowedIdentities,
		&ds.Cultures, &ds.SecretKey, &ds.WebhookURLs, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		return domain.DataSet{}, err
	}
	return ds, nil
}
