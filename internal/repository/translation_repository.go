package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/query"
)

const translationColumns = `t.id, t.group_key, t.group_label, t.resource_name, t.translation_name,
	t.culture_name, t.content, t.content_template, t.content_updated_at, t.data_set_id,
	t.source_translation_id, t.source_translation_last_synced_at, t.source_id, t.layout_id,
	t.is_current_version, t.is_draft_version, t.is_old_version, t.original_translation_id,
	t.created_at, t.updated_at`

const translationBaseSelect = `SELECT ` + translationColumns + `, COUNT(*) OVER() AS total_count FROM translations t`

const uniqueViolationCode = "23505"

// querier is satisfied by both pgxpool.Pool and pgx.Tx so the repository can
// run standalone or bound to a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// translationRepository implements TranslationRepository on PostgreSQL.
type translationRepository struct {
	db   querier
	pool *pgxpool.Pool
}

// NewTranslationRepository creates a translation repository.
func NewTranslationRepository(pool *pgxpool.Pool) TranslationRepository {
	return &translationRepository{db: pool, pool: pool}
}

func (r *translationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Translation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+translationColumns+` FROM translations t WHERE t.id = $1`, id)
	t, err := scanTranslation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Translation{}, domain.ErrNotFound
		}
		return domain.Translation{}, fmt.Errorf("failed to get translation: %w", err)
	}
	return t, nil
}

func (r *translationRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Translation, error) {
	if len(ids) == 0 {
		return []domain.Translation{}, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+translationColumns+` FROM translations t WHERE t.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get translations by ids: %w", err)
	}
	defer rows.Close()

	return collectTranslations(rows)
}

func (r *translationRepository) FindCurrentByKey(ctx context.Context, dataSetID uuid.UUID, key domain.TranslationKey) (domain.Translation, error) {
	b := query.NewBuilder(`SELECT ` + translationColumns + ` FROM translations t`)
	b.Where("t.data_set_id = ?", dataSetID)
	b.Where("t.resource_name = ?", key.ResourceName)
	b.Where("t.translation_name = ?", key.TranslationName)
	if key.CultureName == nil {
		b.Where("t.culture_name IS NULL")
	} else {
		b.Where("t.culture_name = ?", *key.CultureName)
	}
	b.Where("t.is_current_version")

	sql, args := b.SQL()
	row := r.db.QueryRow(ctx, sql, args...)
	t, err := scanTranslation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Translation{}, domain.ErrNotFound
		}
		return domain.Translation{}, fmt.Errorf("failed to find translation by key: %w", err)
	}
	return t, nil
}

func (r *translationRepository) List(ctx context.Context, c *query.Composer, p query.Params) ([]domain.Translation, int, error) {
	b := query.NewBuilder(translationBaseSelect)
	if err := c.Compose(ctx, query.EntityTranslations, b, p); err != nil {
		return nil, 0, fmt.Errorf("failed to compose translation query: %w", err)
	}

	sql, args := b.SQL()
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list translations: %w", err)
	}
	defer rows.Close()

	var translations []domain.Translation
	totalCount := 0
	for rows.Next() {
		t, count, err := scanTranslationWithCount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan translation: %w", err)
		}
		translations = append(translations, t)
		totalCount = count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read translations: %w", err)
	}
	return translations, totalCount, nil
}

func (r *translationRepository) ListKeys(ctx context.Context, dataSetID uuid.UUID, originalsOnly bool) ([]TranslationKeyRow, error) {
	sql := `
		SELECT t.id, t.resource_name, t.translation_name, t.culture_name
		FROM translations t
		WHERE t.data_set_id = $1 AND t.is_current_version`
	if originalsOnly {
		sql += ` AND t.source_translation_id IS NULL`
	}
	sql += ` ORDER BY t.resource_name, t.translation_name, t.culture_name NULLS FIRST`

	rows, err := r.db.Query(ctx, sql, dataSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list translation keys: %w", err)
	}
	defer rows.Close()

	var keys []TranslationKeyRow
	for rows.Next() {
		var row TranslationKeyRow
		if err := rows.Scan(&row.ID, &row.Key.ResourceName, &row.Key.TranslationName, &row.Key.CultureName); err != nil {
			return nil, fmt.Errorf("failed to scan translation key: %w", err)
		}
		keys = append(keys, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read translation keys: %w", err)
	}
	return keys, nil
}

func (r *translationRepository) ListCurrentByDataSet(ctx context.Context, dataSetID uuid.UUID) ([]domain.Translation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+translationColumns+` FROM translations t
		WHERE t.data_set_id = $1 AND t.is_current_version
		ORDER BY t.resource_name, t.translation_name, t.culture_name NULLS FIRST`, dataSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations for data set: %w", err)
	}
	defer rows.Close()

	return collectTranslations(rows)
}

func (r *translationRepository) ListMaterialized(ctx context.Context, dataSetID uuid.UUID) ([]domain.Translation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+translationColumns+` FROM translations t
		WHERE t.data_set_id = $1 AND t.is_current_version AND t.source_translation_id IS NOT NULL`, dataSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materialized translations: %w", err)
	}
	defer rows.Close()

	return collectTranslations(rows)
}

func (r *translationRepository) ListMissingGroupLabels(ctx context.Context, dataSetID uuid.UUID, limit int) ([]domain.Translation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+translationColumns+` FROM translations t
		WHERE t.data_set_id = $1 AND t.is_current_version AND t.group_key IS NULL
		ORDER BY t.id
		LIMIT $2`, dataSetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unindexed translations: %w", err)
	}
	defer rows.Close()

	return collectTranslations(rows)
}

func (r *translationRepository) Insert(ctx context.Context, t domain.Translation) error {
	_, err := r.db.Exec(ctx, insertTranslationSQL, insertTranslationArgs(t)...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to insert translation: %w", err)
	}
	return nil
}

func (r *translationRepository) InsertBatch(ctx context.Context, ts []domain.Translation) error {
	if len(ts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range ts {
		batch.Queue(insertTranslationSQL, insertTranslationArgs(t)...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range ts {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("failed to insert translation batch: %w", err)
		}
	}
	return nil
}

func (r *translationRepository) Update(ctx context.Context, t domain.Translation) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE translations SET
			group_key = $2,
			group_label = $3,
			resource_name = $4,
			translation_name = $5,
			culture_name = $6,
			content = $7,
			content_template = $8,
			content_updated_at = $9,
			data_set_id = $10,
			source_translation_id = $11,
			source_translation_last_synced_at = $12,
			source_id = $13,
			layout_id = $14,
			is_current_version = $15,
			is_draft_version = $16,
			is_old_version = $17,
			original_translation_id = $18,
			updated_at = now()
		WHERE id = $1`,
		t.ID, t.GroupKey, t.GroupLabel, t.ResourceName, t.TranslationName,
		t.CultureName, t.Content, t.ContentTemplate, t.ContentUpdatedAt, t.DataSetID,
		t.SourceTranslationID, t.SourceTranslationLastSyncedAt, t.SourceID, t.LayoutID,
		t.IsCurrentVersion, t.IsDraftVersion, t.IsOldVersion, t.OriginalTranslationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update translation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *translationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM translations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *translationRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM translations WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete translations: %w", err)
	}
	return nil
}

func (r *translationRepository) RunInTx(ctx context.Context, fn func(TranslationRepository) error) error {
	if r.pool == nil {
		// Already transaction-bound; nested calls share the outer tx.
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&translationRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const insertTranslationSQL = `
	INSERT INTO translations (
		id, group_key, group_label, resource_name, translation_name,
		culture_name, content, content_template, content_updated_at, data_set_id,
		source_translation_id, source_translation_last_synced_at, source_id, layout_id,
		is_current_version, is_draft_version, is_old_version, original_translation_id,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now(), now())`

func insertTranslationArgs(t domain.Translation) []any {
	return []any{
		t.ID, t.GroupKey, t.GroupLabel, t.ResourceName, t.TranslationName,
		t.CultureName, t.Content, t.ContentTemplate, t.ContentUpdatedAt, t.DataSetID,
		t.SourceTranslationID, t.SourceTranslationLastSyncedAt, t.SourceID, t.LayoutID,
		t.IsCurrentVersion, t.IsDraftVersion, t.IsOldVersion, t.OriginalTranslationID,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func collectTranslations(rows pgx.Rows) ([]domain.Translation, error) {
	var translations []domain.Translation
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		translations = append(translations, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read translations: %w", err)
	}
	return translations, nil
}

func scanTranslation(row pgx.Row) (domain.Translation, error) {
	var t domain.Translation
	err := row.Scan(
		&t.ID, &t.GroupKey, &t.GroupLabel, &t.ResourceName, &t.TranslationName,
		&t.CultureName, &t.Content, &t.ContentTemplate, &t.ContentUpdatedAt, &t.DataSetID,
		&t.SourceTranslationID, &t.SourceTranslationLastSyncedAt, &t.SourceID, &t.LayoutID,
		&t.IsCurrentVersion, &t.IsDraftVersion, &t.IsOldVersion, &t.OriginalTranslationID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Translation{}, err
	}
	return t, nil
}

func scanTranslationWithCount(rows pgx.Rows) (domain.Translation, int, error) {
	var t domain.Translation
	var count int
	err := rows.Scan(
		&t.ID, &t.GroupKey, &t.GroupLabel, &t.ResourceName, &t.TranslationName,
		&t.CultureName, &t.Content, &t.ContentTemplate, &t.ContentUpdatedAt, &t.DataSetID,
		&t.SourceTranslationID, &t.SourceTranslationLastSyncedAt, &t.SourceID, &t.LayoutID,
		&t.IsCurrentVersion, &t.IsDraftVersion, &t.IsOldVersion, &t.OriginalTranslationID,
		&t.CreatedAt, &t.UpdatedAt,
		&count,
	)
	if err != nil {
		return domain.Translation{}, 0, err
	}
	return t, count, nil
}
