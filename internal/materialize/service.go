// Package materialize flattens resolved inclusion hierarchies into a single
// deduplicated view and persists materialized copies into root data sets.
package materialize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/repository"
)

const defaultBatchSize = 250

// Resolver resolves a root data set into its priority-ordered hierarchy.
type Resolver interface {
	Resolve(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error)
}

// SyncResult summarizes a materialization or indexing sweep. Per-row errors
// are collected instead of aborting the sweep; one bad row never blocks the
// batch.
type SyncResult struct {
	Processed int
	Inserted  int
	Updated   int
	Removed   int
	Errors    []error
}

// Touched returns the number of rows the sweep actually wrote.
func (r SyncResult) Touched() int {
	return r.Inserted + r.Updated + r.Removed
}

// Service implements the read-side flatten and the write-side materialize
// over the hierarchy resolver's output. Both deliberately bypass
// authorization: callers must have authorized the root data set already.
type Service struct {
	translations repository.TranslationRepository
	resolver     Resolver
	logger       *zap.Logger

	batchSize int
	now       func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithBatchSize bounds the per-transaction batch during sweeps.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a materialization service.
func NewService(translations repository.TranslationRepository, resolver Resolver, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		translations: translations,
		resolver:     resolver,
		logger:       logger,
		batchSize:    defaultBatchSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flatten returns the deduplicated current-version content of the whole
// hierarchy rooted at rootID. The first occurrence of a key wins, so rows
// owned by data sets closer to the root shadow deeper ones. Only the minimal
// key projection is scanned per data set; full rows are fetched in one batch
// and returned in selection order.
func (s *Service) Flatten(ctx context.Context, rootID uuid.UUID) ([]domain.Translation, error) {
	hierarchy, err := s.resolver.Resolve(ctx, rootID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var selected []uuid.UUID
	for _, dataSetID := range hierarchy {
		keys, err := s.translations.ListKeys(ctx, dataSetID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys of data set %s: %w", dataSetID, err)
		}
		for _, row := range keys {
			key := row.Key.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			selected = append(selected, row.ID)
		}
	}

	rows, err := s.translations.GetByIDs(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flattened translations: %w", err)
	}

	byID := make(map[uuid.UUID]domain.Translation, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	ordered := make([]domain.Translation, 0, len(selected))
	for _, id := range selected {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// Materialize copies resolved content from included data sets into the root
// as real rows with provenance metadata, so a single query against the root
// sees the whole hierarchy. Root originals always win; materialized
// counterparts are updated in place; rows whose source vanished or whose key
// got claimed by a root original are removed. The pass is idempotent: with
// no source changes the second run touches nothing.
func (s *Service) Materialize(ctx context.Context, rootID uuid.UUID) (SyncResult, error) {
	var result SyncResult

	hierarchy, err := s.resolver.Resolve(ctx, rootID)
	if err != nil {
		return result, err
	}
	if len(hierarchy) <= 1 {
		return result, nil
	}

	rootOriginals, err := s.translations.ListKeys(ctx, rootID, true)
	if err != nil {
		return result, fmt.Errorf("failed to load root originals: %w", err)
	}
	originalKeys := make(map[string]struct{}, len(rootOriginals))
	for _, row := range rootOriginals {
		originalKeys[row.Key.String()] = struct{}{}
	}

	materialized, err := s.translations.ListMaterialized(ctx, rootID)
	if err != nil {
		return result, fmt.Errorf("failed to load materialized rows: %w", err)
	}
	materializedByKey := make(map[string]domain.Translation, len(materialized))
	for _, row := range materialized {
		materializedByKey[row.Key().String()] = row
	}

	// Keys already settled this pass: root originals plus everything claimed
	// by a higher-priority source.
	seen := make(map[string]struct{}, len(originalKeys))
	for key := range originalKeys {
		seen[key] = struct{}{}
	}
	claimed := make(map[string]struct{})

	for _, dataSetID := range hierarchy[1:] {
		sources, err := s.translations.ListCurrentByDataSet(ctx, dataSetID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("data set %s: %w", dataSetID, err))
			continue
		}

		var inserts []domain.Translation
		var updates []domain.Translation

		for _, src := range sources {
			result.Processed++
			key := src.Key().String()
			if _, settled := seen[key]; settled {
				continue
			}
			seen[key] = struct{}{}

			if existing, ok := materializedByKey[key]; ok {
				claimed[key] = struct{}{}
				if updated, changed := s.refresh(existing, src); changed {
					updates = append(updates, updated)
				}
				continue
			}

			claimed[key] = struct{}{}
			inserts = append(inserts, s.copyForRoot(src, rootID))
		}

		if err := s.flush(ctx, inserts, updates); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("data set %s: %w", dataSetID, err))
			continue
		}
		result.Inserted += len(inserts)
		result.Updated += len(updates)
	}

	// A failed source read leaves that set's keys unclaimed; removing
	// "orphans" on partial knowledge would delete still-valid copies. Skip
	// the cleanup and let the next clean pass catch up.
	if len(result.Errors) == 0 {
		removed, err := s.removeOrphans(ctx, materialized, originalKeys, claimed)
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
		result.Removed = removed
	}

	s.logger.Info("materialization pass finished",
		zap.String("root", rootID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// refresh updates a materialized row in place from its current source,
// returning the updated row and whether anything actually changed. The
// content timestamp moves only when content differs.
func (s *Service) refresh(existing, src domain.Translation) (domain.Translation, bool) {
	contentChanged := !existing.ContentEquals(src.Content, src.ContentTemplate)
	metaChanged := !equalPtr(existing.GroupKey, src.GroupKey) ||
		!equalPtr(existing.GroupLabel, src.GroupLabel) ||
		!equalUUIDPtr(existing.LayoutID, src.LayoutID) ||
		existing.SourceTranslationID == nil || *existing.SourceTranslationID != src.ID

	if !contentChanged && !metaChanged {
		return existing, false
	}

	now := s.now()
	existing.Content = src.Content
	existing.ContentTemplate = src.ContentTemplate
	existing.GroupKey = src.GroupKey
	existing.GroupLabel = src.GroupLabel
	existing.LayoutID = src.LayoutID
	sourceID := src.ID
	existing.SourceTranslationID = &sourceID
	existing.SourceTranslationLastSyncedAt = &now
	if contentChanged {
		existing.ContentUpdatedAt = &now
	}
	return existing, true
}

// copyForRoot builds a new materialized row in the root data set. Linking
// references are never copied.
func (s *Service) copyForRoot(src domain.Translation, rootID uuid.UUID) domain.Translation {
	now := s.now()
	sourceID := src.ID
	rootRef := rootID

	row := domain.Translation{
		ID:                            uuid.New(),
		GroupKey:                      src.GroupKey,
		GroupLabel:                    src.GroupLabel,
		ResourceName:                  src.ResourceName,
		TranslationName:               src.TranslationName,
		CultureName:                   src.CultureName,
		Content:                       src.Content,
		ContentTemplate:               src.ContentTemplate,
		ContentUpdatedAt:              src.ContentUpdatedAt,
		DataSetID:                     &rootRef,
		SourceTranslationID:           &sourceID,
		SourceTranslationLastSyncedAt: &now,
		LayoutID:                      src.LayoutID,
	}
	row.SetVersionState(domain.VersionCurrent)
	return row
}

func (s *Service) flush(ctx context.Context, inserts, updates []domain.Translation) error {
	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}
	return s.translations.RunInTx(ctx, func(tx repository.TranslationRepository) error {
		for start := 0; start < len(inserts); start += s.batchSize {
			end := start + s.batchSize
			if end > len(inserts) {
				end = len(inserts)
			}
			if err := tx.InsertBatch(ctx, inserts[start:end]); err != nil {
				return fmt.Errorf("failed to insert materialized batch: %w", err)
			}
		}
		for _, row := range updates {
			if err := tx.Update(ctx, row); err != nil {
				return fmt.Errorf("failed to update materialized row %s: %w", row.ID, err)
			}
		}
		return nil
	})
}

// removeOrphans deletes materialized rows whose key is now owned by a root
// original or whose source disappeared from the hierarchy.
func (s *Service) removeOrphans(ctx context.Context, materialized []domain.Translation, originalKeys, claimed map[string]struct{}) (int, error) {
	var orphans []uuid.UUID
	for _, row := range materialized {
		key := row.Key().String()
		if _, shadowed := originalKeys[key]; shadowed {
			orphans = append(orphans, row.ID)
			continue
		}
		if _, alive := claimed[key]; !alive {
			orphans = append(orphans, row.ID)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	for start := 0; start < len(orphans); start += s.batchSize {
		end := start + s.batchSize
		if end > len(orphans) {
			end = len(orphans)
		}
		if err := s.translations.DeleteBatch(ctx, orphans[start:end]); err != nil {
			return 0, fmt.Errorf("failed to remove orphaned materialized rows: %w", err)
		}
	}
	return len(orphans), nil
}

// Reindex derives the two internal grouping labels from resource names for
// rows that lack them, in bounded batches. The sweep is resumable: each
// batch commits independently and re-running is safe.
func (s *Service) Reindex(ctx context.Context, dataSetID uuid.UUID) (SyncResult, error) {
	var result SyncResult

	for {
		batch, err := s.translations.ListMissingGroupLabels(ctx, dataSetID, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to load unindexed rows: %w", err)
		}
		if len(batch) == 0 {
			return result, nil
		}

		updatedBefore := result.Updated
		err = s.translations.RunInTx(ctx, func(tx repository.TranslationRepository) error {
			for _, row := range batch {
				result.Processed++
				groupKey, groupLabel := deriveGrouping(row.ResourceName)
				row.GroupKey = &groupKey
				row.GroupLabel = &groupLabel
				if err := tx.Update(ctx, row); err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("row %s: %w", row.ID, err))
					continue
				}
				result.Updated++
			}
			return nil
		})
		if err != nil {
			result.Errors = append(result.Errors, err)
			return result, nil
		}

		// No progress means the remaining rows are unfixable; stop instead of
		// refetching the same batch forever.
		if result.Updated == updatedBefore || len(batch) < s.batchSize {
			return result, nil
		}
	}
}

// deriveGrouping splits a resource name into its first segment and its
// two-segment prefix.
func deriveGrouping(resourceName string) (string, string) {
	segments := strings.SplitN(resourceName, ".", 3)
	groupKey := segments[0]
	groupLabel := groupKey
	if len(segments) > 1 {
		groupLabel = segments[0] + "." + segments[1]
	}
	return groupKey, groupLabel
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalUUIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
