// Package versioning governs single-translation writes: partial updates,
// draft/published transitions and automatic history snapshots.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/repository"
	"github.com/lsurma/data-manager/pkg/optional"
)

// SaveCommand is a partial-update request for one translation. Unspecified
// fields are left untouched; specified-null clears nullable fields. ID, when
// set, targets an exact row and skips the key lookup.
type SaveCommand struct {
	ID *uuid.UUID

	ResourceName    optional.Optional[string]
	TranslationName optional.Optional[string]
	// CultureName specified-null means the base (non-localized) row.
	CultureName optional.Optional[string]
	DataSetID   optional.Optional[uuid.UUID]

	Content          optional.Optional[string]
	ContentTemplate  optional.Optional[string]
	ContentUpdatedAt optional.Optional[time.Time]

	GroupKey   optional.Optional[string]
	GroupLabel optional.Optional[string]
	SourceID   optional.Optional[uuid.UUID]
	LayoutID   optional.Optional[uuid.UUID]

	// IsDraft moves the row between draft and published. Unspecified keeps
	// the row's state.
	IsDraft optional.Optional[bool]
}

// cultureName resolves the lookup culture: specified-null and unspecified
// both address the base row.
func (c SaveCommand) cultureName() *string {
	return c.CultureName.Ptr()
}

// Service applies the version transition rules on every single-row write.
type Service struct {
	translations repository.TranslationRepository
	logger       *zap.Logger
	now          func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a versioning service.
func NewService(translations repository.TranslationRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		translations: translations,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session caches rows already loaded or written within one logical
// transaction, so a batch touching the same key twice sees its own earlier
// write instead of stale storage.
type session struct {
	loaded map[string]domain.Translation
}

func newSession() *session {
	return &session{loaded: make(map[string]domain.Translation)}
}

func sessionKey(dataSetID uuid.UUID, key domain.TranslationKey) string {
	return dataSetID.String() + "|" + key.String()
}

func (s *session) get(dataSetID uuid.UUID, key domain.TranslationKey) (domain.Translation, bool) {
	row, ok := s.loaded[sessionKey(dataSetID, key)]
	return row, ok
}

func (s *session) put(row domain.Translation) {
	if row.DataSetID == nil {
		return
	}
	s.loaded[sessionKey(*row.DataSetID, row.Key())] = row
}

// Save creates or updates a single translation, wrapped in one transaction
// so the snapshot-then-update sequence is atomic.
func (s *Service) Save(ctx context.Context, cmd SaveCommand) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.translations.RunInTx(ctx, func(tx repository.TranslationRepository) error {
		var err error
		id, err = s.save(ctx, tx, newSession(), cmd)
		return err
	})
	return id, err
}

// SaveAll applies a batch of commands in one transaction with a shared
// lookup session: later commands for a key see earlier writes from the same
// batch.
func (s *Service) SaveAll(ctx context.Context, cmds []SaveCommand) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(cmds))
	err := s.translations.RunInTx(ctx, func(tx repository.TranslationRepository) error {
		sess := newSession()
		for i, cmd := range cmds {
			id, err := s.save(ctx, tx, sess, cmd)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) save(ctx context.Context, tx repository.TranslationRepository, sess *session, cmd SaveCommand) (uuid.UUID, error) {
	row, found, err := s.lookup(ctx, tx, sess, cmd)
	if err != nil {
		return uuid.Nil, err
	}
	if found {
		return s.update(ctx, tx, sess, row, cmd)
	}
	return s.create(ctx, tx, sess, cmd, false)
}

// lookup resolves the write target: explicit id first, then the logical key
// against the session, then storage.
func (s *Service) lookup(ctx context.Context, tx repository.TranslationRepository, sess *session, cmd SaveCommand) (domain.Translation, bool, error) {
	if cmd.ID != nil {
		row, err := tx.GetByID(ctx, *cmd.ID)
		if err != nil {
			return domain.Translation{}, false, fmt.Errorf("failed to load translation %s: %w", *cmd.ID, err)
		}
		if row.IsOldVersion {
			return domain.Translation{}, false, domain.NewValidationError("id", "archived versions cannot be modified")
		}
		return row, true, nil
	}

	dataSetID, err := cmd.DataSetID.Value()
	if err != nil || dataSetID == uuid.Nil {
		// No id and no data set: nothing to look up, the create path will
		// report the missing fields.
		return domain.Translation{}, false, nil
	}
	resource, errR := cmd.ResourceName.Value()
	name, errN := cmd.TranslationName.Value()
	if errR != nil || errN != nil {
		return domain.Translation{}, false, nil
	}

	key := domain.TranslationKey{
		ResourceName:    resource,
		TranslationName: name,
		CultureName:     cmd.cultureName(),
	}
	if row, ok := sess.get(dataSetID, key); ok {
		return row, true, nil
	}

	row, err := tx.FindCurrentByKey(ctx, dataSetID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Translation{}, false, nil
	}
	if err != nil {
		return domain.Translation{}, false, fmt.Errorf("failed to look up translation by key: %w", err)
	}
	return row, true, nil
}

func (s *Service) update(ctx context.Context, tx repository.TranslationRepository, sess *session, row domain.Translation, cmd SaveCommand) (uuid.UUID, error) {
	if err := keyChangeError(row, cmd); err != nil {
		return uuid.Nil, err
	}

	newContent := cmd.Content.GetOrDefault(row.Content)
	newTemplate := row.ContentTemplate
	if cmd.ContentTemplate.Specified() {
		newTemplate = cmd.ContentTemplate.Ptr()
	}
	contentChanged := !row.ContentEquals(newContent, newTemplate)

	if contentChanged && cmd.ContentUpdatedAt.Specified() && !cmd.ContentUpdatedAt.IsNull() && row.ContentUpdatedAt != nil {
		supplied, _ := cmd.ContentUpdatedAt.Value()
		if supplied.Before(*row.ContentUpdatedAt) {
			// Out-of-order sync feed: drop the write, keep the newer content.
			s.logger.Warn("rejected stale translation write",
				zap.String("translation", row.ID.String()),
				zap.Time("supplied", supplied),
				zap.Time("stored", *row.ContentUpdatedAt),
			)
			return row.ID, nil
		}
	}

	targetIsDraft := cmd.IsDraft.GetOrDefault(row.IsDraftVersion)
	shouldSnapshot := contentChanged && !targetIsDraft && !row.IsDraftVersion
	if shouldSnapshot {
		if err := tx.Insert(ctx, row.Snapshot()); err != nil {
			return uuid.Nil, fmt.Errorf("failed to archive previous version: %w", err)
		}
	}

	now := s.now()
	row.Content = newContent
	row.ContentTemplate = newTemplate
	if cmd.GroupKey.Specified() {
		row.GroupKey = cmd.GroupKey.Ptr()
	}
	if cmd.GroupLabel.Specified() {
		row.GroupLabel = cmd.GroupLabel.Ptr()
	}
	if cmd.SourceID.Specified() {
		row.SourceID = cmd.SourceID.Ptr()
	}
	if cmd.LayoutID.Specified() {
		row.LayoutID = cmd.LayoutID.Ptr()
	}
	if contentChanged {
		stamp := cmd.ContentUpdatedAt.ValueOr(now)
		row.ContentUpdatedAt = &stamp
	}
	if cmd.IsDraft.Specified() {
		if targetIsDraft {
			row.SetVersionState(domain.VersionDraft)
		} else {
			row.SetVersionState(domain.VersionCurrent)
		}
	}
	row.UpdatedAt = now

	if err := tx.Update(ctx, row); err != nil {
		return uuid.Nil, fmt.Errorf("failed to update translation %s: %w", row.ID, err)
	}
	sess.put(row)
	return row.ID, nil
}

// keyChangeError rejects commands that would move an existing row to a
// different lookup key. Keys are immutable; changing one is a delete and a
// create. Commands that merely restate the current key pass.
func keyChangeError(row domain.Translation, cmd SaveCommand) error {
	if v := cmd.ResourceName.Ptr(); v != nil && *v != row.ResourceName {
		return domain.NewValidationError("resourceName", "cannot be changed on an existing translation")
	}
	if v := cmd.TranslationName.Ptr(); v != nil && *v != row.TranslationName {
		return domain.NewValidationError("translationName", "cannot be changed on an existing translation")
	}
	if cmd.CultureName.Specified() && !equalStringPtr(cmd.cultureName(), row.CultureName) {
		return domain.NewValidationError("cultureName", "cannot be changed on an existing translation")
	}
	if v := cmd.DataSetID.Ptr(); v != nil && (row.DataSetID == nil || *v != *row.DataSetID) {
		return domain.NewValidationError("dataSetId", "cannot be changed on an existing translation")
	}
	return nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) create(ctx context.Context, tx repository.TranslationRepository, sess *session, cmd SaveCommand, retried bool) (uuid.UUID, error) {
	resource, err := cmd.ResourceName.Value()
	if err != nil || resource == "" {
		return uuid.Nil, domain.NewValidationError("resourceName", "is required to create a translation")
	}
	name, err := cmd.TranslationName.Value()
	if err != nil || name == "" {
		return uuid.Nil, domain.NewValidationError("translationName", "is required to create a translation")
	}
	if !cmd.CultureName.Specified() {
		return uuid.Nil, domain.NewValidationError("cultureName", "must be specified to create a translation (null selects the base row)")
	}
	dataSetID, err := cmd.DataSetID.Value()
	if err != nil || dataSetID == uuid.Nil {
		return uuid.Nil, domain.NewValidationError("dataSetId", "is required to create a translation")
	}

	now := s.now()
	stamp := cmd.ContentUpdatedAt.ValueOr(now)
	row := domain.Translation{
		ID:               uuid.New(),
		ResourceName:     resource,
		TranslationName:  name,
		CultureName:      cmd.cultureName(),
		Content:          cmd.Content.GetOrDefault(""),
		ContentTemplate:  cmd.ContentTemplate.Ptr(),
		ContentUpdatedAt: &stamp,
		DataSetID:        &dataSetID,
		GroupKey:         cmd.GroupKey.Ptr(),
		GroupLabel:       cmd.GroupLabel.Ptr(),
		SourceID:         cmd.SourceID.Ptr(),
		LayoutID:         cmd.LayoutID.Ptr(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if cmd.IsDraft.GetOrDefault(false) {
		row.SetVersionState(domain.VersionDraft)
	} else {
		row.SetVersionState(domain.VersionCurrent)
	}

	err = tx.Insert(ctx, row)
	if errors.Is(err, domain.ErrConflict) && !retried {
		// Lost the lookup-then-insert race: the row exists now, retry once
		// as an update.
		existing, lookupErr := tx.FindCurrentByKey(ctx, dataSetID, row.Key())
		if lookupErr != nil {
			return uuid.Nil, fmt.Errorf("failed to reload translation after conflict: %w", lookupErr)
		}
		return s.update(ctx, tx, sess, existing, cmd)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert translation: %w", err)
	}
	sess.put(row)
	return row.ID, nil
}
