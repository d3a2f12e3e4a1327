package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// keySeparator joins the parts of a translation lookup key. It must not occur
// in resource or translation names produced by the UI.
const keySeparator = "||"

// Translation is a single piece of multi-culture content. A nil CultureName
// denotes a base (non-localized) source used as a template. Exactly one of
// the three version booleans is set on a live row; old-version rows are
// immutable history.
type Translation struct {
	ID              uuid.UUID
	GroupKey        *string
	GroupLabel      *string
	ResourceName    string
	TranslationName string
	CultureName     *string
	Content         string
	ContentTemplate *string

	// ContentUpdatedAt moves only when Content or ContentTemplate actually
	// change, never on metadata-only edits.
	ContentUpdatedAt *time.Time

	DataSetID *uuid.UUID

	// Materialization provenance. A translation copied from another data set
	// carries SourceTranslationID; originals have it nil.
	SourceTranslationID           *uuid.UUID
	SourceTranslationLastSyncedAt *time.Time

	// SourceID is a linking reference (e.g. to a base-language original),
	// independent of materialization.
	SourceID *uuid.UUID
	LayoutID *uuid.UUID

	IsCurrentVersion      bool
	IsDraftVersion        bool
	IsOldVersion          bool
	OriginalTranslationID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TranslationKey identifies a logical translation within a data set.
type TranslationKey struct {
	ResourceName    string
	TranslationName string
	CultureName     *string
}

// String concatenates the key parts with a separator; a nil culture encodes
// distinctly from an empty one.
func (k TranslationKey) String() string {
	culture := "\x00"
	if k.CultureName != nil {
		culture = *k.CultureName
	}
	return strings.Join([]string{k.ResourceName, k.TranslationName, culture}, keySeparator)
}

// Key returns the translation's lookup key.
func (t Translation) Key() TranslationKey {
	return TranslationKey{
		ResourceName:    t.ResourceName,
		TranslationName: t.TranslationName,
		CultureName:     t.CultureName,
	}
}

// IsOriginal reports whether the row was authored in its own data set rather
// than materialized from an included one.
func (t Translation) IsOriginal() bool {
	return t.SourceTranslationID == nil
}

// VersionState is the lifecycle state of a translation row.
type VersionState string

const (
	VersionCurrent VersionState = "current"
	VersionDraft   VersionState = "draft"
	VersionOld     VersionState = "old"
)

// SetVersionState sets the three version booleans to exactly one
// configuration.
func (t *Translation) SetVersionState(state VersionState) {
	t.IsCurrentVersion = state == VersionCurrent
	t.IsDraftVersion = state == VersionDraft
	t.IsOldVersion = state == VersionOld
}

// VersionState derives the lifecycle state from the version booleans.
func (t Translation) VersionState() VersionState {
	switch {
	case t.IsOldVersion:
		return VersionOld
	case t.IsDraftVersion:
		return VersionDraft
	default:
		return VersionCurrent
	}
}

// Snapshot clones the row into an immutable old-version record pointing back
// at the live row.
func (t Translation) Snapshot() Translation {
	snap := t
	snap.ID = uuid.New()
	originalID := t.ID
	snap.OriginalTranslationID = &originalID
	snap.SetVersionState(VersionOld)
	snap.CreatedAt = time.Now()
	snap.UpdatedAt = snap.CreatedAt
	return snap
}

// ContentEquals compares content and content template.
func (t Translation) ContentEquals(content string, contentTemplate *string) bool {
	if t.Content != content {
		return false
	}
	return equalStringPtr(t.ContentTemplate, contentTemplate)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
