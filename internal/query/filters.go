package query

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/domain"
)

// EntityTag names an aggregate root the composer can query.
type EntityTag string

const (
	EntityTranslations EntityTag = "translations"
	EntityDataSets     EntityTag = "data_sets"
)

// Filter is a typed, named predicate. Inactive filters are ignored by the
// composer; active ones are translated into SQL conditions by their
// registered handler.
type Filter interface {
	Tag() string
	IsActive() bool
}

// --- translation filters ---

// ResourceNameFilter matches translations by exact resource name.
type ResourceNameFilter struct {
	Name string
}

func (f ResourceNameFilter) Tag() string    { return "resource_name" }
func (f ResourceNameFilter) IsActive() bool { return strings.TrimSpace(f.Name) != "" }

// TranslationNameFilter matches translations by exact translation name.
type TranslationNameFilter struct {
	Name string
}

func (f TranslationNameFilter) Tag() string    { return "translation_name" }
func (f TranslationNameFilter) IsActive() bool { return strings.TrimSpace(f.Name) != "" }

// CultureFilter matches translations whose culture is one of the given codes.
type CultureFilter struct {
	Cultures []string
}

func (f CultureFilter) Tag() string { return "cultures" }
func (f CultureFilter) IsActive() bool {
	for _, c := range f.Cultures {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// DataSetFilter restricts translations to the given owning data sets.
type DataSetFilter struct {
	IDs []uuid.UUID
}

func (f DataSetFilter) Tag() string    { return "data_set" }
func (f DataSetFilter) IsActive() bool { return len(f.IDs) > 0 }

// VersionStateFilter selects rows by lifecycle state. Supplying it, even for
// the current state, overrides the composer's implicit current-only default.
type VersionStateFilter struct {
	State domain.VersionState
}

func (f VersionStateFilter) Tag() string { return "version_state" }
func (f VersionStateFilter) IsActive() bool {
	switch f.State {
	case domain.VersionCurrent, domain.VersionDraft, domain.VersionOld:
		return true
	}
	return false
}

// KeyFilter matches the full lookup key; a nil culture matches base rows.
type KeyFilter struct {
	Key domain.TranslationKey
}

func (f KeyFilter) Tag() string { return "key" }
func (f KeyFilter) IsActive() bool {
	return f.Key.ResourceName != "" && f.Key.TranslationName != ""
}

// SearchFilter matches a case-insensitive term against names and content.
type SearchFilter struct {
	Term string
}

func (f SearchFilter) Tag() string    { return "search" }
func (f SearchFilter) IsActive() bool { return strings.TrimSpace(f.Term) != "" }

// UpdatedSinceFilter matches translations whose content changed at or after
// the given instant.
type UpdatedSinceFilter struct {
	Since time.Time
}

func (f UpdatedSinceFilter) Tag() string    { return "updated_since" }
func (f UpdatedSinceFilter) IsActive() bool { return !f.Since.IsZero() }

// --- data-set filters ---

// DataSetNameFilter matches data sets by canonical name.
type DataSetNameFilter struct {
	Name string
}

func (f DataSetNameFilter) Tag() string    { return "name" }
func (f DataSetNameFilter) IsActive() bool { return strings.TrimSpace(f.Name) != "" }

// DataSetSearchFilter matches a term against name and description.
type DataSetSearchFilter struct {
	Term string
}

func (f DataSetSearchFilter) Tag() string    { return "search" }
func (f DataSetSearchFilter) IsActive() bool { return strings.TrimSpace(f.Term) != "" }
