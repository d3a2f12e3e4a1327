package query

import (
	"fmt"
	"strings"

	"github.com/lsurma/data-manager/internal/domain"
)

// Handler turns an active filter instance into SQL conditions on a builder.
type Handler func(f Filter, b *Builder) error

// Registry maps (entity tag, filter tag) pairs to handlers. It is an
// explicit registration table built once at construction; there is no
// runtime type scanning.
type Registry struct {
	handlers map[EntityTag]map[string]Handler
}

// NewRegistry builds the registry with all known handlers. Translation
// queries assume the base select aliases the table as t, data-set queries as
// ds.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[EntityTag]map[string]Handler)}

	r.register(EntityTranslations, ResourceNameFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(ResourceNameFilter)
		if !ok {
			return fmt.Errorf("resource_name handler got %T", f)
		}
		b.Where("t.resource_name = ?", strings.TrimSpace(flt.Name))
		return nil
	})

	r.register(EntityTranslations, TranslationNameFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(TranslationNameFilter)
		if !ok {
			return fmt.Errorf("translation_name handler got %T", f)
		}
		b.Where("t.translation_name = ?", strings.TrimSpace(flt.Name))
		return nil
	})

	r.register(EntityTranslations, CultureFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(CultureFilter)
		if !ok {
			return fmt.Errorf("cultures handler got %T", f)
		}
		cultures := make([]string, 0, len(flt.Cultures))
		for _, c := range flt.Cultures {
			if trimmed := strings.TrimSpace(c); trimmed != "" {
				cultures = append(cultures, trimmed)
			}
		}
		b.Where("t.culture_name = ANY(?)", cultures)
		return nil
	})

	r.register(EntityTranslations, DataSetFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(DataSetFilter)
		if !ok {
			return fmt.Errorf("data_set handler got %T", f)
		}
		b.Where("t.data_set_id = ANY(?)", flt.IDs)
		return nil
	})

	r.register(EntityTranslations, VersionStateFilter{}.Tag(), versionStateHandler)

	r.register(EntityTranslations, KeyFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(KeyFilter)
		if !ok {
			return fmt.Errorf("key handler got %T", f)
		}
		b.Where("t.resource_name = ?", flt.Key.ResourceName)
		b.Where("t.translation_name = ?", flt.Key.TranslationName)
		if flt.Key.CultureName == nil {
			b.Where("t.culture_name IS NULL")
		} else {
			b.Where("t.culture_name = ?", *flt.Key.CultureName)
		}
		return nil
	})

	r.register(EntityTranslations, SearchFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(SearchFilter)
		if !ok {
			return fmt.Errorf("search handler got %T", f)
		}
		term := "%" + strings.TrimSpace(flt.Term) + "%"
		b.Where("(t.resource_name ILIKE ? OR t.translation_name ILIKE ? OR t.content ILIKE ?)", term, term, term)
		return nil
	})

	r.register(EntityTranslations, UpdatedSinceFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(UpdatedSinceFilter)
		if !ok {
			return fmt.Errorf("updated_since handler got %T", f)
		}
		b.Where("t.content_updated_at >= ?", flt.Since)
		return nil
	})

	r.register(EntityDataSets, DataSetNameFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(DataSetNameFilter)
		if !ok {
			return fmt.Errorf("name handler got %T", f)
		}
		b.Where("ds.name = ?", strings.TrimSpace(flt.Name))
		return nil
	})

	r.register(EntityDataSets, DataSetSearchFilter{}.Tag(), func(f Filter, b *Builder) error {
		flt, ok := f.(DataSetSearchFilter)
		if !ok {
			return fmt.Errorf("search handler got %T", f)
		}
		term := "%" + strings.TrimSpace(flt.Term) + "%"
		b.Where("(ds.name ILIKE ? OR ds.description ILIKE ?)", term, term)
		return nil
	})

	return r
}

func versionStateHandler(f Filter, b *Builder) error {
	flt, ok := f.(VersionStateFilter)
	if !ok {
		return fmt.Errorf("version_state handler got %T", f)
	}
	switch flt.State {
	case domain.VersionCurrent:
		b.Where("t.is_current_version")
	case domain.VersionDraft:
		b.Where("t.is_draft_version")
	case domain.VersionOld:
		b.Where("t.is_old_version")
	default:
		return fmt.Errorf("unknown version state %q", flt.State)
	}
	return nil
}

func (r *Registry) register(entity EntityTag, tag string, h Handler) {
	if r.handlers[entity] == nil {
		r.handlers[entity] = make(map[string]Handler)
	}
	r.handlers[entity][tag] = h
}

// Handler looks up the handler for an (entity, filter tag) pair.
func (r *Registry) Handler(entity EntityTag, tag string) (Handler, bool) {
	h, ok := r.handlers[entity][tag]
	return h, ok
}
