package query

import (
	"context"
	"fmt"

	"github.com/lsurma/data-manager/internal/auth"
	"github.com/lsurma/data-manager/internal/domain"
)

// Params carries the caller-supplied query shape: filters, ordering and
// paging. Inactive filters are ignored.
type Params struct {
	Filters       []Filter
	SortField     string
	SortDirection domain.SortDirection
	Limit         int
	Offset        int
}

// Composer builds fully-prepared queries for an aggregate root. It applies
// authorization first, then active filters (ANDed), then ordering, then
// paging. Translation queries get an implicit current-version-only predicate
// unless an explicit version-state filter is supplied.
type Composer struct {
	registry *Registry
	gate     *auth.Gate
}

// NewComposer creates a composer over the given registry and gate.
func NewComposer(registry *Registry, gate *auth.Gate) *Composer {
	return &Composer{registry: registry, gate: gate}
}

// scopeColumns maps entities to the column the authorization scope narrows.
var scopeColumns = map[EntityTag]string{
	EntityTranslations: "t.data_set_id",
	EntityDataSets:     "ds.id",
}

// sortColumns whitelists orderable columns per entity. Unknown sort fields
// fall back to the entity default.
var sortColumns = map[EntityTag]map[string]string{
	EntityTranslations: {
		string(domain.TranslationSortFieldResourceName):     "t.resource_name",
		string(domain.TranslationSortFieldTranslationName):  "t.translation_name",
		string(domain.TranslationSortFieldCultureName):      "t.culture_name",
		string(domain.TranslationSortFieldContentUpdatedAt): "t.content_updated_at",
		string(domain.TranslationSortFieldUpdatedAt):        "t.updated_at",
	},
	EntityDataSets: {
		string(domain.DataSetSortFieldName):      "ds.name",
		string(domain.DataSetSortFieldCreatedAt): "ds.created_at",
		string(domain.DataSetSortFieldUpdatedAt): "ds.updated_at",
	},
}

var defaultSort = map[EntityTag]string{
	EntityTranslations: "t.resource_name, t.translation_name, t.culture_name NULLS FIRST",
	EntityDataSets:     "ds.name",
}

// Compose prepares the builder: authorization scope, filters, implicit
// version default, ordering and paging. The builder's base select must alias
// translations as t and data sets as ds.
func (c *Composer) Compose(ctx context.Context, entity EntityTag, b *Builder, p Params) error {
	if err := c.applyScope(ctx, entity, b); err != nil {
		return err
	}

	versionFiltered := false
	for _, f := range p.Filters {
		if !f.IsActive() {
			continue
		}
		handler, ok := c.registry.Handler(entity, f.Tag())
		if !ok {
			return fmt.Errorf("no %s filter handler registered for %q", entity, f.Tag())
		}
		if err := handler(f, b); err != nil {
			return fmt.Errorf("failed to apply filter %q: %w", f.Tag(), err)
		}
		if f.Tag() == (VersionStateFilter{}).Tag() {
			versionFiltered = true
		}
	}

	// Translations are current-version-only by default; only an explicit
	// version-state filter overrides this.
	if entity == EntityTranslations && !versionFiltered {
		b.Where("t.is_current_version")
	}

	b.OrderBy(c.orderExpr(entity, p))
	b.Paginate(p.Limit, p.Offset)
	return nil
}

func (c *Composer) applyScope(ctx context.Context, entity EntityTag, b *Builder) error {
	if auth.BypassFromContext(ctx) {
		return nil
	}

	scope, err := c.gate.AccessibleDataSetIDs(ctx)
	if err != nil {
		return err
	}
	if scope.All {
		return nil
	}

	column, ok := scopeColumns[entity]
	if !ok {
		return fmt.Errorf("no scope column for entity %q", entity)
	}

	// Fail closed: an empty accessible set matches nothing.
	if len(scope.IDs) == 0 {
		b.Where("FALSE")
		return nil
	}
	b.Where(column+" = ANY(?)", scope.IDs)
	return nil
}

func (c *Composer) orderExpr(entity EntityTag, p Params) string {
	column, ok := sortColumns[entity][p.SortField]
	if !ok {
		return defaultSort[entity]
	}
	if p.SortDirection == domain.SortDirectionDesc {
		return column + " DESC"
	}
	return column + " ASC"
}
