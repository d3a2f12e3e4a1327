package query

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsurma/data-manager/internal/auth"
	"github.com/lsurma/data-manager/internal/domain"
)

const translationBase = "SELECT t.id FROM translations t"

type stubLister struct {
	datasets []domain.DataSet
}

func (s *stubLister) ListAll(ctx context.Context) ([]domain.DataSet, error) {
	return s.datasets, nil
}

func newTestComposer(datasets ...domain.DataSet) *Composer {
	gate := auth.NewGate(&stubLister{datasets: datasets}, nil)
	return NewComposer(NewRegistry(), gate)
}

func TestBuilderRewritesPlaceholders(t *testing.T) {
	b := NewBuilder("SELECT * FROM x")
	b.Where("a = ?", 1)
	b.Where("(b = ? OR c = ?)", "two", "three")
	b.OrderBy("a ASC")
	b.Paginate(10, 20)

	sql, args := b.SQL()

	assert.Equal(t, "SELECT * FROM x WHERE a = $1 AND (b = $2 OR c = $3) ORDER BY a ASC LIMIT 10 OFFSET 20", sql)
	assert.Equal(t, []any{1, "two", "three"}, args)
}

func TestComposeInjectsCurrentVersionDefault(t *testing.T) {
	c := newTestComposer(domain.DataSet{ID: uuid.New(), Name: "public"})
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{
		Filters: []Filter{ResourceNameFilter{Name: "App.Strings"}},
	})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.Contains(t, sql, "t.is_current_version")
	assert.Contains(t, sql, "t.resource_name = $2")
}

func TestComposeVersionFilterOverridesDefault(t *testing.T) {
	c := newTestComposer(domain.DataSet{ID: uuid.New(), Name: "public"})
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{
		Filters: []Filter{VersionStateFilter{State: domain.VersionDraft}},
	})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.Contains(t, sql, "t.is_draft_version")
	assert.NotContains(t, sql, "t.is_current_version")
}

func TestComposeExplicitCurrentFilterAlsoOverrides(t *testing.T) {
	c := newTestComposer(domain.DataSet{ID: uuid.New(), Name: "public"})
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{
		Filters: []Filter{VersionStateFilter{State: domain.VersionCurrent}},
	})
	require.NoError(t, err)

	sql, _ := b.SQL()
	// Exactly one current-version predicate, from the explicit filter.
	assert.Equal(t, 1, strings.Count(sql, "t.is_current_version"))
}

func TestComposeFailsClosedOnEmptyScope(t *testing.T) {
	private := domain.DataSet{ID: uuid.New(), Name: "private", AllowedIdentities: []string{"alice"}}
	c := newTestComposer(private)
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.Contains(t, sql, "FALSE")
}

func TestComposeScopesToAccessibleDataSets(t *testing.T) {
	public := domain.DataSet{ID: uuid.New(), Name: "public"}
	private := domain.DataSet{ID: uuid.New(), Name: "private", AllowedIdentities: []string{"alice"}}
	c := newTestComposer(public, private)
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{})
	require.NoError(t, err)

	sql, args := b.SQL()
	assert.Contains(t, sql, "t.data_set_id = ANY($1)")
	require.Len(t, args, 1)
	ids, ok := args[0].([]uuid.UUID)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{public.ID}, ids)
}

func TestComposeBypassSkipsScope(t *testing.T) {
	private := domain.DataSet{ID: uuid.New(), Name: "private", AllowedIdentities: []string{"alice"}}
	c := newTestComposer(private)
	b := NewBuilder(translationBase)

	ctx := auth.ContextWithBypass(context.Background())
	err := c.Compose(ctx, EntityTranslations, b, Params{})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.NotContains(t, sql, "FALSE")
	assert.NotContains(t, sql, "ANY")
}

func TestComposeIgnoresInactiveFilters(t *testing.T) {
	c := newTestComposer(domain.DataSet{ID: uuid.New(), Name: "public"})
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{
		Filters: []Filter{
			ResourceNameFilter{Name: "   "},
			SearchFilter{Term: ""},
			CultureFilter{Cultures: []string{" "}},
		},
	})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.NotContains(t, sql, "resource_name =")
	assert.NotContains(t, sql, "ILIKE")
}

func TestComposeUnknownSortFallsBackToDefault(t *testing.T) {
	c := newTestComposer(domain.DataSet{ID: uuid.New(), Name: "public"})
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{
		SortField: "drop table students",
	})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.Contains(t, sql, "ORDER BY t.resource_name, t.translation_name")
	assert.NotContains(t, sql, "drop table")
}

func TestComposeSortWhitelistAndDirection(t *testing.T) {
	c := newTestComposer(domain.DataSet{ID: uuid.New(), Name: "public"})
	b := NewBuilder(translationBase)

	err := c.Compose(context.Background(), EntityTranslations, b, Params{
		SortField:     string(domain.TranslationSortFieldContentUpdatedAt),
		SortDirection: domain.SortDirectionDesc,
	})
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.Contains(t, sql, "ORDER BY t.content_updated_at DESC")
}

func TestKeyFilterMatchesNilCulture(t *testing.T) {
	b := NewBuilder(translationBase)
	reg := NewRegistry()

	h, ok := reg.Handler(EntityTranslations, KeyFilter{}.Tag())
	require.True(t, ok)

	err := h(KeyFilter{Key: domain.TranslationKey{ResourceName: "R", TranslationName: "N"}}, b)
	require.NoError(t, err)

	sql, _ := b.SQL()
	assert.Contains(t, sql, "t.culture_name IS NULL")
}
