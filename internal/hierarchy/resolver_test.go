package hierarchy

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/domain"
)

func dataSet(name string, includes ...uuid.UUID) domain.DataSet {
	ds := domain.DataSet{ID: uuid.New(), Name: name}
	for _, id := range includes {
		ds.Includes = append(ds.Includes, domain.DataSetInclude{
			ParentDataSetID:   ds.ID,
			IncludedDataSetID: id,
		})
	}
	return ds
}

func universeOf(sets ...domain.DataSet) map[uuid.UUID]domain.DataSet {
	universe := make(map[uuid.UUID]domain.DataSet, len(sets))
	for _, ds := range sets {
		universe[ds.ID] = ds
	}
	return universe
}

func TestWalkLinearHierarchy(t *testing.T) {
	a := dataSet("a")
	b := dataSet("b")
	shared := dataSet("shared", a.ID, b.ID)
	final := dataSet("final", shared.ID)

	got := Walk(final.ID, universeOf(final, shared, a, b))

	want := []uuid.UUID{final.ID, shared.ID, a.ID, b.ID}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}
}

func TestWalkUnknownRootReturnsEmpty(t *testing.T) {
	a := dataSet("a")

	got := Walk(uuid.New(), universeOf(a))

	if len(got) != 0 {
		t.Fatalf("expected empty result for unknown root, got %v", got)
	}
}

func TestWalkSurvivesCycleThroughRoot(t *testing.T) {
	aID := uuid.New()
	bID := uuid.New()
	a := domain.DataSet{ID: aID, Name: "a", Includes: []domain.DataSetInclude{{ParentDataSetID: aID, IncludedDataSetID: bID}}}
	b := domain.DataSet{ID: bID, Name: "b", Includes: []domain.DataSetInclude{{ParentDataSetID: bID, IncludedDataSetID: aID}}}

	got := Walk(aID, universeOf(a, b))

	want := []uuid.UUID{aID, bID}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}
}

func TestWalkDeduplicatesDiamond(t *testing.T) {
	leaf := dataSet("leaf")
	left := dataSet("left", leaf.ID)
	right := dataSet("right", leaf.ID)
	root := dataSet("root", left.ID, right.ID)

	got := Walk(root.ID, universeOf(root, left, right, leaf))

	want := []uuid.UUID{root.ID, left.ID, right.ID, leaf.ID}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}
}

func TestWalkSkipsUnknownIncludes(t *testing.T) {
	missing := uuid.New()
	child := dataSet("child")
	root := dataSet("root", missing, child.ID)

	got := Walk(root.ID, universeOf(root, child))

	want := []uuid.UUID{root.ID, child.ID}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}
}

func TestWalkIsDeterministic(t *testing.T) {
	a := dataSet("a")
	b := dataSet("b")
	c := dataSet("c", a.ID, b.ID)
	root := dataSet("root", c.ID, a.ID)
	universe := universeOf(root, c, a, b)

	first := Walk(root.ID, universe)
	for i := 0; i < 10; i++ {
		if got := Walk(root.ID, universe); !reflect.DeepEqual(got, first) {
			t.Fatalf("Walk not deterministic: %v vs %v", got, first)
		}
	}
}

type stubSource struct {
	datasets []domain.DataSet
}

func (s *stubSource) ListAll(ctx context.Context) ([]domain.DataSet, error) {
	return s.datasets, nil
}

func TestServiceResolveWithEntities(t *testing.T) {
	child := dataSet("child")
	root := dataSet("root", child.ID)
	service := NewService(&stubSource{datasets: []domain.DataSet{child, root}})

	resolved, err := service.ResolveWithEntities(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 2 || resolved[0].Name != "root" || resolved[1].Name != "child" {
		t.Fatalf("unexpected resolution order: %+v", resolved)
	}
}
