// Package hierarchy resolves the data-set inclusion graph into a
// priority-ordered list. Inclusion edges may legally form cycles and
// diamonds; traversal is an explicit breadth-first walk over an id-keyed
// arena with a visited set, never recursion.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/domain"
)

// DataSetSource is the slice of the data-set repository the resolver needs.
type DataSetSource interface {
	ListAll(ctx context.Context) ([]domain.DataSet, error)
}

// Service resolves inclusion hierarchies against stored data sets.
type Service struct {
	datasets DataSetSource
}

// NewService creates a hierarchy resolver.
func NewService(datasets DataSetSource) *Service {
	return &Service{datasets: datasets}
}

// Walk traverses the inclusion graph breadth-first from root and returns
// data-set ids in priority order: the root first, then its includes in edge
// order, then theirs, each id exactly once. Ids absent from the universe are
// skipped. An unknown root yields an empty result.
func Walk(rootID uuid.UUID, universe map[uuid.UUID]domain.DataSet) []uuid.UUID {
	if _, ok := universe[rootID]; !ok {
		return []uuid.UUID{}
	}

	ordered := make([]uuid.UUID, 0, len(universe))
	visited := map[uuid.UUID]struct{}{rootID: {}}
	queue := []uuid.UUID{rootID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, id)

		for _, includedID := range universe[id].IncludedIDs() {
			if _, seen := visited[includedID]; seen {
				continue
			}
			if _, known := universe[includedID]; !known {
				continue
			}
			visited[includedID] = struct{}{}
			queue = append(queue, includedID)
		}
	}

	return ordered
}

// Resolve returns the priority-ordered data-set ids reachable from root.
func (s *Service) Resolve(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error) {
	universe, err := s.universe(ctx)
	if err != nil {
		return nil, err
	}
	return Walk(rootID, universe), nil
}

// ResolveWithEntities returns the resolved hierarchy as full data sets in
// priority order.
func (s *Service) ResolveWithEntities(ctx context.Context, rootID uuid.UUID) ([]domain.DataSet, error) {
	universe, err := s.universe(ctx)
	if err != nil {
		return nil, err
	}

	ids := Walk(rootID, universe)
	datasets := make([]domain.DataSet, len(ids))
	for i, id := range ids {
		datasets[i] = universe[id]
	}
	return datasets, nil
}

func (s *Service) universe(ctx context.Context) (map[uuid.UUID]domain.DataSet, error) {
	all, err := s.datasets.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load data sets for hierarchy resolution: %w", err)
	}

	universe := make(map[uuid.UUID]domain.DataSet, len(all))
	for _, ds := range all {
		universe[ds.ID] = ds
	}
	return universe, nil
}
