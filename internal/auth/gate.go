package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/domain"
)

// DataSetLister is the slice of the data-set repository the gate needs.
type DataSetLister interface {
	ListAll(ctx context.Context) ([]domain.DataSet, error)
}

// Scope is the result of resolving authorization for data-set reads. When All
// is false an empty IDs slice means zero rows, never "unfiltered".
type Scope struct {
	All bool
	IDs []uuid.UUID
}

// Allows reports whether the scope covers the given data set id.
func (s Scope) Allows(id uuid.UUID) bool {
	if s.All {
		return true
	}
	for _, allowed := range s.IDs {
		if allowed == id {
			return true
		}
	}
	return false
}

// Gate narrows queries to data sets the caller may see.
type Gate struct {
	datasets        Lister
	adminIdentities map[string]struct{}
}

// Lister aliases DataSetLister for brevity inside the package.
type Lister = DataSetLister

// NewGate creates a gate. Identities listed as admins always resolve to the
// all-accessible scope.
func NewGate(datasets DataSetLister, adminIdentities []string) *Gate {
	admins := make(map[string]struct{}, len(adminIdentities))
	for _, id := range adminIdentities {
		admins[id] = struct{}{}
	}
	return &Gate{datasets: datasets, adminIdentities: admins}
}

// AccessibleDataSetIDs resolves the caller's scope: all-accessible for
// explicitly bypassed contexts and admins, otherwise the set of public data
// sets plus those listing the caller's identity. An anonymous caller sees
// public data sets only.
func (g *Gate) AccessibleDataSetIDs(ctx context.Context) (Scope, error) {
	if BypassFromContext(ctx) {
		return Scope{All: true}, nil
	}

	identity, authenticated := IdentityFromContext(ctx)
	if authenticated {
		if _, isAdmin := g.adminIdentities[identity]; isAdmin {
			return Scope{All: true}, nil
		}
	}

	all, err := g.datasets.ListAll(ctx)
	if err != nil {
		return Scope{}, fmt.Errorf("failed to list data sets for authorization: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(all))
	for _, ds := range all {
		if ds.IsPublic() {
			ids = append(ids, ds.ID)
			continue
		}
		if authenticated && ds.AccessibleBy(identity) {
			ids = append(ids, ds.ID)
		}
	}

	return Scope{IDs: ids}, nil
}
