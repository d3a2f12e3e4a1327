package domain

import (
	"time"

	"github.com/google/uuid"
)

// DataSet is a named, access-controlled collection of translations that may
// include other data sets. Name is always stored in canonical slug form.
type DataSet struct {
	ID                uuid.UUID
	Name              string
	Description       *string
	Notes             *string
	AllowedIdentities []string
	Cultures          []string
	SecretKey         *string
	WebhookURLs       []string
	Includes          []DataSetInclude
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewDataSet creates a data set with a canonicalized name.
func NewDataSet(name string) (DataSet, error) {
	slug, err := CanonicalizeName(name)
	if err != nil {
		return DataSet{}, err
	}
	now := time.Now()
	return DataSet{
		ID:        uuid.New(),
		Name:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsPublic reports whether the data set is readable without an identity match.
// An empty allowed-identity set means public.
func (d DataSet) IsPublic() bool {
	return len(d.AllowedIdentities) == 0
}

// AccessibleBy reports whether the given identity may see this data set.
func (d DataSet) AccessibleBy(identity string) bool {
	if d.IsPublic() {
		return true
	}
	for _, allowed := range d.AllowedIdentities {
		if allowed == identity {
			return true
		}
	}
	return false
}

// CulturesOrDefault returns the data set's culture list, falling back to the
// system cultures when none are configured.
func (d DataSet) CulturesOrDefault(system []string) []string {
	if len(d.Cultures) == 0 {
		return system
	}
	return d.Cultures
}

// IncludedIDs returns the ids of directly included data sets in edge order.
func (d DataSet) IncludedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(d.Includes))
	for i, inc := range d.Includes {
		ids[i] = inc.IncludedDataSetID
	}
	return ids
}

// DataSetInclude is a directed edge from a parent data set to an included one.
// The (parent, included) pair is unique; cycles are legal at the schema level
// and handled by the hierarchy resolver.
type DataSetInclude struct {
	ParentDataSetID   uuid.UUID
	IncludedDataSetID uuid.UUID
	CreatedAt         time.Time
}

// NewDataSetInclude creates an include edge.
func NewDataSetInclude(parentID, includedID uuid.UUID) DataSetInclude {
	return DataSetInclude{
		ParentDataSetID:   parentID,
		IncludedDataSetID: includedID,
		CreatedAt:         time.Now(),
	}
}
