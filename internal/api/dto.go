package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/versioning"
	"github.com/lsurma/data-manager/pkg/optional"
)

type dataSetRequest struct {
	ID                *uuid.UUID  `json:"id"`
	Name              string      `json:"name"`
	Description       *string     `json:"description"`
	Notes             *string     `json:"notes"`
	AllowedIdentities []string    `json:"allowedIdentities"`
	Cultures          []string    `json:"cultures"`
	SecretKey         *string     `json:"secretKey"`
	WebhookURLs       []string    `json:"webhookUrls"`
	Includes          []uuid.UUID `json:"includes"`
}

type dataSetResponse struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Description       *string     `json:"description,omitempty"`
	Notes             *string     `json:"notes,omitempty"`
	AllowedIdentities []string    `json:"allowedIdentities,omitempty"`
	Cultures          []string    `json:"cultures,omitempty"`
	WebhookURLs       []string    `json:"webhookUrls,omitempty"`
	Includes          []uuid.UUID `json:"includes"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func toDataSetResponse(ds domain.DataSet) dataSetResponse {
	return dataSetResponse{
		ID:                ds.ID,
		Name:              ds.Name,
		Description:       ds.Description,
		Notes:             ds.Notes,
		AllowedIdentities: ds.AllowedIdentities,
		Cultures:          ds.Cultures,
		WebhookURLs:       ds.WebhookURLs,
		Includes:          ds.IncludedIDs(),
		CreatedAt:         ds.CreatedAt,
		UpdatedAt:         ds.UpdatedAt,
	}
}

type translationResponse struct {
	ID                    uuid.UUID  `json:"id"`
	GroupKey              *string    `json:"groupKey,omitempty"`
	GroupLabel            *string    `json:"groupLabel,omitempty"`
	ResourceName          string     `json:"resourceName"`
	TranslationName       string     `json:"translationName"`
	CultureName           *string    `json:"cultureName"`
	Content               string     `json:"content"`
	ContentTemplate       *string    `json:"contentTemplate,omitempty"`
	ContentUpdatedAt      *time.Time `json:"contentUpdatedAt,omitempty"`
	DataSetID             *uuid.UUID `json:"dataSetId"`
	SourceTranslationID   *uuid.UUID `json:"sourceTranslationId,omitempty"`
	SourceID              *uuid.UUID `json:"sourceId,omitempty"`
	LayoutID              *uuid.UUID `json:"layoutId,omitempty"`
	VersionState          string     `json:"versionState"`
	OriginalTranslationID *uuid.UUID `json:"originalTranslationId,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func toTranslationResponse(t domain.Translation) translationResponse {
	return translationResponse{
		ID:                    t.ID,
		GroupKey:              t.GroupKey,
		GroupLabel:            t.GroupLabel,
		ResourceName:          t.ResourceName,
		TranslationName:       t.TranslationName,
		CultureName:           t.CultureName,
		Content:               t.Content,
		ContentTemplate:       t.ContentTemplate,
		ContentUpdatedAt:      t.ContentUpdatedAt,
		DataSetID:             t.DataSetID,
		SourceTranslationID:   t.SourceTranslationID,
		SourceID:              t.SourceID,
		LayoutID:              t.LayoutID,
		VersionState:          string(t.VersionState()),
		OriginalTranslationID: t.OriginalTranslationID,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

func toTranslationResponses(rows []domain.Translation) []translationResponse {
	out := make([]translationResponse, len(rows))
	for i, row := range rows {
		out[i] = toTranslationResponse(row)
	}
	return out
}

// saveTranslationRequest is the wire form of a partial update. Absent fields
// stay unspecified; explicit nulls clear nullable fields.
type saveTranslationRequest struct {
	ID               *uuid.UUID                   `json:"id"`
	ResourceName     optional.Optional[string]    `json:"resourceName,omitzero"`
	TranslationName  optional.Optional[string]    `json:"translationName,omitzero"`
	CultureName      optional.Optional[string]    `json:"cultureName,omitzero"`
	DataSetID        optional.Optional[uuid.UUID] `json:"dataSetId,omitzero"`
	Content          optional.Optional[string]    `json:"content,omitzero"`
	ContentTemplate  optional.Optional[string]    `json:"contentTemplate,omitzero"`
	ContentUpdatedAt optional.Optional[time.Time] `json:"contentUpdatedAt,omitzero"`
	GroupKey         optional.Optional[string]    `json:"groupKey,omitzero"`
	GroupLabel       optional.Optional[string]    `json:"groupLabel,omitzero"`
	SourceID         optional.Optional[uuid.UUID] `json:"sourceId,omitzero"`
	LayoutID         optional.Optional[uuid.UUID] `json:"layoutId,omitzero"`
	IsDraft          optional.Optional[bool]      `json:"isDraft,omitzero"`
}

func (r saveTranslationRequest) toCommand() versioning.SaveCommand {
	return versioning.SaveCommand{
		ID:               r.ID,
		ResourceName:     r.ResourceName,
		TranslationName:  r.TranslationName,
		CultureName:      r.CultureName,
		DataSetID:        r.DataSetID,
		Content:          r.Content,
		ContentTemplate:  r.ContentTemplate,
		ContentUpdatedAt: r.ContentUpdatedAt,
		GroupKey:         r.GroupKey,
		GroupLabel:       r.GroupLabel,
		SourceID:         r.SourceID,
		LayoutID:         r.LayoutID,
		IsDraft:          r.IsDraft,
	}
}

type pageResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
}

type accessibleResponse struct {
	AllAccessible bool        `json:"allAccessible"`
	IDs           []uuid.UUID `json:"ids,omitempty"`
}

type syncResponse struct {
	Processed int      `json:"processed"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Removed   int      `json:"removed"`
	Touched   int      `json:"touched"`
	Errors    []string `json:"errors,omitempty"`
}

type saveTranslationResponse struct {
	ID uuid.UUID `json:"id"`
}
