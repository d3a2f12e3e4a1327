package domain

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// TranslationSortField enumerates fields that can be sorted when listing
// translations. Unknown fields fall back to the default ordering.
type TranslationSortField string

const (
	TranslationSortFieldResourceName     TranslationSortField = "resource_name"
	TranslationSortFieldTranslationName  TranslationSortField = "translation_name"
	TranslationSortFieldCultureName      TranslationSortField = "culture_name"
	TranslationSortFieldContentUpdatedAt TranslationSortField = "content_updated_at"
	TranslationSortFieldUpdatedAt        TranslationSortField = "updated_at"
)

// DataSetSortField enumerates fields that can be sorted when listing data
// sets.
type DataSetSortField string

const (
	DataSetSortFieldName      DataSetSortField = "name"
	DataSetSortFieldCreatedAt DataSetSortField = "created_at"
	DataSetSortFieldUpdatedAt DataSetSortField = "updated_at"
)
