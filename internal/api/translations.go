package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/cultures"
	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/middleware"
	"github.com/lsurma/data-manager/internal/query"
	"github.com/lsurma/data-manager/internal/versioning"
	"github.com/lsurma/data-manager/pkg/optional"
)

func (h *Handler) listTranslations(w http.ResponseWriter, r *http.Request) {
	filters, err := translationFilters(r)
	if err != nil {
		writeError(w, err)
		return
	}

	params := query.Params{
		Filters:       filters,
		SortField:     r.URL.Query().Get("sort"),
		SortDirection: sortDirection(r),
		Limit:         intQuery(r, "limit", 100),
		Offset:        intQuery(r, "offset", 0),
	}

	items, total, err := h.translations.List(r.Context(), h.composer, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[translationResponse]{
		Items:      toTranslationResponses(items),
		TotalCount: total,
	})
}

func translationFilters(r *http.Request) ([]query.Filter, error) {
	q := r.URL.Query()

	filters := []query.Filter{
		query.ResourceNameFilter{Name: q.Get("resourceName")},
		query.TranslationNameFilter{Name: q.Get("translationName")},
		query.SearchFilter{Term: q.Get("search")},
	}

	if cultures := q["culture"]; len(cultures) > 0 {
		filters = append(filters, query.CultureFilter{Cultures: cultures})
	}

	if raw := q.Get("dataSetId"); raw != "" {
		ids := make([]uuid.UUID, 0, 1)
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				return nil, domain.NewValidationError("dataSetId", "must be a comma-separated list of UUIDs")
			}
			ids = append(ids, id)
		}
		filters = append(filters, query.DataSetFilter{IDs: ids})
	}

	if raw := q.Get("versionState"); raw != "" {
		state := domain.VersionState(raw)
		switch state {
		case domain.VersionCurrent, domain.VersionDraft, domain.VersionOld:
		default:
			return nil, domain.NewValidationError("versionState", "must be one of current, draft, old")
		}
		filters = append(filters, query.VersionStateFilter{State: state})
	}

	if raw := q.Get("updatedSince"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, domain.NewValidationError("updatedSince", "must be an RFC 3339 timestamp")
		}
		filters = append(filters, query.UpdatedSinceFilter{Since: since})
	}

	return filters, nil
}

func (h *Handler) getTranslation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	row, err := h.loadTranslation(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if row.DataSetID != nil {
		if err := h.requireAccess(r, *row.DataSetID); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(row))
}

// loadTranslation goes through the request-scoped dataloader when one is
// installed so concurrent lookups batch into a single query.
func (h *Handler) loadTranslation(r *http.Request, id uuid.UUID) (domain.Translation, error) {
	if loader := middleware.TranslationLoaderFromContext(r.Context()); loader != nil {
		return loader.Load(r.Context(), id)
	}
	return h.translations.GetByID(r.Context(), id)
}

func (h *Handler) saveTranslation(w http.ResponseWriter, r *http.Request) {
	var req saveTranslationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := req.toCommand()
	if culture := cmd.CultureName.Ptr(); culture != nil {
		normalized, err := cultures.Normalize(*culture)
		if err != nil {
			writeError(w, err)
			return
		}
		cmd.CultureName = optional.Of(normalized)
	}

	// An id-only command still targets a data set; resolve it from the
	// stored row so the gate always runs before the write.
	dataSetID := cmd.DataSetID.Ptr()
	if dataSetID == nil && cmd.ID != nil {
		row, err := h.translations.GetByID(r.Context(), *cmd.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if row.DataSetID == nil {
			writeError(w, domain.ErrNotFound)
			return
		}
		dataSetID = row.DataSetID
	}
	if dataSetID != nil {
		if err := h.requireAccess(r, *dataSetID); err != nil {
			writeError(w, err)
			return
		}
	}

	id, err := h.writer.Save(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	h.notifyTranslationSaved(r, cmd, id)
	writeJSON(w, http.StatusOK, saveTranslationResponse{ID: id})
}

func (h *Handler) notifyTranslationSaved(r *http.Request, cmd versioning.SaveCommand, id uuid.UUID) {
	dataSetID := cmd.DataSetID.Ptr()
	if dataSetID == nil {
		if row, err := h.translations.GetByID(r.Context(), id); err == nil {
			dataSetID = row.DataSetID
		}
	}
	if dataSetID == nil {
		return
	}
	if ds, err := h.dataSets.GetByID(r.Context(), *dataSetID); err == nil {
		h.notifier.NotifyDataSet(ds, "translation.saved", map[string]string{"id": id.String()})
	}
}
