package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/lsurma/data-manager/internal/cultures"
	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/export"
	"github.com/lsurma/data-manager/internal/materialize"
	"github.com/lsurma/data-manager/internal/query"
)

func (h *Handler) listDataSets(w http.ResponseWriter, r *http.Request) {
	params := query.Params{
		Filters: []query.Filter{
			query.DataSetNameFilter{Name: r.URL.Query().Get("name")},
			query.DataSetSearchFilter{Term: r.URL.Query().Get("search")},
		},
		SortField:     r.URL.Query().Get("sort"),
		SortDirection: sortDirection(r),
		Limit:         intQuery(r, "limit", 50),
		Offset:        intQuery(r, "offset", 0),
	}

	items, total, err := h.dataSets.List(r.Context(), h.composer, params)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]dataSetResponse, len(items))
	for i, ds := range items {
		out[i] = toDataSetResponse(ds)
	}
	writeJSON(w, http.StatusOK, pageResponse[dataSetResponse]{Items: out, TotalCount: total})
}

func (h *Handler) saveDataSet(w http.ResponseWriter, r *http.Request) {
	var req dataSetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ds, err := h.buildDataSet(r, req)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, culture := range ds.Cultures {
		if err := h.validateCulture(culture); err != nil {
			writeError(w, err)
			return
		}
	}

	saved, err := h.dataSets.Save(r.Context(), ds)
	if err != nil {
		writeError(w, err)
		return
	}

	h.notifier.NotifyDataSet(saved, "data_set.saved", map[string]string{"name": saved.Name})
	writeJSON(w, http.StatusOK, toDataSetResponse(saved))
}

// buildDataSet maps the request onto a new or existing data set. Updates
// require the caller to be able to see the target.
func (h *Handler) buildDataSet(r *http.Request, req dataSetRequest) (domain.DataSet, error) {
	var ds domain.DataSet
	if req.ID != nil {
		if err := h.requireAccess(r, *req.ID); err != nil {
			return domain.DataSet{}, err
		}
		existing, err := h.dataSets.GetByID(r.Context(), *req.ID)
		if err != nil {
			return domain.DataSet{}, err
		}
		ds = existing
		slug, err := domain.CanonicalizeName(req.Name)
		if err != nil {
			return domain.DataSet{}, err
		}
		ds.Name = slug
	} else {
		created, err := domain.NewDataSet(req.Name)
		if err != nil {
			return domain.DataSet{}, err
		}
		ds = created
	}

	ds.Description = req.Description
	ds.Notes = req.Notes
	ds.AllowedIdentities = req.AllowedIdentities
	ds.Cultures = req.Cultures
	if req.SecretKey != nil {
		ds.SecretKey = req.SecretKey
	}
	ds.WebhookURLs = req.WebhookURLs

	includes := make([]domain.DataSetInclude, 0, len(req.Includes))
	for _, includedID := range req.Includes {
		if includedID == ds.ID {
			return domain.DataSet{}, domain.NewValidationError("includes", "a data set cannot include itself")
		}
		includes = append(includes, domain.NewDataSetInclude(ds.ID, includedID))
	}
	ds.Includes = includes
	return ds, nil
}

func (h *Handler) getDataSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	ds, err := h.dataSets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDataSetResponse(ds))
}

func (h *Handler) deleteDataSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dataSets.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getHierarchy(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	entities, err := h.hierarchy.ResolveWithEntities(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]dataSetResponse, len(entities))
	for i, ds := range entities {
		out[i] = toDataSetResponse(ds)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getFlattened(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	// The flatten pass itself bypasses authorization; the root must be
	// authorized here.
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.materializer.Flatten(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponses(rows))
}

func (h *Handler) materializeDataSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.materializer.Materialize(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Touched() > 0 {
		if ds, err := h.dataSets.GetByID(r.Context(), id); err == nil {
			h.notifier.NotifyDataSet(ds, "translations.materialized", map[string]int{"touched": result.Touched()})
		}
	}
	writeJSON(w, http.StatusOK, toSyncResponse(result))
}

func (h *Handler) reindexDataSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.materializer.Reindex(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncResponse(result))
}

func (h *Handler) exportDataSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, domain.NewValidationError("format", err.Error()))
		return
	}

	ds, err := h.dataSets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(ds.Name, format)+`"`)
	if _, err := h.exporter.Export(r.Context(), id, format, w); err != nil {
		// Headers are already out; all we can do is log.
		h.logger.Error("export failed mid-stream")
	}
}

func (h *Handler) getCultures(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.requireAccess(r, id); err != nil {
		writeError(w, err)
		return
	}

	ds, err := h.dataSets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cultures.For(ds))
}

func (h *Handler) accessibleDataSets(w http.ResponseWriter, r *http.Request) {
	scope, err := h.gate.AccessibleDataSetIDs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accessibleResponse{AllAccessible: scope.All, IDs: scope.IDs})
}

// requireAccess surfaces inaccessible data sets as not-found so existence
// never leaks.
func (h *Handler) requireAccess(r *http.Request, id uuid.UUID) error {
	scope, err := h.gate.AccessibleDataSetIDs(r.Context())
	if err != nil {
		return err
	}
	if !scope.Allows(id) {
		return domain.ErrNotFound
	}
	return nil
}

func (h *Handler) validateCulture(culture string) error {
	if strings.TrimSpace(culture) == "" {
		return domain.NewValidationError("cultures", "culture names must not be blank")
	}
	return cultures.Validate(culture)
}

func toSyncResponse(result materialize.SyncResult) syncResponse {
	resp := syncResponse{
		Processed: result.Processed,
		Inserted:  result.Inserted,
		Updated:   result.Updated,
		Removed:   result.Removed,
		Touched:   result.Touched(),
	}
	for _, err := range result.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

func sortDirection(r *http.Request) domain.SortDirection {
	if strings.EqualFold(r.URL.Query().Get("direction"), "desc") {
		return domain.SortDirectionDesc
	}
	return domain.SortDirectionAsc
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
