package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/auth"
	"github.com/lsurma/data-manager/internal/cultures"
	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/export"
	"github.com/lsurma/data-manager/internal/hierarchy"
	"github.com/lsurma/data-manager/internal/materialize"
	"github.com/lsurma/data-manager/internal/query"
	"github.com/lsurma/data-manager/internal/repository"
	"github.com/lsurma/data-manager/internal/versioning"
)

// Materializer runs the hierarchy-wide read and write passes.
type Materializer interface {
	Flatten(ctx context.Context, rootID uuid.UUID) ([]domain.Translation, error)
	Materialize(ctx context.Context, rootID uuid.UUID) (materialize.SyncResult, error)
	Reindex(ctx context.Context, dataSetID uuid.UUID) (materialize.SyncResult, error)
}

// Writer persists translation save commands.
type Writer interface {
	Save(ctx context.Context, cmd versioning.SaveCommand) (uuid.UUID, error)
}

// Exporter streams a flattened data set in the requested format.
type Exporter interface {
	Export(ctx context.Context, rootID uuid.UUID, format export.Format, w io.Writer) (int, error)
}

// Notifier fans save events out to a data set's webhooks.
type Notifier interface {
	NotifyDataSet(ds domain.DataSet, eventType string, data any)
}

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Logger       *zap.Logger
	DataSets     repository.DataSetRepository
	Translations repository.TranslationRepository
	Composer     *query.Composer
	Gate         *auth.Gate
	Hierarchy    *hierarchy.Service
	Materializer Materializer
	Writer       Writer
	Exporter     Exporter
	Importer     http.Handler
	Notifier     Notifier
	Cultures     *cultures.Provider
}

// Handler serves the JSON API.
type Handler struct {
	logger       *zap.Logger
	dataSets     repository.DataSetRepository
	translations repository.TranslationRepository
	composer     *query.Composer
	gate         *auth.Gate
	hierarchy    *hierarchy.Service
	materializer Materializer
	writer       Writer
	exporter     Exporter
	notifier     Notifier
	cultures     *cultures.Provider
}

// NewRouter wires every endpoint onto a ServeMux.
func NewRouter(deps Deps) *http.ServeMux {
	h := &Handler{
		logger:       deps.Logger,
		dataSets:     deps.DataSets,
		translations: deps.Translations,
		composer:     deps.Composer,
		gate:         deps.Gate,
		hierarchy:    deps.Hierarchy,
		materializer: deps.Materializer,
		writer:       deps.Writer,
		exporter:     deps.Exporter,
		notifier:     deps.Notifier,
		cultures:     deps.Cultures,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/data-sets", h.listDataSets)
	mux.HandleFunc("POST /api/data-sets", h.saveDataSet)
	mux.HandleFunc("GET /api/data-sets/{id}", h.getDataSet)
	mux.HandleFunc("DELETE /api/data-sets/{id}", h.deleteDataSet)
	mux.HandleFunc("GET /api/data-sets/{id}/hierarchy", h.getHierarchy)
	mux.HandleFunc("GET /api/data-sets/{id}/flattened", h.getFlattened)
	mux.HandleFunc("POST /api/data-sets/{id}/materialize", h.materializeDataSet)
	mux.HandleFunc("POST /api/data-sets/{id}/reindex", h.reindexDataSet)
	mux.HandleFunc("GET /api/data-sets/{id}/export", h.exportDataSet)
	mux.HandleFunc("GET /api/data-sets/{id}/cultures", h.getCultures)

	mux.HandleFunc("GET /api/translations", h.listTranslations)
	mux.HandleFunc("GET /api/translations/{id}", h.getTranslation)
	mux.HandleFunc("POST /api/translations", h.saveTranslation)

	mux.HandleFunc("GET /api/accessible-data-sets", h.accessibleDataSets)

	if deps.Importer != nil {
		mux.Handle("POST /api/import", h.guardImport(deps.Importer))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// guardImport authorizes the import target before handing the request to the
// ingestion handler. ParseMultipartForm caches the parsed form on the
// request, so the inner handler reuses it.
func (h *Handler) guardImport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, domain.NewValidationError("form", "invalid multipart form data"))
			return
		}
		id, err := uuid.Parse(strings.TrimSpace(r.FormValue("dataSetId")))
		if err != nil {
			writeError(w, domain.NewValidationError("dataSetId", "must be a valid UUID"))
			return
		}
		if err := h.requireAccess(r, id); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
