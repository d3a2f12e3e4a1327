package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/auth"
	"github.com/lsurma/data-manager/internal/cultures"
	"github.com/lsurma/data-manager/internal/domain"
	"github.com/lsurma/data-manager/internal/export"
	"github.com/lsurma/data-manager/internal/hierarchy"
	"github.com/lsurma/data-manager/internal/materialize"
	"github.com/lsurma/data-manager/internal/middleware"
	"github.com/lsurma/data-manager/internal/query"
	"github.com/lsurma/data-manager/internal/repository"
	"github.com/lsurma/data-manager/internal/versioning"
)

// stubDataSets implements the handful of DataSetRepository methods the HTTP
// layer reaches; embedding the interface panics loudly on anything else.
type stubDataSets struct {
	repository.DataSetRepository
	sets  map[uuid.UUID]domain.DataSet
	saved []domain.DataSet
}

func newStubDataSets(sets ...domain.DataSet) *stubDataSets {
	s := &stubDataSets{sets: make(map[uuid.UUID]domain.DataSet)}
	for _, ds := range sets {
		s.sets[ds.ID] = ds
	}
	return s
}

func (s *stubDataSets) GetByID(_ context.Context, id uuid.UUID) (domain.DataSet, error) {
	ds, ok := s.sets[id]
	if !ok {
		return domain.DataSet{}, domain.ErrNotFound
	}
	return ds, nil
}

func (s *stubDataSets) ListAll(_ context.Context) ([]domain.DataSet, error) {
	out := make([]domain.DataSet, 0, len(s.sets))
	for _, ds := range s.sets {
		out = append(out, ds)
	}
	return out, nil
}

func (s *stubDataSets) List(_ context.Context, _ *query.Composer, _ query.Params) ([]domain.DataSet, int, error) {
	all, _ := s.ListAll(context.Background())
	return all, len(all), nil
}

func (s *stubDataSets) Save(_ context.Context, ds domain.DataSet) (domain.DataSet, error) {
	s.sets[ds.ID] = ds
	s.saved = append(s.saved, ds)
	return ds, nil
}

func (s *stubDataSets) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.sets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sets, id)
	return nil
}

type stubTranslations struct {
	repository.TranslationRepository
	rows map[uuid.UUID]domain.Translation
}

func (s *stubTranslations) GetByID(_ context.Context, id uuid.UUID) (domain.Translation, error) {
	row, ok := s.rows[id]
	if !ok {
		return domain.Translation{}, domain.ErrNotFound
	}
	return row, nil
}

func (s *stubTranslations) List(_ context.Context, _ *query.Composer, _ query.Params) ([]domain.Translation, int, error) {
	out := make([]domain.Translation, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, len(out), nil
}

type stubMaterializer struct {
	flattened []domain.Translation
	result    materialize.SyncResult
}

func (s *stubMaterializer) Flatten(context.Context, uuid.UUID) ([]domain.Translation, error) {
	return s.flattened, nil
}

func (s *stubMaterializer) Materialize(context.Context, uuid.UUID) (materialize.SyncResult, error) {
	return s.result, nil
}

func (s *stubMaterializer) Reindex(context.Context, uuid.UUID) (materialize.SyncResult, error) {
	return s.result, nil
}

type stubWriter struct {
	cmds []versioning.SaveCommand
	id   uuid.UUID
}

func (s *stubWriter) Save(_ context.Context, cmd versioning.SaveCommand) (uuid.UUID, error) {
	s.cmds = append(s.cmds, cmd)
	return s.id, nil
}

type stubExporter struct{ payload string }

func (s *stubExporter) Export(_ context.Context, _ uuid.UUID, _ export.Format, w io.Writer) (int, error) {
	n, err := io.WriteString(w, s.payload)
	return n, err
}

type capturedEvent struct {
	dataSet   domain.DataSet
	eventType string
}

type stubNotifier struct{ events []capturedEvent }

func (s *stubNotifier) NotifyDataSet(ds domain.DataSet, eventType string, _ any) {
	s.events = append(s.events, capturedEvent{dataSet: ds, eventType: eventType})
}

type stubImporter struct{ hits int }

func (s *stubImporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.hits++
	w.WriteHeader(http.StatusOK)
}

type fixture struct {
	dataSets     *stubDataSets
	translations *stubTranslations
	materializer *stubMaterializer
	writer       *stubWriter
	exporter     *stubExporter
	importer     *stubImporter
	notifier     *stubNotifier
	server       http.Handler
}

func newFixture(t *testing.T, sets ...domain.DataSet) *fixture {
	t.Helper()

	f := &fixture{
		dataSets:     newStubDataSets(sets...),
		translations: &stubTranslations{rows: make(map[uuid.UUID]domain.Translation)},
		materializer: &stubMaterializer{},
		writer:       &stubWriter{id: uuid.New()},
		exporter:     &stubExporter{payload: "resource_name,translation_name\n"},
		importer:     &stubImporter{},
		notifier:     &stubNotifier{},
	}

	gate := auth.NewGate(f.dataSets, []string{"admin@example.com"})
	mux := NewRouter(Deps{
		Logger:       zap.NewNop(),
		DataSets:     f.dataSets,
		Translations: f.translations,
		Composer:     query.NewComposer(query.NewRegistry(), gate),
		Gate:         gate,
		Hierarchy:    hierarchy.NewService(f.dataSets),
		Materializer: f.materializer,
		Writer:       f.writer,
		Exporter:     f.exporter,
		Importer:     f.importer,
		Notifier:     f.notifier,
		Cultures:     cultures.NewProvider(nil),
	})
	f.server = middleware.IdentityMiddleware(mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target, identity string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != "" {
		req.Header.Set("X-Identity", identity)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func publicDataSet(t *testing.T, name string) domain.DataSet {
	t.Helper()
	ds, err := domain.NewDataSet(name)
	require.NoError(t, err)
	return ds
}

func TestGetDataSetHiddenWithoutAccess(t *testing.T) {
	ds := publicDataSet(t, "app-private")
	ds.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String(), "owner@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDataSetAdminSeesEverything(t *testing.T) {
	ds := publicDataSet(t, "app-private")
	ds.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String(), "admin@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSaveDataSetRejectsSelfInclude(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodPost, "/api/data-sets", "", dataSetRequest{
		ID:       &ds.ID,
		Name:     "app-main",
		Includes: []uuid.UUID{ds.ID},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "includes", resp.Field)
}

func TestSaveDataSetNotifiesWebhooks(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/data-sets", "", dataSetRequest{Name: "App Main"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dataSetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "app-main", resp.Name)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "data_set.saved", f.notifier.events[0].eventType)
}

func TestSaveDataSetRejectsUnknownCulture(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/data-sets", "", dataSetRequest{
		Name:     "app-main",
		Cultures: []string{"en", "???"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlattenedRequiresRootAccess(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	ds.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, ds)
	f.materializer.flattened = []domain.Translation{
		{ID: uuid.New(), ResourceName: "app.errors", TranslationName: "not_found", Content: "Not found"},
	}

	rec := f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String()+"/flattened", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String()+"/flattened", "owner@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []translationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "app.errors", rows[0].ResourceName)
}

func TestMaterializeReportsCountsAndNotifies(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)
	f.materializer.result = materialize.SyncResult{Processed: 5, Inserted: 2, Updated: 1}

	rec := f.do(t, http.MethodPost, "/api/data-sets/"+ds.ID.String()+"/materialize", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Processed)
	assert.Equal(t, 3, resp.Touched)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "translations.materialized", f.notifier.events[0].eventType)
}

func TestMaterializeNoChangesSkipsNotification(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodPost, "/api/data-sets/"+ds.ID.String()+"/materialize", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.notifier.events)
}

func TestExportStreamsWithHeaders(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String()+"/export?format=csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "app-main")
	assert.Equal(t, f.exporter.payload, rec.Body.String())
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodGet, "/api/data-sets/"+ds.ID.String()+"/export?format=pdf", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveTranslationNormalizesCulture(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodPost, "/api/translations", "", map[string]any{
		"resourceName":    "app.errors",
		"translationName": "not_found",
		"cultureName":     "EN_gb",
		"dataSetId":       ds.ID,
		"content":         "Not found",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.writer.cmds, 1)
	culture := f.writer.cmds[0].CultureName.Ptr()
	require.NotNil(t, culture)
	assert.Equal(t, "en-GB", *culture)

	var resp saveTranslationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, f.writer.id, resp.ID)
}

func TestSaveTranslationExplicitNullCultureKept(t *testing.T) {
	ds := publicDataSet(t, "app-main")
	f := newFixture(t, ds)

	rec := f.do(t, http.MethodPost, "/api/translations", "", map[string]any{
		"resourceName":    "app.errors",
		"translationName": "not_found",
		"cultureName":     nil,
		"dataSetId":       ds.ID,
		"content":         "Not found",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.writer.cmds, 1)
	cmd := f.writer.cmds[0]
	assert.True(t, cmd.CultureName.Specified())
	assert.True(t, cmd.CultureName.IsNull())
}

func TestSaveTranslationByIDChecksDataSetAccess(t *testing.T) {
	ds := publicDataSet(t, "app-private")
	ds.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, ds)

	row := domain.Translation{ID: uuid.New(), ResourceName: "app", TranslationName: "hello", DataSetID: &ds.ID, Content: "original"}
	f.translations.rows[row.ID] = row

	// An id-only command must be gated on the row's owning data set.
	rec := f.do(t, http.MethodPost, "/api/translations", "", map[string]any{
		"id":      row.ID,
		"content": "rewritten",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.writer.cmds)

	rec = f.do(t, http.MethodPost, "/api/translations", "owner@example.com", map[string]any{
		"id":      row.ID,
		"content": "rewritten",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.writer.cmds, 1)
}

func TestSaveTranslationUnknownIDIs404(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/translations", "", map[string]any{
		"id":      uuid.New(),
		"content": "anything",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.writer.cmds)
}

func importRequest(t *testing.T, dataSetID, identity string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("dataSetId", dataSetID))
	fw, err := mw.CreateFormFile("file", "rows.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("resource_name,translation_name,content\napp,hello,Hi\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if identity != "" {
		req.Header.Set("X-Identity", identity)
	}
	return req
}

func TestImportChecksDataSetAccess(t *testing.T) {
	ds := publicDataSet(t, "app-private")
	ds.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, ds)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, importRequest(t, ds.ID.String(), ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, f.importer.hits)

	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, importRequest(t, ds.ID.String(), "owner@example.com"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.importer.hits)
}

func TestImportRejectsMalformedDataSetID(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, importRequest(t, "not-a-uuid", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.importer.hits)
}

func TestSaveTranslationRejectsUnknownField(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/translations", "", map[string]any{
		"resourceName": "app.errors",
		"bogus":        true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTranslationChecksDataSetAccess(t *testing.T) {
	ds := publicDataSet(t, "app-private")
	ds.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, ds)

	row := domain.Translation{ID: uuid.New(), ResourceName: "app.errors", TranslationName: "not_found", DataSetID: &ds.ID}
	f.translations.rows[row.ID] = row

	rec := f.do(t, http.MethodGet, "/api/translations/"+row.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/translations/"+row.ID.String(), "owner@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTranslationUnknownIDIs404(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/translations/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTranslationsRejectsBadVersionState(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/translations?versionState=published", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessibleDataSets(t *testing.T) {
	public := publicDataSet(t, "app-public")
	private := publicDataSet(t, "app-private")
	private.AllowedIdentities = []string{"owner@example.com"}
	f := newFixture(t, public, private)

	rec := f.do(t, http.MethodGet, "/api/accessible-data-sets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp accessibleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.AllAccessible)
	assert.Equal(t, []uuid.UUID{public.ID}, resp.IDs)

	rec = f.do(t, http.MethodGet, "/api/accessible-data-sets", "admin@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.AllAccessible)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
