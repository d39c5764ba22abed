package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	stories   []StoryRow
	changes   []StageChangeEvent
	exported  map[uuid.UUID]struct{}
	recorded  []uuid.UUID
	lastStage string
}

func (f *fakeStore) ListStories(_ context.Context, stage string, _ time.Time, _ time.Time, _ int) ([]StoryRow, error) {
	f.lastStage = stage
	return f.stories, nil
}

func (f *fakeStore) ListStageChanges(context.Context, time.Time, time.Time, int) ([]StageChangeEvent, error) {
	return f.changes, nil
}

func (f *fakeStore) ListExportedEventIDs(context.Context, []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if f.exported == nil {
		return map[uuid.UUID]struct{}{}, nil
	}
	return f.exported, nil
}

func (f *fakeStore) RecordExports(_ context.Context, ids []uuid.UUID) error {
	f.recorded = append(f.recorded, ids...)
	return nil
}

func newEngine(store Store) *gin.Engine {
	h := NewHandler(store)
	engine := gin.New()
	group := engine.Group("/exports", APIKeyAuthMiddleware("k3y"))
	group.GET("/stories.csv", h.ExportStoriesCSV)
	group.GET("/stories.xlsx", h.ExportStoriesXLSX)
	group.GET("/stage-changes.csv", h.ExportStageChangesCSV)
	return engine
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(APIKeyHeader, "k3y")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func sampleStories() []StoryRow {
	trip := "TRIP-1"
	updated := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return []StoryRow{
		{Contact: "C1", Stage: "Proposal", StoryVersion: 3, PrimaryTrip: &trip, LastTouchReason: "trip_updated", LastBuiltAt: updated, UpdatedAt: updated},
		{Contact: "C2", Stage: "Inquiry", StoryVersion: 1, LastTouchReason: "ensure_story", LastBuiltAt: updated, UpdatedAt: updated},
	}
}

func TestExportRequiresAPIKey(t *testing.T) {
	engine := newEngine(&fakeStore{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/stories.csv", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/exports/stories.csv", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportStoriesCSV(t *testing.T) {
	store := &fakeStore{stories: sampleStories()}
	engine := newEngine(store)

	w := get(engine, "/exports/stories.csv?stage=Proposal&timezone=Europe/Amsterdam")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Proposal", store.lastStage)

	r := csv.NewReader(bytes.NewReader(w.Body.Bytes()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Parameters:TimeZone=Europe/Amsterdam"}, records[0])
	assert.Equal(t, "Contact", records[1][0])
	assert.Equal(t, []string{"C1", "Proposal", "3", "TRIP-1", "trip_updated", "2025-05-01 14:00:00+0200", "2025-05-01 14:00:00+0200"}, records[2])
	assert.Equal(t, "", records[3][3])
}

func TestExportStoriesRejectsUnknownStage(t *testing.T) {
	engine := newEngine(&fakeStore{})
	w := get(engine, "/exports/stories.csv?stage=Won")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportStoriesRejectsInvertedRange(t *testing.T) {
	engine := newEngine(&fakeStore{})
	w := get(engine, "/exports/stories.csv?fromDate=2025-05-02&toDate=2025-05-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportStoriesXLSX(t *testing.T) {
	engine := newEngine(&fakeStore{stories: sampleStories()})

	w := get(engine, "/exports/stories.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Contact", rows[0][0])
	assert.Equal(t, "C2", rows[2][0])
}

func TestExportStageChangesOnlyNew(t *testing.T) {
	seen := uuid.New()
	fresh := uuid.New()
	occurred := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	ref := "TRIP-1"
	store := &fakeStore{
		changes: []StageChangeEvent{
			{EventID: seen, Contact: "C1", FromStage: "Inquiry", ToStage: "Discovery", OccurredAt: occurred},
			{EventID: fresh, Contact: "C1", FromStage: "Discovery", ToStage: "Proposal", SourceRef: &ref, OccurredAt: occurred},
		},
		exported: map[uuid.UUID]struct{}{seen: {}},
	}
	engine := newEngine(store)

	w := get(engine, "/exports/stage-changes.csv?onlyNew=true")
	require.Equal(t, http.StatusOK, w.Code)

	r := csv.NewReader(bytes.NewReader(w.Body.Bytes()))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, fresh.String(), records[2][0])
	assert.Equal(t, "TRIP-1", records[2][5])
	assert.Equal(t, []uuid.UUID{fresh}, store.recorded)
}

func TestExportStageChangesWithoutOnlyNewRecordsNothing(t *testing.T) {
	store := &fakeStore{changes: []StageChangeEvent{{EventID: uuid.New(), Contact: "C1", ToStage: "Discovery"}}}
	engine := newEngine(store)

	w := get(engine, "/exports/stage-changes.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.recorded)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 5000},
		{"?limit=10", 10},
		{"?limit=0", 5000},
		{"?limit=999999", 50000},
		{"?limit=abc", 5000},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		assert.Equal(t, tt.want, parseLimit(c, 5000, 50000), tt.query)
	}
}
