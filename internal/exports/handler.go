package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sentra_backend/internal/story/domain"
	"sentra_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	defaultTimezone = "UTC"
	dateLayout      = "2006-01-02"
	timeLayout      = "2006-01-02 15:04:05-0700"
	sheetName       = "Stories"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Store is the data the export endpoints read.
type Store interface {
	ListStories(ctx context.Context, stage string, from time.Time, to time.Time, limit int) ([]StoryRow, error)
	ListStageChanges(ctx context.Context, from time.Time, to time.Time, limit int) ([]StageChangeEvent, error)
	ListExportedEventIDs(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
	RecordExports(ctx context.Context, eventIDs []uuid.UUID) error
}

// Handler handles story export requests.
type Handler struct {
	repo Store
}

// NewHandler creates a new export handler.
func NewHandler(repo Store) *Handler {
	return &Handler{repo: repo}
}

// ---- Story snapshot exports ----

// ExportStoriesCSV handles GET /api/v1/exports/stories.csv
func (h *Handler) ExportStoriesCSV(c *gin.Context) {
	stories, location, tzName, ok := h.loadStories(c)
	if !ok {
		return
	}

	writer, ok := startCsvResponse(c, "stories.csv", tzName, storyHeaders())
	if !ok {
		return
	}
	for _, s := range stories {
		if err := writer.Write(storyFields(s, location)); err != nil {
			return
		}
	}
	writer.Flush()
}

// ExportStoriesXLSX handles GET /api/v1/exports/stories.xlsx
func (h *Handler) ExportStoriesXLSX(c *gin.Context) {
	stories, location, _, ok := h.loadStories(c)
	if !ok {
		return
	}

	f, err := buildStoriesWorkbook(stories, location)
	if err != nil {
		_ = c.Error(err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to build workbook", nil)
		return
	}
	defer func() { _ = f.Close() }()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=stories.xlsx")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) loadStories(c *gin.Context) ([]StoryRow, *time.Location, string, bool) {
	stage := strings.TrimSpace(c.Query("stage"))
	if stage != "" && !domain.Stage(stage).IsKnown() {
		httpkit.Error(c, http.StatusBadRequest, "invalid stage", nil)
		return nil, nil, "", false
	}

	fromDate, toDate, err := parseDateRange(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid date range", err.Error())
		return nil, nil, "", false
	}
	location, tzName, ok := parseTimezone(c)
	if !ok {
		return nil, nil, "", false
	}
	limit := parseLimit(c, 5000, 50000)

	stories, err := h.repo.ListStories(c.Request.Context(), stage, fromDate, toDate, limit)
	if httpkit.HandleError(c, err) {
		return nil, nil, "", false
	}
	return stories, location, tzName, true
}

func buildStoriesWorkbook(stories []StoryRow, location *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := sw.SetRow("A1", toCells(storyHeaders())); err != nil {
		_ = f.Close()
		return nil, err
	}
	for i, s := range stories {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := sw.SetRow(cell, toCells(storyFields(s, location))); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// ---- Stage change export ----

// ExportStageChangesCSV handles GET /api/v1/exports/stage-changes.csv.
// With onlyNew=true, changes exported by an earlier call are skipped and
// the returned ones are remembered.
func (h *Handler) ExportStageChangesCSV(c *gin.Context) {
	fromDate, toDate, err := parseDateRange(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid date range", err.Error())
		return
	}
	location, tzName, ok := parseTimezone(c)
	if !ok {
		return
	}
	limit := parseLimit(c, 5000, 50000)
	onlyNew := parseBool(c.Query("onlyNew"))

	events, err := h.repo.ListStageChanges(c.Request.Context(), fromDate, toDate, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	exported := map[uuid.UUID]struct{}{}
	if onlyNew {
		exported, err = h.repo.ListExportedEventIDs(c.Request.Context(), collectEventIDs(events))
		if httpkit.HandleError(c, err) {
			return
		}
	}

	writer, ok := startCsvResponse(c, "stage-changes.csv", tzName, stageChangeHeaders())
	if !ok {
		return
	}
	written, ok := writeStageChangeRows(writer, events, exported, location)
	if !ok {
		return
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return
	}

	if onlyNew {
		if err := h.repo.RecordExports(c.Request.Context(), written); err != nil {
			_ = c.Error(err)
		}
	}
}

// ---- Helpers ----

func storyHeaders() []string {
	return []string{
		"Contact",
		"Stage",
		"Story Version",
		"Primary Trip",
		"Last Touch Reason",
		"Last Built At",
		"Updated At",
	}
}

func storyFields(s StoryRow, location *time.Location) []string {
	primaryTrip := ""
	if s.PrimaryTrip != nil {
		primaryTrip = *s.PrimaryTrip
	}
	return []string{
		s.Contact,
		s.Stage,
		strconv.Itoa(s.StoryVersion),
		primaryTrip,
		s.LastTouchReason,
		formatTime(s.LastBuiltAt, location),
		formatTime(s.UpdatedAt, location),
	}
}

func stageChangeHeaders() []string {
	return []string{
		"Event ID",
		"Contact",
		"From Stage",
		"To Stage",
		"Source Type",
		"Source",
		"Occurred At",
	}
}

func stageChangeFields(e StageChangeEvent, location *time.Location) []string {
	return []string{
		e.EventID.String(),
		e.Contact,
		e.FromStage,
		e.ToStage,
		derefString(e.SourceDocType),
		derefString(e.SourceRef),
		formatTime(e.OccurredAt, location),
	}
}

func startCsvResponse(c *gin.Context, filename string, tzName string, headers []string) (*csv.Writer, bool) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write([]string{fmt.Sprintf("Parameters:TimeZone=%s", tzName)}); err != nil {
		return nil, false
	}
	if err := writer.Write(headers); err != nil {
		return nil, false
	}
	return writer, true
}

func writeStageChangeRows(writer *csv.Writer, events []StageChangeEvent, exported map[uuid.UUID]struct{}, location *time.Location) ([]uuid.UUID, bool) {
	written := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		if _, exists := exported[e.EventID]; exists {
			continue
		}
		if err := writer.Write(stageChangeFields(e, location)); err != nil {
			return nil, false
		}
		written = append(written, e.EventID)
	}
	return written, true
}

func collectEventIDs(events []StageChangeEvent) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.EventID)
	}
	return ids
}

func toCells(fields []string) []interface{} {
	cells := make([]interface{}, len(fields))
	for i, f := range fields {
		cells[i] = f
	}
	return cells
}

func parseTimezone(c *gin.Context) (*time.Location, string, bool) {
	tzName := strings.TrimSpace(c.DefaultQuery("timezone", defaultTimezone))
	location, err := time.LoadLocation(tzName)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid timezone", nil)
		return nil, "", false
	}
	return location, tzName, true
}

func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	defaultFrom := now.AddDate(0, 0, -90)
	fromStr := strings.TrimSpace(c.DefaultQuery("fromDate", ""))
	toStr := strings.TrimSpace(c.DefaultQuery("toDate", ""))

	from := defaultFrom
	to := now

	if fromStr != "" {
		parsed, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("toDate before fromDate")
	}
	return from, to, nil
}

func parseLimit(c *gin.Context, fallback int, max int) int {
	limit := fallback
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if limit > max {
		return max
	}
	if limit < 1 {
		return fallback
	}
	return limit
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func formatTime(value time.Time, location *time.Location) string {
	if value.IsZero() {
		return ""
	}
	return value.In(location).Format(timeLayout)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
