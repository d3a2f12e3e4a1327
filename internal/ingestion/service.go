// Package ingestion imports translation rows from uploaded CSV and XLSX
// files, routing every row through the versioning writer.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/cultures"
	"github.com/lsurma/data-manager/internal/versioning"
	"github.com/lsurma/data-manager/pkg/optional"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
	}
)

// Recognized column headers after normalization. resource_name,
// translation_name and content are required; the rest are optional.
const (
	colResourceName     = "resource_name"
	colTranslationName  = "translation_name"
	colCultureName      = "culture_name"
	colContent          = "content"
	colContentTemplate  = "content_template"
	colGroupKey         = "group_key"
	colGroupLabel       = "group_label"
	colIsDraft          = "is_draft"
	colContentUpdatedAt = "content_updated_at"
)

// Writer is the versioning write path the importer feeds.
type Writer interface {
	SaveAll(ctx context.Context, cmds []versioning.SaveCommand) ([]uuid.UUID, error)
}

// Service imports tabular translation data into a data set.
type Service struct {
	writer Writer
	logger *zap.Logger
}

// NewService creates a new ingestion service.
func NewService(writer Writer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{writer: writer, logger: logger}
}

// Request describes the ingestion input.
type Request struct {
	DataSetID      uuid.UUID
	FileName       string
	HeaderRowIndex *int
	// DraftByDefault imports rows without an is_draft cell as drafts.
	DraftByDefault bool
	Data           io.Reader
}

// RowError ties a validation failure to its 1-based file row.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	TotalRows   int        `json:"totalRows"`
	ValidRows   int        `json:"validRows"`
	InvalidRows int        `json:"invalidRows"`
	RowErrors   []RowError `json:"rowErrors,omitempty"`
}

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// Ingest parses the uploaded file, validates every row, and writes the valid
// ones through the versioning writer in a single shared session. Invalid
// rows are reported per row number and never abort the import.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	var summary Summary

	if req.DataSetID == uuid.Nil {
		return summary, errors.New("data set id is required")
	}
	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, errors.New("file is empty")
	}

	table, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}
	if len(table.headers) == 0 {
		return summary, errors.New("no header row detected")
	}

	columns := mapColumns(table.headers)
	for _, required := range []string{colResourceName, colTranslationName, colContent} {
		if _, ok := columns[required]; !ok {
			return summary, fmt.Errorf("missing required column %q", required)
		}
	}

	summary.TotalRows = len(table.rows)

	var commands []versioning.SaveCommand
	for rowIdx, row := range table.rows {
		rowNumber := table.headerRowIndex + rowIdx + 2 // include header row (1-based)

		cmd, err := s.buildCommand(req, columns, row)
		if err != nil {
			summary.InvalidRows++
			summary.RowErrors = append(summary.RowErrors, RowError{RowNumber: rowNumber, Message: err.Error()})
			continue
		}
		commands = append(commands, cmd)
	}

	if len(commands) > 0 {
		if _, err := s.writer.SaveAll(ctx, commands); err != nil {
			return summary, fmt.Errorf("failed to save imported translations: %w", err)
		}
		summary.ValidRows = len(commands)
	}

	s.logger.Info("translation import finished",
		zap.String("data_set", req.DataSetID.String()),
		zap.String("file", req.FileName),
		zap.Int("total", summary.TotalRows),
		zap.Int("valid", summary.ValidRows),
		zap.Int("invalid", summary.InvalidRows),
	)
	return summary, nil
}

func (s *Service) buildCommand(req Request, columns map[string]int, row []string) (versioning.SaveCommand, error) {
	cell := func(name string) (string, bool) {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	resource, _ := cell(colResourceName)
	if resource == "" {
		return versioning.SaveCommand{}, errors.New("resource_name is required")
	}
	name, _ := cell(colTranslationName)
	if name == "" {
		return versioning.SaveCommand{}, errors.New("translation_name is required")
	}
	content, _ := cell(colContent)

	cmd := versioning.SaveCommand{
		ResourceName:    optional.Of(resource),
		TranslationName: optional.Of(name),
		DataSetID:       optional.Of(req.DataSetID),
		Content:         optional.Of(content),
		CultureName:     optional.Null[string](),
		IsDraft:         optional.Of(req.DraftByDefault),
	}

	if culture, ok := cell(colCultureName); ok && culture != "" {
		normalized, err := cultures.Normalize(culture)
		if err != nil {
			return versioning.SaveCommand{}, fmt.Errorf("culture_name %q: %v", culture, err)
		}
		cmd.CultureName = optional.Of(normalized)
	}
	if template, ok := cell(colContentTemplate); ok && template != "" {
		cmd.ContentTemplate = optional.Of(template)
	}
	if groupKey, ok := cell(colGroupKey); ok && groupKey != "" {
		cmd.GroupKey = optional.Of(groupKey)
	}
	if groupLabel, ok := cell(colGroupLabel); ok && groupLabel != "" {
		cmd.GroupLabel = optional.Of(groupLabel)
	}
	if raw, ok := cell(colIsDraft); ok && raw != "" {
		draft, err := parseBool(raw)
		if err != nil {
			return versioning.SaveCommand{}, fmt.Errorf("is_draft %q: %v", raw, err)
		}
		cmd.IsDraft = optional.Of(draft)
	}
	if raw, ok := cell(colContentUpdatedAt); ok && raw != "" {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return versioning.SaveCommand{}, fmt.Errorf("content_updated_at %q: %v", raw, err)
		}
		cmd.ContentUpdatedAt = optional.Of(ts)
	}

	return cmd, nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if len(cleanRow(records[*headerRowIndex])) == 0 {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		for idx := *headerRowIndex + 1; idx < len(records); idx++ {
			if len(cleanRow(records[idx])) == 0 {
				continue
			}
			dataRows = append(dataRows, records[idx])
		}
	} else {
		for idx, row := range records {
			if len(cleanRow(row)) == 0 {
				continue
			}
			if headerRow == nil {
				headerRow = row
				headerIndex = idx
				continue
			}
			dataRows = append(dataRows, row)
		}
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	return tableData{
		headers:        headers,
		rows:           dataRows,
		headerRowIndex: headerIndex,
	}, nil
}

func mapColumns(headers []string) map[string]int {
	columns := make(map[string]int, len(headers))
	for idx, header := range headers {
		if _, dup := columns[header]; !dup {
			columns[header] = idx
		}
	}
	return columns
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		headers[idx] = strings.Trim(name, "_")
	}
	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "yes", "y":
		return true, nil
	case "0", "no", "n":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
