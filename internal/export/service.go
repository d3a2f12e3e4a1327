// Package export streams the flattened content of a data-set hierarchy as
// CSV or XLSX.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/domain"
)

// Format selects the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a user-supplied format string, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// MimeType returns the content type served for the format.
func (f Format) MimeType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

var columns = []string{
	"resource_name", "translation_name", "culture_name", "content",
	"content_template", "group_key", "group_label", "content_updated_at",
}

// Flattener resolves a hierarchy into its deduplicated current content.
type Flattener interface {
	Flatten(ctx context.Context, rootID uuid.UUID) ([]domain.Translation, error)
}

// Service renders flattened hierarchies into downloadable files.
type Service struct {
	flattener Flattener
	logger    *zap.Logger
}

// NewService creates an export service.
func NewService(flattener Flattener, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{flattener: flattener, logger: logger}
}

// Export streams the flattened hierarchy rooted at rootID into w and returns
// the number of data rows written.
func (s *Service) Export(ctx context.Context, rootID uuid.UUID, format Format, w io.Writer) (int, error) {
	rows, err := s.flattener.Flatten(ctx, rootID)
	if err != nil {
		return 0, fmt.Errorf("failed to flatten hierarchy: %w", err)
	}

	var written int
	switch format {
	case FormatXLSX:
		written, err = writeXLSX(rows, w)
	default:
		written, err = writeCSV(rows, w)
	}
	if err != nil {
		return 0, err
	}

	s.logger.Info("export finished",
		zap.String("root", rootID.String()),
		zap.String("format", string(format)),
		zap.Int("rows", written),
	)
	return written, nil
}

func writeCSV(rows []domain.Translation, w io.Writer) (int, error) {
	buffered := bufio.NewWriterSize(w, 1<<20) // 1 MiB buffer for streaming writes
	csvWriter := csv.NewWriter(buffered)

	if err := csvWriter.Write(columns); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		fillRecord(record, row)
		if err := csvWriter.Write(record); err != nil {
			return 0, fmt.Errorf("write translation row: %w", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return 0, fmt.Errorf("flush rows: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return 0, fmt.Errorf("flush buffered rows: %w", err)
	}
	return len(rows), nil
}

func writeXLSX(rows []domain.Translation, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	header := make([]any, len(columns))
	for i, name := range columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for idx, row := range rows {
		fillRecord(record, row)
		cells := make([]any, len(record))
		for i, value := range record {
			cells[i] = value
		}
		anchor, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return 0, fmt.Errorf("compute cell anchor: %w", err)
		}
		if err := f.SetSheetRow(sheet, anchor, &cells); err != nil {
			return 0, fmt.Errorf("write translation row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(rows), nil
}

func fillRecord(record []string, row domain.Translation) {
	record[0] = row.ResourceName
	record[1] = row.TranslationName
	record[2] = stringValue(row.CultureName)
	record[3] = row.Content
	record[4] = stringValue(row.ContentTemplate)
	record[5] = stringValue(row.GroupKey)
	record[6] = stringValue(row.GroupLabel)
	record[7] = timeValue(row.ContentUpdatedAt)
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func timeValue(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

// FileName builds a download file name from the data set's slug.
func FileName(dataSetName string, format Format) string {
	base := sanitizeFileComponent(dataSetName)
	if base == "" {
		base = "translations"
	}
	return base + "-" + strconv.FormatInt(time.Now().Unix(), 10) + "." + string(format)
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-")
}
