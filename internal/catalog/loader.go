package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for feed files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Loader yields the full listing catalog. Implementations must return a fresh
// snapshot on every call.
type Loader interface {
	Load(ctx context.Context) (*Records, error)
}

// FileLoader reads the catalog from a CSV or XLSX file on every Load call.
type FileLoader struct {
	Path string
	// Sheet selects the XLSX worksheet. The first sheet is used when empty.
	Sheet  string
	logger *zap.Logger
}

func NewFileLoader(path, sheet string, logger *zap.Logger) *FileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileLoader{
		Path:   strings.TrimSpace(path),
		Sheet:  strings.TrimSpace(sheet),
		logger: logger,
	}
}

func (l *FileLoader) Load(ctx context.Context) (*Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.Path == "" {
		return nil, errors.New("catalog path is not configured")
	}

	var (
		rows [][]string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(l.Path)); ext {
	case ".csv":
		rows, err = readCSV(l.Path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(l.Path, l.Sheet)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", l.Path, err)
	}

	records, err := fromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %q: %w", l.Path, err)
	}

	l.logger.Debug("catalog loaded", zap.String("path", l.Path), zap.Int("records", records.Len()))

	return records, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	return file.GetRows(sheet)
}

// fromRows treats the first non-empty row as the header.
func fromRows(rows [][]string) (*Records, error) {
	records := &Records{}

	var header []string
	for _, row := range rows {
		if isBlank(row) {
			continue
		}

		if header == nil {
			header = make([]string, len(row))
			for i, col := range row {
				col = strings.TrimPrefix(col, "\ufeff")
				header[i] = strings.ToLower(strings.TrimSpace(col))
			}
			continue
		}

		raw := make(map[string]any, len(header))
		for i, col := range header {
			if col == "" || i >= len(row) {
				continue
			}
			raw[col] = row[i]
		}

		record, err := DecodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", records.Len()+1, err)
		}
		records.Items = append(records.Items, record)
	}

	return records, nil
}

func isBlank(row []string) bool {
	for _, col := range row {
		if strings.TrimSpace(col) != "" {
			return false
		}
	}
	return true
}
