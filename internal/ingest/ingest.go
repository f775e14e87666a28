// Package ingest turns uploaded spreadsheets into validated row sets.
// Anything rejected here never reaches the job pipeline.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"image-batch-service/internal/entity"
)

// Required spreadsheet columns, matched case-sensitively against the
// header row.
const (
	columnSerial    = "S. No."
	columnProduct   = "Product Name"
	columnImageURLs = "Input Image Urls"
)

// ErrEmptyFile marks an upload with no header row at all. A file with a
// header but zero data rows is admitted and fails inside the run.
var ErrEmptyFile = errors.New("the uploaded file is empty")

// SchemaError reports a missing required column.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("file must contain %q column", e.Column)
}

// ParseCSV reads a comma-separated upload into rows.
func ParseCSV(r io.Reader) ([]entity.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records)
}

// fromRecords maps a header row plus data records to entity rows. The
// header may order columns freely; extra columns are ignored.
func fromRecords(records [][]string) ([]entity.Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := records[0]
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	for _, required := range []string{columnSerial, columnProduct, columnImageURLs} {
		if _, ok := idx[required]; !ok {
			return nil, &SchemaError{Column: required}
		}
	}

	rows := make([]entity.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, entity.Row{
			Serial:      cell(record, idx[columnSerial]),
			ProductName: cell(record, idx[columnProduct]),
			ImageURLs:   SplitImageURLs(cell(record, idx[columnImageURLs])),
		})
	}
	return rows, nil
}

// SplitImageURLs splits a comma-delimited URL list, trimming each entry
// and dropping empties.
func SplitImageURLs(s string) []string {
	parts := strings.Split(s, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if u := strings.TrimSpace(p); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
