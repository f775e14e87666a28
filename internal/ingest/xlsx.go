package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"image-batch-service/internal/entity"
)

// ParseXLSX reads the first sheet of an Excel upload into rows. The
// sheet must carry the same header columns as the CSV format.
func ParseXLSX(r io.Reader) ([]entity.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(records)
}
