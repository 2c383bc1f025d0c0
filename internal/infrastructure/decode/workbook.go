package decode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/carebridge/carechat/internal/core/domain"
)

// decodeWorkbook maps an xlsx workbook to one page per sheet. Cell values
// are joined row by row so lab panels and medication tables survive as
// readable text.
func decodeWorkbook(data []byte) ([]domain.Page, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var pages []domain.Page
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var b strings.Builder
		b.WriteString(sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteByte('\n')
			b.WriteString(line)
		}

		pages = append(pages, domain.Page{
			Text:    b.String(),
			HasText: true,
		})
	}

	return pages, nil
}
