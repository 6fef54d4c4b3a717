package services

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"multimodal-rag-platform/models"
)

// SheetNormalizer flattens spreadsheet workbooks into text, one unit per
// sheet, rows newline-separated and cells tab-separated. Sheet names are kept
// in unit metadata.
type SheetNormalizer struct{}

// NewSheetNormalizer creates a spreadsheet normalizer.
func NewSheetNormalizer() *SheetNormalizer {
	return &SheetNormalizer{}
}

// Normalize reads every sheet of the workbook.
func (n *SheetNormalizer) Normalize(_ context.Context, doc *models.Document) ([]models.NormalizedUnit, error) {
	if len(doc.Raw) == 0 {
		return nil, newValidationError("spreadsheet %s is empty", doc.SourceName)
	}

	book, err := excelize.OpenReader(bytes.NewReader(doc.Raw))
	if err != nil {
		return nil, newValidationError("spreadsheet %s is unreadable: %v", doc.SourceName, err)
	}
	defer book.Close()

	var units []models.NormalizedUnit
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, newValidationError("failed to read sheet %q in %s: %v", sheet, doc.SourceName, err)
		}

		var sb strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}

		text := NormalizeWhitespace(sb.String())
		if text == "" {
			continue
		}
		units = append(units, models.NormalizedUnit{
			Text:     text,
			Modality: models.ModalityText,
			Metadata: map[string]interface{}{"sheet": sheet},
		})
	}

	if len(units) == 0 {
		return nil, newValidationError("spreadsheet %s has no cell content", doc.SourceName)
	}
	return units, nil
}
