package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadSheetRows returns the data rows of an .xlsx (first sheet) or .csv upload.
// The header row is dropped and every cell is whitespace-trimmed.
func ReadSheetRows(filename string, r io.Reader) ([][]string, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXlsxRows(r)
	case ".csv":
		rows, err = readCsvRows(r)
	default:
		return nil, NewValidationError(ErrCodeInvalidInput, "unsupported file type %q, expected .xlsx or .csv", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return [][]string{}, nil
	}
	data := rows[1:]
	for _, row := range data {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return data, nil
}

func readXlsxRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCsvRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// WriteSheetTemplate writes a single-sheet workbook with a bold header row.
func WriteSheetTemplate(w io.Writer, sheetName string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}
