package utils

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn reports whether the DataFrame has a column with the given name.
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Round1 rounds to one decimal place for percentage display.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places for currency/distance/rating display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteExcel streams the DataFrame as a single-sheet XLSX workbook.
func WriteExcel(df dataframe.DataFrame, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	// Header row.
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	// Data rows.
	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, colName := range colNames {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := df.Col(colName).Val(rowIdx)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveToExcel writes the DataFrame to an XLSX file on disk.
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, colName := range colNames {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := df.Col(colName).Val(rowIdx)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
