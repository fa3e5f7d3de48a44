// reader.go
package file

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// NumericColumns lists the physical column names to load as floats; every
// other column stays a string so unknown categories pass through untouched.
type NumericColumns []string

// ReadDataset loads a bookings dataset by file extension (.csv or .xlsx).
func ReadDataset(filePath, sheetName string, numeric NumericColumns) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return ReadCSV(filePath, numeric)
	case ".xlsx":
		return ReadXLSX(filePath, sheetName, numeric)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("unsupported dataset format: %s", filePath)
	}
}

// ReadDatasetBytes parses an in-memory dataset (a mail attachment) by its
// file extension, without touching disk.
func ReadDatasetBytes(data []byte, ext, sheetName string, numeric NumericColumns) (dataframe.DataFrame, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		return readCSV(bytes.NewReader(data), numeric)
	case ".xlsx":
		return ReadXLSXBytes(data, sheetName, numeric)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("unsupported dataset format: %s", ext)
	}
}

// ReadCSV loads a CSV file into a DataFrame. Empty numeric cells become NA.
func ReadCSV(filePath string, numeric NumericColumns) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	return readCSV(f, numeric)
}

func readCSV(r io.Reader, numeric NumericColumns) (dataframe.DataFrame, error) {
	types := make(map[string]series.Type, len(numeric))
	for _, name := range numeric {
		types[name] = series.Float
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
	)
	if err := df.Error(); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to parse csv: %w", err)
	}
	return df, nil
}

// ReadXLSX loads one sheet of an XLSX workbook into a DataFrame. The first
// row is the header. An empty sheet name selects the first sheet.
func ReadXLSX(filePath, sheetName string, numeric NumericColumns) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName, numeric)
}

// ReadXLSXBytes is ReadXLSX over an in-memory workbook.
func ReadXLSXBytes(data []byte, sheetName string, numeric NumericColumns) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open xlsx data: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName, numeric)
}

func sheetToDataFrame(xlFile *xlsx.File, sheetName string, numeric NumericColumns) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("workbook has no sheets")
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		var ok bool
		if sheet, ok = xlFile.Sheet[sheetName]; !ok {
			return dataframe.DataFrame{}, fmt.Errorf("sheet %q not found", sheetName)
		}
	}

	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("sheet %q is empty", sheet.Name)
	}

	// First row is the header.
	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.String())
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	for _, row := range sheet.Rows[1:] {
		for i := range headers {
			val := ""
			if i < len(row.Cells) {
				val = row.Cells[i].String()
			}
			columns[i] = append(columns[i], val)
		}
	}

	numericSet := make(map[string]bool, len(numeric))
	for _, name := range numeric {
		numericSet[name] = true
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		t := series.String
		if numericSet[colName] {
			t = series.Float
		}
		seriesList[i] = series.New(columns[i], t, colName)
	}

	df := dataframe.New(seriesList...)
	if err := df.Error(); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to build frame: %w", err)
	}
	return df, nil
}
