package e2e

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var labelHeader = []string{"sessionid", "trnindx", "semduplicatelabel"}

func (c *Corpus) labelRows() [][]string {
	rows := make([][]string, 0, len(c.Labels))
	for _, l := range c.Labels {
		rows = append(rows, []string{l.SessionID, strconv.Itoa(l.TurnIndex), strconv.FormatBool(l.Duplicate)})
	}
	return rows
}

// WriteDataset writes the conversations as a JSON array to dir/conversations.json.
func (c *Corpus) WriteDataset(dir string) (string, error) {
	data, err := json.MarshalIndent(c.Conversations, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "conversations.json")
	return path, os.WriteFile(path, data, 0644)
}

// WriteLabelsCSV writes the labels to dir/labels.csv with a UTF-8 BOM and padded
// headers, the way spreadsheet exports arrive.
func (c *Corpus) WriteLabelsCSV(dir string) (string, error) {
	path := filepath.Join(dir, "labels.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString("\ufeff"); err != nil {
		return "", err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{" SessionID", "TrnIndx ", " SemDuplicateLabel "}); err != nil {
		return "", err
	}
	if err := w.WriteAll(c.labelRows()); err != nil {
		return "", err
	}
	return path, f.Close()
}

// WriteLabelsXLSX writes the labels to the first sheet of dir/labels.xlsx.
func (c *Corpus) WriteLabelsXLSX(dir string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := append([][]string{labelHeader}, c.labelRows()...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, "labels.xlsx")
	return path, f.SaveAs(path)
}
