// Package harness replays a scripted conversation dataset through the responder
// and records one TurnRecord per user turn.
package harness

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/semcache/internal/eval"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	colSessionID = "sessionid"
	colTurnIndex = "trnindx"
	colLabel     = "semduplicatelabel"
)

// LoadConversations reads a JSON array of sessions.
func LoadConversations(path string) ([]models.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	var convos []models.Conversation
	if err := json.Unmarshal(data, &convos); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	for i := range convos {
		if convos[i].SessionID == "" {
			return nil, fmt.Errorf("conversation %d has no sessionid", i)
		}
	}
	return convos, nil
}

// LoadLabels reads duplicate labels from a .csv or .xlsx file. Header names are trimmed
// and lower-cased; rows missing any of sessionid, trnindx or semduplicatelabel are
// skipped with a warning.
func LoadLabels(path string, logger *zap.Logger) (models.Labels, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv", "":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported label file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return parseLabelRows(rows, logger)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse labels: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("label workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func parseLabelRows(rows [][]string, logger *zap.Logger) (models.Labels, error) {
	labels := make(models.Labels)
	if len(rows) == 0 {
		return labels, nil
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{colSessionID, colTurnIndex, colLabel} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("label header is missing column %q", want)
		}
	}

	cell := func(row []string, name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for n, row := range rows[1:] {
		sid, tidx, lab := cell(row, colSessionID), cell(row, colTurnIndex), cell(row, colLabel)
		if sid == "" || tidx == "" || lab == "" {
			logger.Warn("Skipping label row with missing keys", zap.Int("row", n+2), zap.Strings("values", row))
			continue
		}
		idx, err := strconv.Atoi(tidx)
		if err != nil {
			logger.Warn("Skipping label row with bad turn index", zap.Int("row", n+2), zap.String("trnindx", tidx))
			continue
		}
		labels[models.LabelKey{SessionID: sid, TurnIndex: idx}] = eval.Truthy(lab)
	}
	return labels, nil
}
