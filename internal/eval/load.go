package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hyperjump/semcache/internal/models"
)

// Truthy reports whether s is one of true, 1, yes, y, t (case-insensitive).
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "t":
		return true
	}
	return false
}

// looseBool accepts JSON booleans, numbers and truthy strings; null stays unset.
type looseBool struct {
	set   bool
	value bool
}

func (b *looseBool) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	b.set = true
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	b.value = Truthy(s)
	return nil
}

func (b looseBool) ptr() *bool {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

type jsonlRecord struct {
	Setup             string    `json:"setup"`
	SessionID         string    `json:"sessionid"`
	TurnIndex         int       `json:"trnindx"`
	Threshold         float64   `json:"threshold"`
	CacheHit          looseBool `json:"cache_hit"`
	Similarity        *float64  `json:"similarity"`
	LatencyMS         float64   `json:"latency_ms"`
	LLMCalled         looseBool `json:"llm_called"`
	SemDuplicateLabel looseBool `json:"semduplicatelabel"`
	EmbeddingModel    string    `json:"embedding_model"`
	GenerationModel   string    `json:"generation_model"`
	RunID             string    `json:"run_id"`
}

// LoadJSONL reads one record per non-blank line.
func LoadJSONL(path string) ([]*models.TurnRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	var records []*models.TurnRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var raw jsonlRecord
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, &models.TurnRecord{
			Setup:             raw.Setup,
			SessionID:         raw.SessionID,
			TurnIndex:         raw.TurnIndex,
			Threshold:         raw.Threshold,
			CacheHit:          raw.CacheHit.value,
			Similarity:        raw.Similarity,
			LatencyMS:         int64(raw.LatencyMS),
			LLMCalled:         raw.LLMCalled.value,
			SemDuplicateLabel: raw.SemDuplicateLabel.ptr(),
			EmbeddingModel:    raw.EmbeddingModel,
			GenerationModel:   raw.GenerationModel,
			RunID:             raw.RunID,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return records, nil
}

// Discover returns every *.jsonl file under dir, recursively, sorted.
func Discover(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.jsonl")
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	sort.Strings(paths)
	return paths, nil
}

// SetupName derives a setup name from a log file name.
func SetupName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
