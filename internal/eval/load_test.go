package eval

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/semcache/internal/models"
)

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semantic_cache_tau_0.82.jsonl")
	content := `{"setup":"semantic_cache_tau_0.82","sessionid":"s1","trnindx":0,"threshold":0.82,"cache_hit":false,"similarity":null,"latency_ms":812,"llm_called":true,"semduplicatelabel":null}

{"setup":"semantic_cache_tau_0.82","sessionid":"s1","trnindx":2,"threshold":0.82,"cache_hit":"true","similarity":0.91,"latency_ms":41,"llm_called":false,"semduplicatelabel":"yes"}
{"setup":"semantic_cache_tau_0.82","sessionid":"s2","trnindx":0,"cache_hit":1,"latency_ms":12.0,"semduplicatelabel":false}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	records, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0].CacheHit || records[0].SemDuplicateLabel != nil || records[0].Similarity != nil {
		t.Errorf("record 0=%+v", records[0])
	}
	if !records[1].CacheHit || records[1].SemDuplicateLabel == nil || !*records[1].SemDuplicateLabel {
		t.Errorf("string booleans should parse: %+v", records[1])
	}
	if !records[2].CacheHit || records[2].LatencyMS != 12 || *records[2].SemDuplicateLabel {
		t.Errorf("record 2=%+v", records[2])
	}
}

func TestLoadJSONL_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"setup\":\"x\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadJSONL(path)
	if err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Errorf("expected line-numbered error, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl", "a.jsonl", "notes.txt", filepath.Join("nested", "c.jsonl")} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 {
		t.Fatalf("Discover=%v", paths)
	}
	if filepath.Base(paths[0]) != "a.jsonl" {
		t.Errorf("paths should be sorted: %v", paths)
	}
	if SetupName(paths[0]) != "a" {
		t.Errorf("SetupName=%q", SetupName(paths[0]))
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", "y", " t "} {
		if !Truthy(v) {
			t.Errorf("Truthy(%q) should be true", v)
		}
	}
	for _, v := range []string{"false", "0", "no", "", "maybe"} {
		if Truthy(v) {
			t.Errorf("Truthy(%q) should be false", v)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	p := 0.5
	var buf bytes.Buffer
	err := WriteCSV(&buf, []*models.Summary{
		{Setup: "no_cache", N: 4, P50LatencyMS: 800, P95LatencyMS: 900, MeanLatencyMS: 812.5},
		{Setup: "semantic_cache_tau_0.82", N: 4, HitRate: 0.25, CallsAvoided: 1, Precision: &p},
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%v", lines)
	}
	if lines[0] != strings.Join(CSVHeader, ",") {
		t.Errorf("header=%q", lines[0])
	}
	if lines[1] != "no_cache,4,0,0,800,900,812.5,0,,," {
		t.Errorf("row 1=%q", lines[1])
	}
	if lines[2] != "semantic_cache_tau_0.82,4,0.25,1,0,0,0,0,0.5,," {
		t.Errorf("row 2=%q", lines[2])
	}
}
