package harness

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/internal/storage"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const testDataset = `[
  {"sessionid": "s1", "turns": [
    {"role": "user", "text": "what is the refund window?"},
    {"role": "ai", "text": "30 days"},
    {"role": "user", "text": "and for electronics?"}
  ]},
  {"sessionid": "s2", "turns": [
    {"role": "user", "text": "what is the refund window?"}
  ]}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConversations(t *testing.T) {
	convos, err := LoadConversations(writeFile(t, "convos.json", testDataset))
	if err != nil {
		t.Fatal(err)
	}
	if len(convos) != 2 || len(convos[0].Turns) != 3 || convos[0].Turns[1].Role != "ai" {
		t.Errorf("convos=%+v", convos)
	}
	if _, err := LoadConversations(writeFile(t, "bad.json", `[{"turns":[]}]`)); err == nil {
		t.Error("expected error for missing sessionid")
	}
	if _, err := LoadConversations(writeFile(t, "bad.json", `{`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadLabels_CSV(t *testing.T) {
	content := "\ufeff SessionID , TrnIndx ,SemDuplicateLabel\n" +
		"s1, 0, false\n" +
		"s2,0,YES\n" +
		"s1,,true\n" +
		"s3,x,true\n"
	labels, err := LoadLabels(writeFile(t, "labels.csv", content), zap.NewNop())
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("labels=%v, want 2 entries", labels)
	}
	if v := labels.Lookup("s1", 0); v == nil || *v {
		t.Errorf("s1/0=%v, want false", v)
	}
	if v := labels.Lookup("s2", 0); v == nil || !*v {
		t.Errorf("s2/0=%v, want true", v)
	}
}

func TestLoadLabels_MissingColumn(t *testing.T) {
	if _, err := LoadLabels(writeFile(t, "labels.csv", "sessionid,label\ns1,true\n"), nil); err == nil {
		t.Error("expected error for missing trnindx column")
	}
	if _, err := LoadLabels(writeFile(t, "labels.json", "{}"), nil); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestLoadLabels_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"sessionid", "trnindx", "semduplicatelabel"},
		{"s1", 2, "t"},
		{"s2", 0, "0"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "labels.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	labels, err := LoadLabels(path, nil)
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if v := labels.Lookup("s1", 2); v == nil || !*v {
		t.Errorf("s1/2=%v, want true", v)
	}
	if v := labels.Lookup("s2", 0); v == nil || *v {
		t.Errorf("s2/0=%v, want false", v)
	}
}

func newTestRunner(t *testing.T, opts Options) (*Runner, *generation.MockGenerator, *int) {
	t.Helper()
	convos, err := LoadConversations(writeFile(t, "convos.json", testDataset))
	if err != nil {
		t.Fatal(err)
	}
	labels := models.Labels{
		{SessionID: "s1", TurnIndex: 0}: false,
		{SessionID: "s2", TurnIndex: 0}: true,
	}
	gen := generation.NewMockGenerator()
	built := 0
	factory := func() (embedding.Embedder, error) {
		built++
		return embedding.NewMockEmbedder(32), nil
	}
	if opts.SystemHash == "" {
		opts.SystemHash = "default_v1"
	}
	return NewRunner(convos, labels, factory, gen, opts, zap.NewNop()), gen, &built
}

func TestRun_Baseline(t *testing.T) {
	r, gen, built := newTestRunner(t, Options{WindowK: 0, EmbeddingModel: "text-embedding-004"})
	path := filepath.Join(t.TempDir(), "no_cache.jsonl")
	sink, err := storage.NewJSONLWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	s, err := r.Run(context.Background(), DefaultSetups()[0], sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Setup != "no_cache" || s.N != 3 || s.CallsAvoided != 0 || s.HitRate != 0 {
		t.Errorf("summary=%+v", s)
	}
	if gen.Calls() != 3 {
		t.Errorf("generator calls=%d, want 3", gen.Calls())
	}
	if *built != 0 {
		t.Error("baseline should not build an embedder")
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("records=%d, want 3", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(line, `"text-embedding-004"`) {
			t.Errorf("baseline record missing embedding model: %s", line)
		}
	}
}

func TestRun_SemanticCache(t *testing.T) {
	var progress bytes.Buffer
	r, gen, built := newTestRunner(t, Options{WindowK: 0, Progress: &progress})
	if r.UserTurns() != 3 {
		t.Fatalf("UserTurns=%d", r.UserTurns())
	}

	var records []*models.TurnRecord
	sink := recordingSink{records: &records}
	setup := DefaultSetups(0.82)[1]
	if setup.Name != "semantic_cache_tau_0.82" || !setup.UseCache {
		t.Fatalf("setup=%+v", setup)
	}

	s, err := r.Run(context.Background(), setup, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *built != 1 {
		t.Errorf("embedders built=%d, want 1", *built)
	}
	if s.N != 3 || s.CallsAvoided != 1 || s.HitRate != 0.333 {
		t.Errorf("summary=%+v", s)
	}
	if gen.Calls() != 2 {
		t.Errorf("generator calls=%d, want 2", gen.Calls())
	}
	if s.Precision == nil || *s.Precision != 1 || s.Recall == nil || *s.Recall != 1 {
		t.Errorf("precision=%v recall=%v", s.Precision, s.Recall)
	}

	if len(records) != 3 {
		t.Fatalf("records=%d", len(records))
	}
	last := records[2]
	if last.SessionID != "s2" || last.TurnIndex != 0 || !last.CacheHit || last.LLMCalled {
		t.Errorf("s2 record=%+v", last)
	}
	if last.Similarity == nil || *last.Similarity < 0.999 {
		t.Errorf("similarity=%v", last.Similarity)
	}
	if records[1].TurnIndex != 2 {
		t.Errorf("turn index should count ai turns, got %d", records[1].TurnIndex)
	}
	if records[0].RunID == "" || records[0].RunID != last.RunID {
		t.Error("records of one run share a run id")
	}
	if last.EmbeddingModel != "mock" || last.GenerationModel != "mock" {
		t.Errorf("models=%q/%q", last.EmbeddingModel, last.GenerationModel)
	}
	if !strings.Contains(progress.String(), "3/3") {
		t.Errorf("progress output=%q", progress.String())
	}
}

func TestRun_FreshStatePerRun(t *testing.T) {
	r, gen, _ := newTestRunner(t, Options{WindowK: 0})
	setup := DefaultSetups(0.82)[1]
	for i := 0; i < 2; i++ {
		s, err := r.Run(context.Background(), setup, nil)
		if err != nil {
			t.Fatal(err)
		}
		if s.CallsAvoided != 1 {
			t.Errorf("run %d: calls_avoided=%d, want 1", i, s.CallsAvoided)
		}
	}
	if gen.Calls() != 4 {
		t.Errorf("generator calls=%d, want 4", gen.Calls())
	}
}

func TestRun_GenerationFailureAborts(t *testing.T) {
	r, gen, _ := newTestRunner(t, Options{})
	gen.SetError(errors.New("quota"))
	_, err := r.Run(context.Background(), DefaultSetups()[0], nil)
	if !errors.Is(err, generation.ErrGenerationUnavailable) {
		t.Errorf("err=%v, want ErrGenerationUnavailable", err)
	}
}

type recordingSink struct {
	records *[]*models.TurnRecord
}

func (s recordingSink) WriteRecord(_ context.Context, rec *models.TurnRecord) error {
	*s.records = append(*s.records, rec)
	return nil
}

func (s recordingSink) Close() error { return nil }
