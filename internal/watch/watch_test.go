package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type countingProcessor struct {
	mu       sync.Mutex
	calls    map[string]int
	opts     map[string]ingest.Options
	status   ingest.Status
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (c *countingProcessor) Process(_ context.Context, path string, opts ingest.Options) ingest.Outcome {
	n := c.inFlight.Add(1)
	for {
		cur := c.maxSeen.Load()
		if n <= cur || c.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(c.delay)
	c.inFlight.Add(-1)

	c.mu.Lock()
	if c.calls == nil {
		c.calls = make(map[string]int)
		c.opts = make(map[string]ingest.Options)
	}
	c.calls[path]++
	c.opts[path] = opts
	c.mu.Unlock()

	status := c.status
	if status == "" {
		status = ingest.StatusSuccess
	}
	return ingest.Outcome{Status: status, FilePath: path, MessagesAdded: 1}
}

func (c *countingProcessor) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[path]
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "projects", "app", "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	hidden := filepath.Join(dir, ".cache", "c.jsonl")
	writeFile(t, a, "{}\n")
	writeFile(t, b, "{}\n")
	writeFile(t, hidden, "{}\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")

	got := Discover([]string{dir, b, filepath.Join(dir, "missing")}, discardLogger())
	want := []string{b, a}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/.codex/sessions"); got != filepath.Join(home, ".codex/sessions") {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := ExpandHome("/var/log"); got != "/var/log" {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestRunBatchBoundsWorkers(t *testing.T) {
	proc := &countingProcessor{delay: 10 * time.Millisecond}
	paths := []string{"/a", "/b", "/c", "/d", "/e", "/f"}

	sum, outcomes, err := RunBatch(context.Background(), proc, paths, 2, ingest.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Total != 6 || sum.Succeeded != 6 || sum.MessagesAdded != 6 {
		t.Errorf("unexpected summary %+v", sum)
	}
	for i, out := range outcomes {
		if out.FilePath != paths[i] {
			t.Errorf("outcome %d is for %q, want %q", i, out.FilePath, paths[i])
		}
	}
	if m := proc.maxSeen.Load(); m > 2 {
		t.Errorf("expected at most 2 in flight, saw %d", m)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &countingProcessor{}
	sum, _, err := RunBatch(ctx, proc, []string{"/a", "/b"}, 1, ingest.Options{})
	if err == nil {
		t.Fatal("expected context error")
	}
	if sum.Total != 0 {
		t.Errorf("expected nothing started, got %+v", sum)
	}
}

func TestPollerScanOnlyChangedFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")
	writeFile(t, a, "{}\n")
	writeFile(t, b, "{}\n")

	proc := &countingProcessor{}
	p := NewPoller(Config{Roots: []string{dir}, Workers: 2}, proc, discardLogger())

	if sum := p.Scan(context.Background()); sum.Total != 2 {
		t.Fatalf("first scan: expected 2, got %+v", sum)
	}
	if sum := p.Scan(context.Background()); sum.Total != 0 {
		t.Fatalf("second scan: expected nothing changed, got %+v", sum)
	}

	writeFile(t, a, "{}\n{}\n")
	if sum := p.Scan(context.Background()); sum.Total != 1 {
		t.Fatalf("third scan: expected 1 changed, got %+v", sum)
	}
	if proc.count(a) != 2 || proc.count(b) != 1 {
		t.Errorf("unexpected calls a=%d b=%d", proc.count(a), proc.count(b))
	}
}

func TestPollerRetriesFailures(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	writeFile(t, a, "{}\n")

	proc := &countingProcessor{status: ingest.StatusFailed}
	p := NewPoller(Config{Roots: []string{dir}}, proc, discardLogger())

	p.Scan(context.Background())
	p.Scan(context.Background())
	if proc.count(a) != 2 {
		t.Errorf("failed file should be retried, got %d calls", proc.count(a))
	}
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"), "{}\n")

	proc := &countingProcessor{}
	p := NewPoller(Config{Roots: []string{dir}, Interval: time.Millisecond}, proc, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	if proc.count(filepath.Join(dir, "a.jsonl")) != 1 {
		t.Errorf("unchanged file should be ingested once, got %d", proc.count(filepath.Join(dir, "a.jsonl")))
	}
}

type fakeConfigs struct {
	configs []model.WatchConfig
	err     error
}

func (f fakeConfigs) ListWatchConfigs(_ context.Context, activeOnly bool) ([]model.WatchConfig, error) {
	if !activeOnly {
		panic("poller should only ask for active configs")
	}
	return f.configs, f.err
}

func TestPollerUsesStoredConfigs(t *testing.T) {
	static := t.TempDir()
	stored := t.TempDir()
	a := filepath.Join(static, "a.jsonl")
	b := filepath.Join(stored, "b.jsonl")
	writeFile(t, a, "{}\n")
	writeFile(t, b, "{}\n")

	cfg := model.WatchConfig{ID: uuid.New(), Directory: stored, ProjectName: "scribe", DeveloperUsername: "dev", Active: true}
	proc := &countingProcessor{}
	p := NewPoller(Config{
		Roots:   []string{static, stored},
		Options: ingest.Options{EnableIncremental: true},
		Configs: fakeConfigs{configs: []model.WatchConfig{cfg}},
	}, proc, discardLogger())

	if sum := p.Scan(context.Background()); sum.Total != 2 {
		t.Fatalf("expected both files, got %+v", sum)
	}
	if proc.count(b) != 1 {
		t.Fatalf("file under both roots should be ingested once, got %d", proc.count(b))
	}

	got := proc.opts[b]
	if got.SourceConfigID != cfg.ID || got.ProjectName != "scribe" || got.DeveloperUsername != "dev" {
		t.Errorf("stored config options not applied: %+v", got)
	}
	if got.EnableIncremental || got.SourceType != ingest.SourceWatch {
		t.Errorf("expected config's incremental flag and watch source, got %+v", got)
	}
	if base := proc.opts[a]; base.SourceConfigID != uuid.Nil || !base.EnableIncremental {
		t.Errorf("static root should use the base options, got %+v", base)
	}
}

func TestPollerSurvivesConfigErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"), "{}\n")

	proc := &countingProcessor{}
	p := NewPoller(Config{Roots: []string{dir}, Configs: fakeConfigs{err: errors.New("db down")}}, proc, discardLogger())
	if sum := p.Scan(context.Background()); sum.Total != 1 {
		t.Errorf("static roots should still be scanned, got %+v", sum)
	}
}
