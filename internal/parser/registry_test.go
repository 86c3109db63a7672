package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type stubParser struct {
	name  string
	probe model.ProbeResult
}

func (s *stubParser) Name() string                             { return s.name }
func (s *stubParser) Probe(string) model.ProbeResult           { return s.probe }
func (s *stubParser) Parse(string) (*model.ParseResult, error) { return nil, nil }

func TestSelectPicksEachDialect(t *testing.T) {
	reg := Default()
	dir := t.TempDir()

	cases := map[string][]string{
		AgentClaudeCode: ccLines,
		AgentCodex:      codexLines,
		AgentGateway:    gatewayLines,
	}
	for want, lines := range cases {
		path := filepath.Join(dir, want+".jsonl")
		writeLines(t, path, lines)

		p, ok := reg.Select(path)
		if !ok {
			t.Errorf("%s: no parser selected", want)
			continue
		}
		if p.Name() != want {
			t.Errorf("%s: selected %s", want, p.Name())
		}
	}
}

func TestSelectNoCandidate(t *testing.T) {
	reg := Default()
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.jsonl")
	writeLines(t, empty, nil)
	if _, ok := reg.Select(empty); ok {
		t.Error("empty file should not be claimed")
	}

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Select(other); ok {
		t.Error("non-jsonl file should not be claimed")
	}

	unknown := filepath.Join(dir, "unknown.jsonl")
	writeLines(t, unknown, []string{`{"level":"info","msg":"server started"}`})
	if _, ok := reg.Select(unknown); ok {
		t.Error("unrelated jsonl should not be claimed")
	}
}

func TestSelectTieGoesToFirstRegistered(t *testing.T) {
	reg := NewRegistry(
		&stubParser{name: "first", probe: model.ProbeResult{CanParse: true, Confidence: 0.7}},
		&stubParser{name: "second", probe: model.ProbeResult{CanParse: true, Confidence: 0.7}},
	)
	p, ok := reg.Select("x.jsonl")
	if !ok || p.Name() != "first" {
		t.Fatalf("expected first registered parser on tie, got %v", p)
	}
}

func TestSelectIgnoresConfidentParserThatCannotParse(t *testing.T) {
	reg := NewRegistry(
		&stubParser{name: "loud", probe: model.ProbeResult{CanParse: false, Confidence: 0.99}},
		&stubParser{name: "quiet", probe: model.ProbeResult{CanParse: true, Confidence: 0.3}},
	)
	reg.Register(&stubParser{name: "best", probe: model.ProbeResult{CanParse: true, Confidence: 0.9}})

	p, ok := reg.Select("x.jsonl")
	if !ok || p.Name() != "best" {
		t.Fatalf("expected best, got %v", p)
	}
}

func TestProbeAndLookup(t *testing.T) {
	reg := Default()
	path := tempLog(t)
	writeLines(t, path, codexLines)

	candidates := reg.Probe(path)
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.Parser == AgentCodex && (!c.Result.CanParse || c.Result.Confidence < 0.99) {
			t.Errorf("expected confident codex probe, got %+v", c.Result)
		}
		if c.Parser == AgentGateway && c.Incremental {
			t.Error("gateway candidate should not be incremental")
		}
	}

	if _, ok := reg.Lookup(AgentGateway); !ok {
		t.Error("expected gateway to be registered")
	}
	if _, ok := reg.Lookup("nope"); ok {
		t.Error("unexpected parser found")
	}
	if names := reg.Names(); len(names) != 3 || names[0] != AgentClaudeCode {
		t.Errorf("unexpected names %v", names)
	}
}
