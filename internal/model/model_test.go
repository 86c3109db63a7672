package model

import (
	"testing"
	"time"
)

func TestLastTimestamp(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	msgs := []ParsedMessage{
		{Role: "user", Timestamp: t2},
		{Role: "assistant"},
		{Role: "user", Timestamp: t1},
	}

	got := LastTimestamp(msgs)
	if got == nil || !got.Equal(t2) {
		t.Fatalf("expected %v, got %v", t2, got)
	}
	if LastTimestamp(nil) != nil {
		t.Error("expected nil for no messages")
	}
}

func TestCodeChangesInMessageOrder(t *testing.T) {
	conv := ParsedConversation{Messages: []ParsedMessage{
		{CodeChanges: []CodeChange{{FilePath: "a.go"}}},
		{},
		{CodeChanges: []CodeChange{{FilePath: "b.go"}, {FilePath: "c.go"}}},
	}}

	changes := conv.CodeChanges()
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[0].FilePath != "a.go" || changes[2].FilePath != "c.go" {
		t.Errorf("unexpected order: %+v", changes)
	}
}

func TestTagSetMergeAndFlatten(t *testing.T) {
	rules := TagSet{HasErrors: true, ToolsUsed: []string{"Bash", "Edit"}, Iterations: 2}
	llm := TagSet{Intent: "bug_fix", Outcome: "success", ToolsUsed: []string{"Edit", "Read"}, Iterations: 1}

	merged := rules.Merge(llm)
	if merged.Intent != "bug_fix" || merged.Outcome != "success" {
		t.Errorf("expected llm fields to fill gaps, got %+v", merged)
	}
	if len(merged.ToolsUsed) != 3 {
		t.Errorf("expected 3 unique tools, got %v", merged.ToolsUsed)
	}
	if merged.Iterations != 2 || !merged.HasErrors {
		t.Errorf("unexpected rule fields: %+v", merged)
	}

	counts := map[string]int{}
	for _, tag := range merged.Tags() {
		counts[tag.Type]++
	}
	if counts["tool"] != 3 || counts["intent"] != 1 || counts["has_errors"] != 1 {
		t.Errorf("unexpected tag rows: %v", counts)
	}
	if counts["sentiment"] != 0 {
		t.Error("empty sentiment should not produce a row")
	}
}

func TestTouchedFilesAggregatesPerPath(t *testing.T) {
	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	msgs := []ParsedMessage{
		{Timestamp: ts, ToolCalls: []ToolCall{{ToolName: "Read", FilePath: "README.md"}}},
		{
			Timestamp: ts.Add(time.Minute),
			ToolCalls: []ToolCall{{ToolName: "Write", FilePath: "main.go"}},
			CodeChanges: []CodeChange{
				{FilePath: "main.go", ChangeType: ChangeCreate, LinesAdded: 10},
			},
		},
		{
			Timestamp:   ts.Add(2 * time.Minute),
			CodeChanges: []CodeChange{{FilePath: "main.go", ChangeType: ChangeEdit, LinesAdded: 2, LinesDeleted: 1}},
		},
	}

	got := TouchedFiles(msgs)
	if len(got) != 2 {
		t.Fatalf("expected 2 files, got %+v", got)
	}
	if got[0].FilePath != "README.md" || got[0].ChangeType != "" {
		t.Errorf("unexpected read-only entry: %+v", got[0])
	}
	mainGo := got[1]
	if mainGo.ChangeType != ChangeEdit || mainGo.LinesAdded != 12 || mainGo.LinesDeleted != 1 {
		t.Errorf("unexpected aggregate: %+v", mainGo)
	}
	if !mainGo.Timestamp.Equal(ts.Add(time.Minute)) {
		t.Errorf("expected first-touch timestamp, got %v", mainGo.Timestamp)
	}
}

func TestMessageColumnsNeverNull(t *testing.T) {
	cols, err := ParsedMessage{Role: "user", Content: "hi"}.EncodeColumns()
	if err != nil {
		t.Fatal(err)
	}
	if string(cols.ToolCalls) != "[]" || string(cols.CodeChanges) != "[]" || string(cols.Entities) != "{}" {
		t.Errorf("unexpected empty encoding: %s %s %s", cols.ToolCalls, cols.CodeChanges, cols.Entities)
	}

	var back ParsedMessage
	if err := back.DecodeColumns(cols); err != nil {
		t.Fatal(err)
	}
	if back.ToolCalls != nil || back.CodeChanges != nil || back.Entities != nil {
		t.Errorf("empty columns should decode to nil fields: %+v", back)
	}
}

func TestMessageColumnsKeepCanonicalParams(t *testing.T) {
	msg := ParsedMessage{ToolCalls: []ToolCall{{ToolName: "Read", Parameters: []byte(`{"file_path":"a.go"}`), FilePath: "a.go"}}}
	cols, err := msg.EncodeColumns()
	if err != nil {
		t.Fatal(err)
	}
	var back ParsedMessage
	if err := back.DecodeColumns(cols); err != nil {
		t.Fatal(err)
	}
	if len(back.ToolCalls) != 1 || string(back.ToolCalls[0].Parameters) != `{"file_path":"a.go"}` {
		t.Errorf("unexpected round trip: %+v", back.ToolCalls)
	}
}

func TestTagConfidenceAppliesToJudgedFields(t *testing.T) {
	set := TagSet{Intent: "feature", Sentiment: "positive", SentimentScore: 0.5, ToolsUsed: []string{"bash"}, Confidence: 0.8}
	for _, tag := range set.Tags() {
		switch tag.Type {
		case "intent", "sentiment", "sentiment_score":
			if tag.Confidence != 0.8 {
				t.Errorf("%s confidence = %v, want 0.8", tag.Type, tag.Confidence)
			}
		case "tool", "has_errors", "iterations":
			if tag.Confidence != 1 {
				t.Errorf("%s confidence = %v, want 1", tag.Type, tag.Confidence)
			}
		}
		if tag.Type == "sentiment_score" && tag.Value != "0.50" {
			t.Errorf("sentiment_score = %q, want 0.50", tag.Value)
		}
	}
}
