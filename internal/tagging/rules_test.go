package tagging

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

func conversation(msgs ...model.ParsedMessage) *model.ParsedConversation {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	return &model.ParsedConversation{
		AgentType: "claude-code",
		SessionID: "sess-1",
		StartTime: start,
		EndTime:   &end,
		Messages:  msgs,
	}
}

func msg(role, content string) model.ParsedMessage {
	return model.ParsedMessage{Role: role, Content: content}
}

func TestRuleTagger_DetectsErrors(t *testing.T) {
	tags, err := NewRuleTagger().Tag(context.Background(), conversation(
		msg("user", "run the build"),
		msg("assistant", "The build failed with a Traceback in setup.py"),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tags.HasErrors {
		t.Error("expected has_errors")
	}

	tags, _ = NewRuleTagger().Tag(context.Background(), conversation(
		msg("user", "rename the handler"),
		msg("assistant", "Renamed it."),
	))
	if tags.HasErrors {
		t.Error("clean conversation should not have errors")
	}
}

func TestRuleTagger_ToolsFromCallsAndText(t *testing.T) {
	edit := msg("assistant", "")
	edit.ToolCalls = []model.ToolCall{{ToolName: "MultiEdit"}, {ToolName: "Grep"}, {ToolName: "TodoWrite"}}

	tags, _ := NewRuleTagger().Tag(context.Background(), conversation(
		msg("user", "please git commit when done and run go test"),
		edit,
	))
	want := []string{"edit", "git", "search", "test"}
	if !reflect.DeepEqual(tags.ToolsUsed, want) {
		t.Errorf("tools = %v, want %v", tags.ToolsUsed, want)
	}
}

func TestRuleTagger_Patterns(t *testing.T) {
	tags, _ := NewRuleTagger().Tag(context.Background(), conversation(
		msg("user", "refactor the parser and add unit tests"),
		msg("assistant", "I'll run mypy after installing the dependencies"),
	))
	want := []string{"dependency_management", "refactoring", "testing", "type_checking"}
	if !reflect.DeepEqual(tags.Patterns, want) {
		t.Errorf("patterns = %v, want %v", tags.Patterns, want)
	}
}

func TestRuleTagger_QuickResolution(t *testing.T) {
	conv := conversation(msg("user", "fix typo"), msg("assistant", "Done."))
	end := conv.StartTime.Add(time.Minute)
	conv.EndTime = &end

	tags, _ := NewRuleTagger().Tag(context.Background(), conv)
	if !reflect.DeepEqual(tags.Patterns, []string{"quick_resolution"}) {
		t.Errorf("patterns = %v, want [quick_resolution]", tags.Patterns)
	}

	conv.EndTime = nil
	tags, _ = NewRuleTagger().Tag(context.Background(), conv)
	if len(tags.Patterns) != 0 {
		t.Errorf("no end time should not be quick, got %v", tags.Patterns)
	}
}

func TestRuleTagger_LongConversationAndIterations(t *testing.T) {
	var msgs []model.ParsedMessage
	for i := 0; i < 30; i++ {
		msgs = append(msgs, msg("user", "next"), msg("assistant", "ok"))
	}
	tags, _ := NewRuleTagger().Tag(context.Background(), conversation(msgs...))
	if !reflect.DeepEqual(tags.Patterns, []string{"long_conversation"}) {
		t.Errorf("patterns = %v, want [long_conversation]", tags.Patterns)
	}
	if tags.Iterations != 30 {
		t.Errorf("iterations = %d, want 30", tags.Iterations)
	}
}
