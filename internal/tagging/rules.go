package tagging

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const (
	longConversationMessages = 50
	quickResolutionMessages  = 4
	quickResolutionWindow    = 2 * time.Minute
)

var errorPattern = regexp.MustCompile(`(?i)\b(error|exception|traceback|failed|failure|warning)\b`)

type keywordRule struct {
	tag     string
	pattern *regexp.Regexp
}

var toolRules = []keywordRule{
	{"bash", regexp.MustCompile(`(?i)\bbash\b`)},
	{"read", regexp.MustCompile(`(?i)\bread(ing)? file\b`)},
	{"write", regexp.MustCompile(`(?i)\bwrit(e|ing) file\b`)},
	{"edit", regexp.MustCompile(`(?i)\bedit(ing)? file\b`)},
	{"git", regexp.MustCompile(`(?i)\bgit (add|branch|checkout|commit|diff|log|merge|pull|push|rebase|status)\b`)},
	{"test", regexp.MustCompile(`(?i)\b(pytest|go test|npm test|jest|unittest)\b`)},
}

// toolNames maps agent tool names onto the same vocabulary as toolRules.
var toolNames = map[string]string{
	"bash":         "bash",
	"shell":        "bash",
	"exec_command": "bash",
	"read":         "read",
	"write":        "write",
	"edit":         "edit",
	"multiedit":    "edit",
	"apply_patch":  "edit",
	"grep":         "search",
	"glob":         "search",
	"webfetch":     "web",
	"websearch":    "web",
}

var patternRules = []keywordRule{
	{"type_checking", regexp.MustCompile(`(?i)\b(mypy|pyright|tsc|type[ -]?check(ing)?)\b`)},
	{"testing", regexp.MustCompile(`(?i)\b(pytest|go test|jest|coverage|unit tests?)\b`)},
	{"debugging", regexp.MustCompile(`(?i)\b(debug(ging)?|debugger|breakpoints?|print statements?)\b`)},
	{"dependency_management", regexp.MustCompile(`(?i)\b(install(ing)?|dependenc(y|ies)|requirements\.txt|go\.mod|package\.json)\b`)},
	{"refactoring", regexp.MustCompile(`(?i)\brefactor(ing|ed)?\b`)},
}

// RuleTagger derives tags from message text and tool calls alone.
type RuleTagger struct{}

func NewRuleTagger() *RuleTagger { return &RuleTagger{} }

func (r *RuleTagger) Tag(_ context.Context, conv *model.ParsedConversation) (model.TagSet, error) {
	tags := model.TagSet{
		HasErrors:  hasErrors(conv.Messages),
		ToolsUsed:  toolsUsed(conv.Messages),
		Patterns:   patterns(conv),
		Iterations: iterations(conv.Messages),
	}
	return tags, nil
}

func hasErrors(msgs []model.ParsedMessage) bool {
	for _, m := range msgs {
		if errorPattern.MatchString(m.Content) {
			return true
		}
	}
	return false
}

func toolsUsed(msgs []model.ParsedMessage) []string {
	seen := make(map[string]bool)
	for _, m := range msgs {
		for _, c := range m.ToolCalls {
			if name, ok := toolNames[strings.ToLower(c.ToolName)]; ok {
				seen[name] = true
			}
		}
		for _, rule := range toolRules {
			if rule.pattern.MatchString(m.Content) {
				seen[rule.tag] = true
			}
		}
	}
	return sortedKeys(seen)
}

func patterns(conv *model.ParsedConversation) []string {
	seen := make(map[string]bool)
	if len(conv.Messages) > longConversationMessages {
		seen["long_conversation"] = true
	}
	if d, ok := duration(conv); ok && len(conv.Messages) <= quickResolutionMessages && d <= quickResolutionWindow {
		seen["quick_resolution"] = true
	}
	for _, m := range conv.Messages {
		for _, rule := range patternRules {
			if rule.pattern.MatchString(m.Content) {
				seen[rule.tag] = true
			}
		}
	}
	return sortedKeys(seen)
}

func duration(conv *model.ParsedConversation) (time.Duration, bool) {
	if conv.StartTime.IsZero() || conv.EndTime == nil {
		return 0, false
	}
	return conv.EndTime.Sub(conv.StartTime), true
}

// iterations counts user turns: each one is another round of asking.
func iterations(msgs []model.ParsedMessage) int {
	n := 0
	for _, m := range msgs {
		if m.Role == "user" {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
