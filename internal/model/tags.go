package model

import "strconv"

// TagSet is the enrichment attached to a conversation after ingestion.
type TagSet struct {
	Intent         string   `json:"intent,omitempty"`
	Outcome        string   `json:"outcome,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	SentimentScore float64  `json:"sentiment_score,omitempty"`
	HasErrors      bool     `json:"has_errors"`
	ToolsUsed      []string `json:"tools_used,omitempty"`
	Patterns       []string `json:"patterns,omitempty"`
	Features       []string `json:"features,omitempty"`
	Problems       []string `json:"problems,omitempty"`
	Iterations     int      `json:"iterations"`
	// Confidence applies to the judged fields: intent, outcome, sentiment,
	// features and problems. Zero means certain.
	Confidence float64 `json:"confidence,omitempty"`
}

// Tag is the storage row form of a single tag.
type Tag struct {
	Type       string  `json:"tag_type"`
	Value      string  `json:"tag_value"`
	Confidence float64 `json:"confidence"`
}

// Merge fills empty fields of s from other and unions the list fields.
func (s TagSet) Merge(other TagSet) TagSet {
	out := s
	if out.Intent == "" {
		out.Intent = other.Intent
	}
	if out.Outcome == "" {
		out.Outcome = other.Outcome
	}
	if out.Sentiment == "" {
		out.Sentiment = other.Sentiment
		out.SentimentScore = other.SentimentScore
	}
	if out.Confidence == 0 {
		out.Confidence = other.Confidence
	}
	out.HasErrors = out.HasErrors || other.HasErrors
	out.ToolsUsed = union(out.ToolsUsed, other.ToolsUsed)
	out.Patterns = union(out.Patterns, other.Patterns)
	out.Features = union(out.Features, other.Features)
	out.Problems = union(out.Problems, other.Problems)
	if other.Iterations > out.Iterations {
		out.Iterations = other.Iterations
	}
	return out
}

// Tags flattens the set into storage rows.
func (s TagSet) Tags() []Tag {
	var tags []Tag
	add := func(typ, value string, confidence float64) {
		if value != "" {
			tags = append(tags, Tag{Type: typ, Value: value, Confidence: confidence})
		}
	}
	judged := s.Confidence
	if judged == 0 {
		judged = 1
	}
	add("intent", s.Intent, judged)
	add("outcome", s.Outcome, judged)
	add("sentiment", s.Sentiment, judged)
	if s.Sentiment != "" {
		add("sentiment_score", strconv.FormatFloat(s.SentimentScore, 'f', 2, 64), judged)
	}
	add("has_errors", strconv.FormatBool(s.HasErrors), 1)
	add("iterations", strconv.Itoa(s.Iterations), 1)
	for _, v := range s.ToolsUsed {
		add("tool", v, 1)
	}
	for _, v := range s.Patterns {
		add("pattern", v, 1)
	}
	for _, v := range s.Features {
		add("feature", v, judged)
	}
	for _, v := range s.Problems {
		add("problem", v, judged)
	}
	return tags
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, v := range append(append([]string(nil), a...), b...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
