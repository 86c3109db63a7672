// Package parser turns agent session logs into the canonical conversation
// model. Each dialect is a Parser; dialects that can resume from a byte
// offset also implement IncrementalParser.
package parser

import (
	"github.com/MikeSquared-Agency/scribe/internal/errkind"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type Parser interface {
	Name() string
	// Probe inspects a small head of the file and reports whether this
	// parser understands it. It never reads the whole file.
	Probe(path string) model.ProbeResult
	Parse(path string) (*model.ParseResult, error)
}

// IncrementalParser resumes parsing at a previously recorded record boundary.
// Only records that are complete are returned; a trailing record still being
// written is left for the next call.
type IncrementalParser interface {
	Parser
	ParseIncremental(path string, lastOffset int64, lastLine int) (*model.IncrementalParseResult, error)
}

// ParseIncremental calls p.ParseIncremental when p supports it and returns
// an unsupported-capability error otherwise.
func ParseIncremental(p Parser, path string, lastOffset int64, lastLine int) (*model.IncrementalParseResult, error) {
	ip, ok := p.(IncrementalParser)
	if !ok {
		return nil, errkind.Unsupported(p.Name())
	}
	return ip.ParseIncremental(path, lastOffset, lastLine)
}

// SupportsIncremental reports whether p can resume from an offset.
func SupportsIncremental(p Parser) bool {
	_, ok := p.(IncrementalParser)
	return ok
}
