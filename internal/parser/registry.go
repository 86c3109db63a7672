package parser

import (
	"sync"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// Candidate is one parser's answer to a probe.
type Candidate struct {
	Parser      string            `json:"parser"`
	Incremental bool              `json:"incremental"`
	Result      model.ProbeResult `json:"result"`
}

// Registry picks a parser for a file by probing every registered parser.
// Registration order is the tie-break: on equal confidence the parser
// registered first wins.
type Registry struct {
	mu      sync.RWMutex
	parsers []Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Default returns a registry with every built-in dialect.
func Default() *Registry {
	return NewRegistry(NewClaudeCode(), NewCodex(), NewGateway())
}

func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = append(r.parsers, p)
}

func (r *Registry) snapshot() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Parser(nil), r.parsers...)
}

func (r *Registry) Names() []string {
	parsers := r.snapshot()
	names := make([]string, len(parsers))
	for i, p := range parsers {
		names[i] = p.Name()
	}
	return names
}

func (r *Registry) Lookup(name string) (Parser, bool) {
	for _, p := range r.snapshot() {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Probe runs every parser's probe against path, in registration order.
func (r *Registry) Probe(path string) []Candidate {
	parsers := r.snapshot()
	out := make([]Candidate, len(parsers))
	for i, p := range parsers {
		out[i] = Candidate{
			Parser:      p.Name(),
			Incremental: SupportsIncremental(p),
			Result:      p.Probe(path),
		}
	}
	return out
}

// Select returns the parser with the highest confidence among those that can
// parse path. It returns false when no parser claims the file.
func (r *Registry) Select(path string) (Parser, bool) {
	var best Parser
	bestConfidence := -1.0
	for _, p := range r.snapshot() {
		res := p.Probe(path)
		if !res.CanParse {
			continue
		}
		if res.Confidence > bestConfidence {
			best = p
			bestConfidence = res.Confidence
		}
	}
	return best, best != nil
}
