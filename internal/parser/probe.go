package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kaptinlin/jsonschema"
	"github.com/valyala/fastjson"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// probeLines caps how many records a probe inspects.
const probeLines = 20

// dialect describes how to recognise one log format from its head.
type dialect struct {
	name   string
	schema func() (*jsonschema.Schema, error)
	// marker reports whether a decoded record looks like this dialect.
	marker func(v *fastjson.Value) bool
}

func compileSchema(src string) func() (*jsonschema.Schema, error) {
	return sync.OnceValues(func() (*jsonschema.Schema, error) {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schema, err := compiler.Compile([]byte(src))
		if err != nil {
			return nil, fmt.Errorf("compile schema: %w", err)
		}
		return schema, nil
	})
}

func (d dialect) probe(path string) model.ProbeResult {
	if ext := filepath.Ext(path); ext != ".jsonl" {
		return model.ProbeResult{Reasons: []string{fmt.Sprintf("extension %q is not .jsonl", ext)}}
	}

	records, err := headRecords(path, probeLines)
	if err != nil {
		return model.ProbeResult{Reasons: []string{err.Error()}}
	}

	var p fastjson.Parser
	total, matched := 0, 0
	var first []byte
	for _, rec := range records {
		v, err := p.ParseBytes(rec)
		if err != nil {
			continue
		}
		total++
		if d.marker(v) {
			matched++
			if first == nil {
				first = rec
			}
		}
	}

	if total == 0 {
		return model.ProbeResult{Reasons: []string{"no decodable records"}}
	}
	if matched == 0 {
		return model.ProbeResult{Reasons: []string{fmt.Sprintf("0/%d records carry %s markers", total, d.name)}}
	}

	ratio := float64(matched) / float64(total)
	res := model.ProbeResult{
		CanParse:   ratio >= 0.5,
		Confidence: 0.8 * ratio,
		Reasons:    []string{fmt.Sprintf("%d/%d records carry %s markers", matched, total, d.name)},
	}

	schema, err := d.schema()
	switch {
	case err != nil:
		res.Reasons = append(res.Reasons, err.Error())
	case schema.ValidateJSON(first).IsValid():
		res.Confidence += 0.2
		res.Reasons = append(res.Reasons, "record envelope matches schema")
	default:
		res.Reasons = append(res.Reasons, "record envelope does not match schema")
	}
	return res
}

// headRecords returns up to limit non-empty lines from the start of path.
func headRecords(path string, limit int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	var out [][]byte
	for len(out) < limit {
		raw, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
			out = append(out, trimmed)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}
	return out, nil
}

func stringIn(v *fastjson.Value, key string, values ...string) bool {
	s := string(v.GetStringBytes(key))
	for _, want := range values {
		if s == want {
			return true
		}
	}
	return false
}
