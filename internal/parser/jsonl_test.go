package parser

import (
	"encoding/json"
	"testing"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
	"github.com/MikeSquared-Agency/scribe/internal/incremental"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// echoDecoder turns {"text": "..."} records into user messages and treats
// {"meta": ...} records as metadata.
type echoDecoder struct {
	metaSeen int
}

func (d *echoDecoder) decode(line []byte) (*model.ParsedMessage, error) {
	var rec struct {
		Text *string `json:"text"`
		Meta any     `json:"meta"`
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, err
	}
	if rec.Text == nil {
		d.metaSeen++
		return nil, nil
	}
	return &model.ParsedMessage{Role: "user", Content: *rec.Text}, nil
}

func TestScanCountsEveryConsumedLine(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"meta":1}`, `{"text":"a"}`, ``, `{"text":"b"}`})

	dec := &echoDecoder{}
	res, err := scanJSONL(path, 0, 0, dec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res.messages))
	}
	if res.line != 4 {
		t.Errorf("expected 4 lines consumed, got %d", res.line)
	}
	if res.offset != fileSize(t, path) {
		t.Errorf("expected offset at end of file, got %d", res.offset)
	}
	if dec.metaSeen != 1 {
		t.Errorf("expected 1 metadata record, got %d", dec.metaSeen)
	}
	if res.deferred {
		t.Error("nothing should be deferred")
	}
}

func TestScanDefersUnterminatedTail(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`})
	complete := fileSize(t, path)
	appendRaw(t, path, `{"text":"b"}`)

	res, err := scanJSONL(path, 0, 0, &echoDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.messages) != 1 || res.offset != complete || res.line != 1 {
		t.Errorf("got %d messages offset=%d line=%d, want 1/%d/1", len(res.messages), res.offset, res.line, complete)
	}
	if !res.deferred {
		t.Error("expected unterminated tail to be deferred")
	}
}

func TestScanDefersUndecodableFinalLine(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`, `{"text":`})

	res, err := scanJSONL(path, 0, 0, &echoDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.line != 1 || !res.deferred {
		t.Errorf("expected final bad line deferred, got line=%d deferred=%v", res.line, res.deferred)
	}
}

func TestScanMalformedMiddleLineFails(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`, `not json`, `{"text":"c"}`})

	_, err := scanJSONL(path, 0, 0, &echoDecoder{})
	if !errkind.Is(err, errkind.KindParseFailure) {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if errkind.LineOf(err) != 2 {
		t.Errorf("expected failure on line 2, got %d", errkind.LineOf(err))
	}
}

func TestScanLineNumbersAreAbsoluteWhenResuming(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`, `{"text":"b"}`})
	off := fileSize(t, path)
	appendRaw(t, path, "garbage\n"+`{"text":"c"}`+"\n")

	_, err := scanJSONL(path, off, 2, &echoDecoder{})
	if errkind.LineOf(err) != 3 {
		t.Fatalf("expected failure on line 3, got %v", err)
	}
}

func TestScanOffsetPastEndIsRetryable(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`})

	_, err := scanJSONL(path, 1000, 1, &echoDecoder{})
	if !errkind.Is(err, errkind.KindIOFailure) || !errkind.RetryableOf(err) {
		t.Fatalf("expected retryable io failure for a file that shrank, got %v", err)
	}
}

func TestScanNegativeOffset(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`})

	_, err := scanJSONL(path, -1, 0, &echoDecoder{})
	if !errkind.Is(err, errkind.KindStateInconsistency) {
		t.Fatalf("expected state inconsistency, got %v", err)
	}
}

func TestScanReportsObservedSizeAndConsumedHash(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, []string{`{"text":"a"}`, `{"text":"b"}`})
	appendRaw(t, path, `{"text":"c`)

	res, err := scanJSONL(path, 0, 0, &echoDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.size != fileSize(t, path) {
		t.Errorf("expected size %d, got %d", fileSize(t, path), res.size)
	}
	if res.offset >= res.size {
		t.Errorf("unterminated tail should lie between offset %d and size %d", res.offset, res.size)
	}
	want, _ := incremental.HashFilePrefix(path, res.offset)
	if res.hash != want {
		t.Error("hash should cover exactly the consumed prefix")
	}

	resumed, err := scanJSONL(path, res.offset, res.line, &echoDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resumed.size != res.size || resumed.hash != res.hash {
		t.Errorf("resume with nothing new should report the same size and hash, got %d %s", resumed.size, resumed.hash)
	}
}

func TestScanMissingFile(t *testing.T) {
	_, err := scanJSONL(tempLog(t), 0, 0, &echoDecoder{})
	if !errkind.Is(err, errkind.KindIOFailure) || !errkind.RetryableOf(err) {
		t.Fatalf("expected retryable io failure, got %v", err)
	}
}

func TestScanEmptyFile(t *testing.T) {
	path := tempLog(t)
	writeLines(t, path, nil)

	res, err := scanJSONL(path, 0, 0, &echoDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.line != 0 || res.offset != 0 || len(res.messages) != 0 {
		t.Errorf("unexpected result for empty file: %+v", res)
	}
}
