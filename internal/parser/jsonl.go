package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
	"github.com/MikeSquared-Agency/scribe/internal/incremental"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// recordDecoder turns one JSONL record into at most one message. Records
// that carry only session metadata update the decoder and return nil. An
// error means the line is not a well-formed record.
type recordDecoder interface {
	decode(line []byte) (*model.ParsedMessage, error)
}

type scanResult struct {
	messages  []model.ParsedMessage
	offset    int64
	line      int
	bytesRead int64
	deferred  bool
	// size is the end of file as seen by this scan; hash covers [0, offset).
	size int64
	hash string
}

// scanJSONL reads records from offset to the end of the file.
//
// A line counts as consumed only when it ends in a newline and decodes. The
// last line of the file is held back if it is unterminated or fails to
// decode, since the writer may still be appending it. A decode failure on
// any earlier line is a parse failure carrying its line number.
//
// The reported size is where this scan hit EOF, not a later stat, so bytes
// appended after the scan always show up as growth on the next detection.
func scanJSONL(path string, offset int64, line int, dec recordDecoder) (scanResult, error) {
	res := scanResult{offset: offset, line: line}
	start := offset

	f, err := os.Open(path)
	if err != nil {
		return res, errkind.IO(fmt.Errorf("open: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return res, errkind.IO(fmt.Errorf("stat: %w", err))
	}
	if offset < 0 {
		return res, errkind.Wrap(fmt.Errorf("negative resume offset %d", offset), errkind.KindStateInconsistency, false)
	}
	if offset > info.Size() {
		// Truncated after change detection ran; the next pass sees the truncate.
		return res, errkind.IO(fmt.Errorf("file shrank to %d bytes below resume offset %d", info.Size(), offset))
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return res, errkind.IO(fmt.Errorf("seek: %w", err))
	}

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		raw, err := r.ReadBytes('\n')
		res.bytesRead += int64(len(raw))
		if err != nil && err != io.EOF {
			return res, errkind.IO(fmt.Errorf("read line %d: %w", res.line+1, err))
		}
		if len(raw) == 0 {
			break
		}
		if raw[len(raw)-1] != '\n' {
			res.deferred = true
			break
		}

		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
			msg, decErr := dec.decode(trimmed)
			if decErr != nil {
				if _, peekErr := r.Peek(1); peekErr == io.EOF {
					res.deferred = true
					break
				}
				return res, errkind.ParseFailureAt(res.line+1, decErr)
			}
			if msg != nil {
				res.messages = append(res.messages, *msg)
			}
		}

		res.offset += int64(len(raw))
		res.line++
	}

	res.size = start + res.bytesRead
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return res, errkind.IO(fmt.Errorf("seek: %w", err))
	}
	hash, err := incremental.HashPrefix(f, res.size, res.offset)
	if err != nil {
		return res, err
	}
	res.hash = hash
	return res, nil
}

func fullResult(name string, conv *model.ParsedConversation, res scanResult) *model.ParseResult {
	out := &model.ParseResult{
		Conversation:    conv,
		ParserName:      name,
		ParseMethod:     model.ParseMethodFull,
		ProcessedOffset: res.offset,
		ProcessedLine:   res.line,
		FileSizeBytes:   res.size,
		PartialHash:     res.hash,
		Deferred:        res.deferred,
	}
	if res.deferred {
		out.Warnings = append(out.Warnings, fmt.Sprintf("trailing record after line %d not yet complete", res.line))
	}
	return out
}

func incrementalResult(res scanResult) *model.IncrementalParseResult {
	msgs := res.messages
	if msgs == nil {
		msgs = []model.ParsedMessage{}
	}
	return &model.IncrementalParseResult{
		NewMessages:          msgs,
		LastProcessedOffset:  res.offset,
		LastProcessedLine:    res.line,
		FileSizeBytes:        res.size,
		PartialHash:          res.hash,
		LastMessageTimestamp: model.LastTimestamp(msgs),
		Deferred:             res.deferred,
	}
}

// sessionMeta collects metadata records seen while scanning.
type sessionMeta struct {
	version   string
	sessionID string
	cwd       string
	gitBranch string
	model     string
}

func (m *sessionMeta) observe(version, sessionID, cwd, gitBranch string) {
	if version != "" {
		m.version = version
	}
	if m.sessionID == "" {
		m.sessionID = sessionID
	}
	if m.cwd == "" {
		m.cwd = cwd
	}
	if gitBranch != "" {
		m.gitBranch = gitBranch
	}
}

func buildConversation(agentType string, meta sessionMeta, msgs []model.ParsedMessage) *model.ParsedConversation {
	if msgs == nil {
		msgs = []model.ParsedMessage{}
	}
	conv := &model.ParsedConversation{
		AgentType:        agentType,
		AgentVersion:     meta.version,
		SessionID:        meta.sessionID,
		WorkingDirectory: meta.cwd,
		GitBranch:        meta.gitBranch,
		Messages:         msgs,
		FilesTouched:     model.FilesTouched(msgs),
		EndTime:          model.LastTimestamp(msgs),
	}
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			continue
		}
		if conv.StartTime.IsZero() || m.Timestamp.Before(conv.StartTime) {
			conv.StartTime = m.Timestamp
		}
	}
	return conv
}
