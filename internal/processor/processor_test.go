package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIngester struct {
	mu    sync.Mutex
	out   ingest.Outcome
	paths []string
	opts  []ingest.Options
}

func (f *fakeIngester) Ingest(_ context.Context, path string, opts ingest.Options) ingest.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.opts = append(f.opts, opts)
	out := f.out
	out.FilePath = path
	return out
}

type fakeTagger struct {
	set   model.TagSet
	err   error
	calls int
}

func (f *fakeTagger) Tag(_ context.Context, _ *model.ParsedConversation) (model.TagSet, error) {
	f.calls++
	return f.set, f.err
}

type fakeTagStore struct {
	saved map[uuid.UUID][]model.Tag
	err   error
}

func (f *fakeTagStore) SaveTags(_ context.Context, id uuid.UUID, tags []model.Tag) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[uuid.UUID][]model.Tag)
	}
	f.saved[id] = tags
	return nil
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.msgs = append(f.msgs, published{subject, data})
	return f.err
}

func successOutcome(id uuid.UUID) ingest.Outcome {
	return ingest.Outcome{
		Status:          ingest.StatusSuccess,
		ConversationID:  id,
		FullParseReason: ingest.ReasonNewFile,
		ParserName:      "codex",
		MessagesAdded:   2,
		Conversation: &model.ParsedConversation{
			AgentType: "codex",
			Messages:  []model.ParsedMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		},
	}
}

func TestProcess_TagsAndPublishes(t *testing.T) {
	id := uuid.New()
	ing := &fakeIngester{out: successOutcome(id)}
	tagger := &fakeTagger{set: model.TagSet{Intent: "feature", Iterations: 1}}
	store := &fakeTagStore{}
	pub := &fakePublisher{}

	p := New(ing, tagger, store, pub, ingest.Options{EnableIncremental: true}, discardLogger())
	out := p.Process(context.Background(), "/logs/a.jsonl", ingest.Options{SourceType: ingest.SourceCLI})

	if out.Status != ingest.StatusSuccess {
		t.Fatalf("expected success, got %s", out.Status)
	}
	if len(store.saved[id]) == 0 {
		t.Fatal("expected tags saved for conversation")
	}
	if len(pub.msgs) != 1 || pub.msgs[0].subject != hermes.SubjectIngestCompleted {
		t.Fatalf("expected one completion event, got %+v", pub.msgs)
	}
	evt, ok := pub.msgs[0].data.(hermes.IngestEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", pub.msgs[0].data)
	}
	if evt.ConversationID != id.String() || evt.MessagesAdded != 2 || evt.FullParseReason != "new_file" {
		t.Errorf("unexpected event %+v", evt)
	}
	found := false
	for _, tag := range evt.Tags {
		if tag == "intent:feature" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected intent:feature in %v", evt.Tags)
	}
}

func TestProcess_IncrementalNotRetagged(t *testing.T) {
	out := successOutcome(uuid.New())
	out.Incremental = true
	out.Conversation = nil
	tagger := &fakeTagger{}

	p := New(&fakeIngester{out: out}, tagger, &fakeTagStore{}, nil, ingest.Options{}, discardLogger())
	p.Process(context.Background(), "/logs/a.jsonl", ingest.Options{})

	if tagger.calls != 0 {
		t.Errorf("incremental outcome should not be tagged, got %d calls", tagger.calls)
	}
}

func TestProcess_FailureStillPublished(t *testing.T) {
	out := ingest.Outcome{
		Status:    ingest.StatusFailed,
		Stage:     ingest.StageParse,
		ErrorKind: errkind.KindParseFailure,
		Error:     "line 4: invalid json",
	}
	tagger := &fakeTagger{}
	pub := &fakePublisher{}

	p := New(&fakeIngester{out: out}, tagger, nil, pub, ingest.Options{}, discardLogger())
	p.Process(context.Background(), "/logs/bad.jsonl", ingest.Options{})

	if tagger.calls != 0 {
		t.Error("failed outcome should not be tagged")
	}
	evt := pub.msgs[0].data.(hermes.IngestEvent)
	if evt.Status != "failed" || evt.Stage != "parse" || evt.ErrorKind != "parse_failure" || evt.ConversationID != "" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestProcess_TagErrorsDoNotChangeOutcome(t *testing.T) {
	id := uuid.New()
	pub := &fakePublisher{err: errors.New("nats down")}
	p := New(
		&fakeIngester{out: successOutcome(id)},
		&fakeTagger{err: errors.New("llm down")},
		&fakeTagStore{err: errors.New("db down")},
		pub, ingest.Options{}, discardLogger(),
	)

	out := p.Process(context.Background(), "/logs/a.jsonl", ingest.Options{})
	if out.Status != ingest.StatusSuccess || out.ConversationID != id {
		t.Errorf("unexpected outcome %+v", out)
	}
	if evt := pub.msgs[0].data.(hermes.IngestEvent); len(evt.Tags) != 0 {
		t.Errorf("expected no tags in event, got %v", evt.Tags)
	}
}

func TestHandleIngestRequest(t *testing.T) {
	ing := &fakeIngester{out: ingest.Outcome{Status: ingest.StatusSkipped}}
	defaults := ingest.Options{EnableIncremental: true, ProjectName: "scribe"}
	p := New(ing, nil, nil, nil, defaults, discardLogger())

	p.HandleIngestRequest(hermes.SubjectIngestRequested, []byte(`{"file_path":"/logs/a.jsonl","enable_incremental":false}`))
	p.HandleIngestRequest(hermes.SubjectIngestRequested, []byte(`{"file_path":"/logs/b.jsonl","source_type":"hook"}`))
	p.HandleIngestRequest(hermes.SubjectIngestRequested, []byte(`{"source_type":"hook"}`))

	if len(ing.paths) != 2 {
		t.Fatalf("expected 2 ingests, got %v", ing.paths)
	}
	first, second := ing.opts[0], ing.opts[1]
	if first.EnableIncremental || first.SourceType != ingest.SourceNATS || first.ProjectName != "scribe" {
		t.Errorf("unexpected first options %+v", first)
	}
	if !second.EnableIncremental || second.SourceType != "hook" {
		t.Errorf("unexpected second options %+v", second)
	}
}
