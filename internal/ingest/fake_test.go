package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type storedConversation struct {
	conv     model.ParsedConversation
	messages []model.ParsedMessage
	replaced []FullParseReason
}

// memStore is an in-memory Storage whose transactions commit all-or-nothing.
type memStore struct {
	mu            sync.Mutex
	states        map[string]model.RawLogState
	conversations map[uuid.UUID]*storedConversation
	jobs          []model.IngestionJob

	failSave   bool
	failAppend bool
	onLoad     func(path string)
}

func newMemStore() *memStore {
	return &memStore{
		states:        make(map[string]model.RawLogState),
		conversations: make(map[uuid.UUID]*storedConversation),
	}
}

func (m *memStore) LoadState(_ context.Context, path string) (*model.RawLogState, error) {
	if m.onLoad != nil {
		m.onLoad(path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[path]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) FindDuplicate(_ context.Context, fingerprint string) (*uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.states {
		if s.PartialHash == fingerprint {
			id := s.ConversationID
			return &id, nil
		}
	}
	return nil, nil
}

func (m *memStore) InTx(ctx context.Context, fn func(tx StorageTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		store:         m,
		states:        make(map[string]model.RawLogState, len(m.states)),
		conversations: make(map[uuid.UUID]*storedConversation, len(m.conversations)),
	}
	for k, v := range m.states {
		tx.states[k] = v
	}
	for k, v := range m.conversations {
		c := *v
		c.messages = append([]model.ParsedMessage(nil), v.messages...)
		tx.conversations[k] = &c
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.states = tx.states
	m.conversations = tx.conversations
	return nil
}

func (m *memStore) RecordJob(_ context.Context, job model.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *memStore) state(path string) (model.RawLogState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[path]
	return s, ok
}

func (m *memStore) conversation(id uuid.UUID) *storedConversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations[id]
}

func (m *memStore) conversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

type memTx struct {
	store         *memStore
	states        map[string]model.RawLogState
	conversations map[uuid.UUID]*storedConversation
}

func (t *memTx) SaveState(_ context.Context, s model.RawLogState) error {
	if t.store.failSave {
		return errors.New("disk full")
	}
	t.states[s.FilePath] = s
	return nil
}

func (t *memTx) CreateConversation(_ context.Context, req CreateConversationRequest) (uuid.UUID, error) {
	id := uuid.New()
	t.conversations[id] = &storedConversation{
		conv:     *req.Conversation,
		messages: append([]model.ParsedMessage(nil), req.Conversation.Messages...),
	}
	return id, nil
}

func (t *memTx) AppendMessages(_ context.Context, req AppendMessagesRequest) error {
	if t.store.failAppend {
		return errors.New("connection reset")
	}
	c, ok := t.conversations[req.ConversationID]
	if !ok {
		return errors.New("conversation not found")
	}
	c.messages = append(c.messages, req.Messages...)
	return nil
}

func (t *memTx) ReplaceConversationContent(_ context.Context, req ReplaceConversationRequest) error {
	c, ok := t.conversations[req.ConversationID]
	if !ok {
		return errors.New("conversation not found")
	}
	c.conv = *req.Conversation
	c.messages = append([]model.ParsedMessage(nil), req.Conversation.Messages...)
	c.replaced = append(append([]FullParseReason(nil), c.replaced...), req.Reason)
	return nil
}
