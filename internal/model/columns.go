package model

import (
	"encoding/json"
	"fmt"
)

// MessageColumns is the JSON encoding of a message's structured fields as
// stored in the messages table.
type MessageColumns struct {
	ToolCalls   []byte
	CodeChanges []byte
	Entities    []byte
}

// EncodeColumns never yields JSON null; empty fields encode as [] or {}.
func (m ParsedMessage) EncodeColumns() (MessageColumns, error) {
	var cols MessageColumns
	var err error

	calls := m.ToolCalls
	if calls == nil {
		calls = []ToolCall{}
	}
	if cols.ToolCalls, err = json.Marshal(calls); err != nil {
		return cols, fmt.Errorf("encode tool calls: %w", err)
	}

	changes := m.CodeChanges
	if changes == nil {
		changes = []CodeChange{}
	}
	if cols.CodeChanges, err = json.Marshal(changes); err != nil {
		return cols, fmt.Errorf("encode code changes: %w", err)
	}

	entities := m.Entities
	if entities == nil {
		entities = map[string][]string{}
	}
	if cols.Entities, err = json.Marshal(entities); err != nil {
		return cols, fmt.Errorf("encode entities: %w", err)
	}
	return cols, nil
}

// DecodeColumns fills the structured fields of m from stored JSON.
func (m *ParsedMessage) DecodeColumns(cols MessageColumns) error {
	if err := json.Unmarshal(cols.ToolCalls, &m.ToolCalls); err != nil {
		return fmt.Errorf("decode tool calls: %w", err)
	}
	if err := json.Unmarshal(cols.CodeChanges, &m.CodeChanges); err != nil {
		return fmt.Errorf("decode code changes: %w", err)
	}
	if err := json.Unmarshal(cols.Entities, &m.Entities); err != nil {
		return fmt.Errorf("decode entities: %w", err)
	}
	if len(m.ToolCalls) == 0 {
		m.ToolCalls = nil
	}
	if len(m.CodeChanges) == 0 {
		m.CodeChanges = nil
	}
	if len(m.Entities) == 0 {
		m.Entities = nil
	}
	return nil
}
