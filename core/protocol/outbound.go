package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	// TypeItemCreate submits a conversation item to the server.
	TypeItemCreate Type = "conversation.item.create"
	// TypeResponseCreate asks the server to open a new response cycle.
	TypeResponseCreate Type = "response.create"
)

type outboundItem struct {
	Type Type `json:"type"`
	Item item `json:"item"`
}

type item struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []itemContent `json:"content,omitempty"`

	// function_call_output fields.
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewUserMessageItem encodes a conversation.item.create frame carrying a
// user text message.
func NewUserMessageItem(text string) ([]byte, error) {
	data, err := json.Marshal(outboundItem{
		Type: TypeItemCreate,
		Item: item{
			ID:      "item_" + uuid.NewString(),
			Type:    "message",
			Role:    "user",
			Content: []itemContent{{Type: "input_text", Text: text}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode user message item: %w", err)
	}
	return data, nil
}

// NewFunctionOutputItem encodes a conversation.item.create frame carrying
// the textual outcome of a tool call, correlated by call id.
func NewFunctionOutputItem(callID, output string) ([]byte, error) {
	data, err := json.Marshal(outboundItem{
		Type: TypeItemCreate,
		Item: item{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode function output item: %w", err)
	}
	return data, nil
}

// NewResponseCreate encodes a response.create frame.
func NewResponseCreate() ([]byte, error) {
	data, err := json.Marshal(struct {
		Type Type `json:"type"`
	}{Type: TypeResponseCreate})
	if err != nil {
		return nil, fmt.Errorf("failed to encode response request: %w", err)
	}
	return data, nil
}
