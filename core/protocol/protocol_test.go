package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeToolCallReady(t *testing.T) {
	raw := `{"type":"response.function_call_arguments.done","call_id":"abc","response_id":"r1","name":"calendar_lookup","arguments":"{\"day\":\"today\"}"}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if msg.Type != TypeToolCallReady {
		t.Fatalf("expected tool call ready, got %q", msg.Type)
	}
	if msg.CallID != "abc" || msg.ResponseID != "r1" || msg.Name != "calendar_lookup" {
		t.Fatalf("unexpected tool call fields: %+v", msg)
	}
}

func TestDecodeResponseDoneCarriesStatus(t *testing.T) {
	raw := `{"type":"response.done","response":{"id":"r1","status":"cancelled"}}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if msg.Response == nil || msg.Response.ID != "r1" || msg.Response.Status != ResponseStatusCancelled {
		t.Fatalf("unexpected response info: %+v", msg.Response)
	}
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"rate_limits.updated"}`))
	if err != nil {
		t.Fatalf("expected unknown types to decode, got %v", err)
	}
	if msg.Type != Type("rate_limits.updated") {
		t.Fatalf("unexpected type: %q", msg.Type)
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected decode error for truncated frame")
	}
}

func TestNewUserMessageItemShape(t *testing.T) {
	data, err := NewUserMessageItem("hello")
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		Item struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"item"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to round-trip: %v", err)
	}
	if decoded.Type != string(TypeItemCreate) || decoded.Item.Role != "user" {
		t.Fatalf("unexpected frame: %s", data)
	}
	if decoded.Item.ID == "" {
		t.Fatalf("expected a generated item id")
	}
	if len(decoded.Item.Content) != 1 || decoded.Item.Content[0].Text != "hello" {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestNewFunctionOutputItemOmitsMessageFields(t *testing.T) {
	data, err := NewFunctionOutputItem("abc", "three meetings")
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to round-trip: %v", err)
	}
	item := decoded["item"].(map[string]any)
	if item["type"] != "function_call_output" || item["call_id"] != "abc" {
		t.Fatalf("unexpected frame: %s", data)
	}
	if _, hasRole := item["role"]; hasRole {
		t.Fatalf("expected no role on function output: %s", data)
	}
}

func TestBenignErrorCodes(t *testing.T) {
	if !IsBenignErrorCode("invalid_tool_call_id") {
		t.Fatalf("expected stale tool-call reference to be benign")
	}
	if !IsBenignErrorCode("conversation_already_has_active_response") {
		t.Fatalf("expected duplicate-active-response rejection to be benign")
	}
	if IsBenignErrorCode("session_expired") {
		t.Fatalf("expected unknown codes to not be benign")
	}
}
