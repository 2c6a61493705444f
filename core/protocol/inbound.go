package protocol

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	// TypeSessionCreated signals that the remote session is ready to
	// receive conversation items.
	TypeSessionCreated Type = "session.created"
	// TypeSessionUpdated acknowledges a session configuration change.
	TypeSessionUpdated Type = "session.updated"

	// TypeSpeechStarted signals that the server detected the user
	// starting to talk.
	TypeSpeechStarted Type = "input_audio_buffer.speech_started"

	// TypeUserTranscriptDone carries the full transcript of a user
	// utterance.
	TypeUserTranscriptDone Type = "conversation.item.input_audio_transcription.completed"
	// TypeUserTranscriptFailed signals that transcription of a user
	// utterance failed server-side.
	TypeUserTranscriptFailed Type = "conversation.item.input_audio_transcription.failed"

	// TypeResponseCreated opens a remote response cycle.
	TypeResponseCreated Type = "response.created"
	// TypeTranscriptDelta carries a streamed piece of the assistant's
	// spoken transcript.
	TypeTranscriptDelta Type = "response.audio_transcript.delta"
	// TypeTranscriptDone marks the assistant transcript stream complete.
	TypeTranscriptDone Type = "response.audio_transcript.done"
	// TypeToolCallReady carries a fully-buffered tool invocation request.
	TypeToolCallReady Type = "response.function_call_arguments.done"
	// TypeResponseDone closes a remote response cycle.
	TypeResponseDone Type = "response.done"

	// TypeError carries a server-side error report.
	TypeError Type = "error"
)

// Response statuses reported on response.done.
const (
	ResponseStatusCompleted = "completed"
	ResponseStatusCancelled = "cancelled"
	ResponseStatusFailed    = "failed"
)

// Inbound is the decoded form of a single control-channel message. Only
// the fields relevant to the message's Type are populated; the rest stay
// at their zero values.
type Inbound struct {
	Type Type `json:"type"`

	// Transcript is the full user utterance (user transcript done).
	Transcript string `json:"transcript,omitempty"`
	// Delta is an assistant transcript piece (transcript delta).
	Delta string `json:"delta,omitempty"`

	// Tool invocation fields (tool call ready).
	CallID     string `json:"call_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`

	// Response is set on response.created and response.done.
	Response *ResponseInfo `json:"response,omitempty"`

	// Error is set on error messages.
	Error *ErrorInfo `json:"error,omitempty"`
}

// ResponseInfo identifies a response cycle and, on response.done, its
// terminal status.
type ResponseInfo struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// ErrorInfo is the payload of an inbound error message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode parses a raw control-channel frame. Unknown message types are
// not an error; callers decide whether to act on msg.Type.
func Decode(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("failed to decode control message: %w", err)
	}
	return msg, nil
}

// benignErrorCodes are expected transient artifacts of the interruption
// race: a tool result referencing a call the server already dropped, or
// a response request colliding with a response the server opened on its
// own. Neither invalidates the session.
var benignErrorCodes = map[string]struct{}{
	"invalid_tool_call_id":                     {},
	"conversation_already_has_active_response": {},
}

// IsBenignErrorCode reports whether an inbound error code is a known
// harmless artifact of interruption races.
func IsBenignErrorCode(code string) bool {
	_, ok := benignErrorCodes[code]
	return ok
}
