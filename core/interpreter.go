package session

import (
	"fmt"

	"github.com/lukavetter/aria-core/core/protocol"
)

// handleMessage consumes one inbound control frame. The transport
// delivers frames serially, so each message is fully processed before
// the next; only tool executor completions run concurrently with it.
func (m *Manager) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		logger.Warn("dropping undecodable control message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSessionCreated:
		m.kickstartConversation()

	case protocol.TypeSessionUpdated:
		// Configuration acknowledgement, nothing to drive.

	case protocol.TypeSpeechStarted:
		m.setSpeaking(SpeakingStateListening)

	case protocol.TypeTranscriptDelta:
		m.mu.Lock()
		transcript := m.transcript
		onPartialResponse := m.startOptions.onPartialResponse
		m.mu.Unlock()

		transcript.AppendAssistantDelta(msg.Delta)
		m.setSpeaking(SpeakingStateSpeaking)
		if onPartialResponse != nil {
			onPartialResponse(msg.Delta)
		}

	case protocol.TypeTranscriptDone:
		m.mu.Lock()
		transcript := m.transcript
		onTranscriptEntry := m.startOptions.onTranscriptEntry
		m.mu.Unlock()

		if entry := transcript.FlushAssistant(); entry != nil && onTranscriptEntry != nil {
			onTranscriptEntry(*entry)
		}

	case protocol.TypeUserTranscriptDone:
		m.mu.Lock()
		transcript := m.transcript
		onTranscriptEntry := m.startOptions.onTranscriptEntry
		m.mu.Unlock()

		entry := transcript.AppendUser(msg.Transcript)
		if onTranscriptEntry != nil {
			onTranscriptEntry(entry)
		}

	case protocol.TypeUserTranscriptFailed:
		logger.Warn("user transcription failed server-side")

	case protocol.TypeResponseCreated:
		if msg.Response != nil {
			m.coordinator.responseOpened(msg.Response.ID)
		}

	case protocol.TypeToolCallReady:
		m.mu.Lock()
		onToolCall := m.startOptions.onToolCall
		m.mu.Unlock()

		if onToolCall != nil {
			onToolCall(msg.Name, msg.Arguments)
		}
		m.coordinator.dispatch(m.currentContext(), msg.CallID, msg.ResponseID, msg.Name, msg.Arguments)

	case protocol.TypeResponseDone:
		if msg.Response == nil {
			return
		}
		m.coordinator.responseClosed(msg.Response.ID, msg.Response.Status)
		if msg.Response.Status == protocol.ResponseStatusFailed {
			logger.Warn("remote response failed", "response_id", msg.Response.ID)
		}
		m.setSpeaking(SpeakingStateListening)

	case protocol.TypeError:
		m.handleProtocolError(msg.Error)

	default:
		// Unrecognized types are ignored for forward compatibility.
	}
}

// kickstartConversation greets the user and asks the remote side to open
// the first response.
func (m *Manager) kickstartConversation() {
	m.mu.Lock()
	greeting := m.greeting
	m.mu.Unlock()

	data, err := protocol.NewUserMessageItem(greeting)
	if err != nil {
		logger.Error("failed to encode greeting", "error", err)
		return
	}
	if err := m.sendControl(data); err != nil {
		logger.Error("failed to send greeting", "error", err)
		return
	}

	if data, err := protocol.NewResponseCreate(); err == nil {
		if err := m.sendControl(data); err != nil {
			logger.Error("failed to request first response", "error", err)
		}
	}
}

// handleProtocolError suppresses the known-benign artifacts of
// interruption races and treats everything else as fatal.
func (m *Manager) handleProtocolError(errInfo *protocol.ErrorInfo) {
	if errInfo == nil {
		return
	}

	if protocol.IsBenignErrorCode(errInfo.Code) {
		logger.Info("suppressing benign protocol error",
			"code", errInfo.Code, "message", errInfo.Message)
		return
	}

	m.fatal(fmt.Errorf("%w: %s: %s", ErrProtocol, errInfo.Code, errInfo.Message))
}
