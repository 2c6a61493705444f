package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is one finalized utterance. Entries are appended in
// arrival order, which may lag the chronological order of the underlying
// speech since assistant text accumulates until a done event flushes it.
type TranscriptEntry struct {
	Role       Role
	Text       string
	ReceivedAt time.Time
}

func (e TranscriptEntry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.ReceivedAt.Format("15:04:05.000"), e.Role, e.Text)
}

// transcriptLog is the append-only session transcript plus the
// in-progress assistant text buffer.
type transcriptLog struct {
	mu sync.Mutex

	entries         []TranscriptEntry
	assistantBuffer strings.Builder
}

func newTranscriptLog() *transcriptLog {
	return &transcriptLog{}
}

func (l *transcriptLog) AppendUser(text string) TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := TranscriptEntry{Role: RoleUser, Text: text, ReceivedAt: time.Now()}
	l.entries = append(l.entries, entry)
	return entry
}

func (l *transcriptLog) AppendAssistantDelta(delta string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.assistantBuffer.WriteString(delta)
}

// FlushAssistant finalizes the buffered assistant text into an entry.
// Returns nil when nothing was buffered.
func (l *transcriptLog) FlushAssistant() *TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.flushAssistantLocked()
}

func (l *transcriptLog) flushAssistantLocked() *TranscriptEntry {
	if l.assistantBuffer.Len() == 0 {
		return nil
	}

	entry := TranscriptEntry{Role: RoleAssistant, Text: l.assistantBuffer.String(), ReceivedAt: time.Now()}
	l.entries = append(l.entries, entry)
	l.assistantBuffer.Reset()
	return &entry
}

// Snapshot returns a defensive copy of the entries accumulated so far.
func (l *transcriptLog) Snapshot() []TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]TranscriptEntry, 0, len(l.entries))
	if err := copier.Copy(&entries, l.entries); err != nil {
		entries = append(entries, l.entries...)
	}
	return entries
}

// Drain flushes any in-progress assistant text, returns the full ordered
// log and resets it for the next session.
func (l *transcriptLog) Drain() []TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.flushAssistantLocked()
	entries := l.entries
	l.entries = nil
	return entries
}
