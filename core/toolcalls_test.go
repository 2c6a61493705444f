package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestResponseCounterNeverGoesNegative(t *testing.T) {
	c := newToolCoordinator(func([]byte) error { return nil }, nil)

	c.responseClosed("r0", "completed")
	if got := c.openResponses(); got != 0 {
		t.Fatalf("expected counter to stay at 0, got %d", got)
	}

	c.responseOpened("r1")
	c.responseOpened("r2")
	c.responseClosed("r1", "completed")
	c.responseClosed("r2", "cancelled")
	c.responseClosed("r2", "cancelled")

	if got := c.openResponses(); got != 0 {
		t.Fatalf("expected counter back at 0 after all closes, got %d", got)
	}
}

func TestCancellationBeforeCompletionDiscardsResult(t *testing.T) {
	send := &sendRecorder{}
	release := make(chan struct{})
	executor := func(context.Context, string, string) (string, error) {
		<-release
		return "three meetings today", nil
	}
	c := newToolCoordinator(send.send, executor)

	c.responseOpened("r1")
	c.dispatch(context.Background(), "abc", "r1", "calendar_lookup", `{"day":"today"}`)

	waitForCondition(t, time.Second, "pending call to be recorded", func() bool {
		return c.pendingCalls() == 1
	})

	// Barge-in: the response closes as cancelled while the tool still
	// runs.
	c.responseClosed("r1", "cancelled")
	close(release)

	waitForCondition(t, time.Second, "pending call to be removed", func() bool {
		return c.pendingCalls() == 0
	})
	if count := send.count(); count != 0 {
		t.Fatalf("expected no outbound traffic for cancelled response, got %d messages", count)
	}
}

func TestCancellationAfterCompletionButBeforeSendDiscardsResult(t *testing.T) {
	send := &sendRecorder{}
	c := newToolCoordinator(send.send, nil)

	c.responseOpened("r1")
	c.mu.Lock()
	c.pending["abc"] = "r1"
	c.mu.Unlock()

	// The executor already finished; cancellation lands before the result
	// is sent. The membership check at send time must still win.
	c.responseClosed("r1", "cancelled")
	c.complete("abc", "r1", "too late")

	if count := send.count(); count != 0 {
		t.Fatalf("expected discarded result to send nothing, got %d messages", count)
	}
	if pending := c.pendingCalls(); pending != 0 {
		t.Fatalf("expected pending entry removed, got %d", pending)
	}
}

func TestCompletionUnderOpenResponseWithholdsResponseRequest(t *testing.T) {
	send := &sendRecorder{}
	executor := func(_ context.Context, name string, _ string) (string, error) {
		return "result for " + name, nil
	}
	c := newToolCoordinator(send.send, executor)

	c.responseOpened("r1")
	c.dispatch(context.Background(), "call-1", "r1", "calendar_lookup", `{}`)
	c.dispatch(context.Background(), "call-2", "r1", "mail_search", `{}`)

	waitForCondition(t, time.Second, "both tool outputs to be sent", func() bool {
		return send.count() == 2
	})
	if requests := send.countOfType("response.create"); requests != 0 {
		t.Fatalf("expected response request withheld while a response is open, got %d", requests)
	}

	// Closing the response does not retry the withheld request; the next
	// completed call triggers one instead.
	c.responseClosed("r1", "completed")
	if requests := send.countOfType("response.create"); requests != 0 {
		t.Fatalf("expected no response request replay on response close, got %d", requests)
	}

	c.dispatch(context.Background(), "call-3", "r1", "maps_route", `{}`)
	waitForCondition(t, time.Second, "third output plus response request", func() bool {
		return send.countOfType("conversation.item.create") == 3 &&
			send.countOfType("response.create") == 1
	})
}

func TestExecutorFailureBecomesTextualOutcome(t *testing.T) {
	send := &sendRecorder{}
	executor := func(context.Context, string, string) (string, error) {
		return "", errors.New("upstream API returned 503")
	}
	c := newToolCoordinator(send.send, executor)

	c.dispatch(context.Background(), "call-1", "r1", "web_search", `{}`)

	waitForCondition(t, time.Second, "failure outcome to be sent", func() bool {
		return send.countOfType("conversation.item.create") == 1
	})
	if !send.contains("upstream API returned 503") {
		t.Fatalf("expected the error text in the function output, sent: %s", send.dump())
	}
}

func TestResetDiscardsLateCompletions(t *testing.T) {
	send := &sendRecorder{}
	release := make(chan struct{})
	executor := func(context.Context, string, string) (string, error) {
		<-release
		return "finished after teardown", nil
	}
	c := newToolCoordinator(send.send, executor)

	c.dispatch(context.Background(), "call-1", "r1", "calendar_lookup", `{}`)
	c.reset()
	close(release)

	time.Sleep(50 * time.Millisecond)
	if count := send.count(); count != 0 {
		t.Fatalf("expected nothing sent after reset, got %d messages", count)
	}
}

func TestToolCallThroughInterpreterIsDiscardedOnBargeIn(t *testing.T) {
	fake := newFakeTransport()
	release := make(chan struct{})
	m := newTestManager(fake,
		WithToolExecutor(func(context.Context, string, string) (string, error) {
			<-release
			return "three meetings today", nil
		}),
	)
	defer m.Stop()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	fake.deliver(t, `{"type":"response.created","response":{"id":"r1"}}`)
	fake.deliver(t, `{"type":"response.function_call_arguments.done","call_id":"abc","response_id":"r1","name":"calendar_lookup","arguments":"{}"}`)
	fake.deliver(t, `{"type":"response.done","response":{"id":"r1","status":"cancelled"}}`)
	close(release)

	waitForCondition(t, time.Second, "stale result to be discarded", func() bool {
		return m.coordinator.pendingCalls() == 0
	})
	if count := fake.sentOfType(t, "conversation.item.create"); count != 0 {
		t.Fatalf("expected no function output for cancelled response, got %d", count)
	}
}

type sendRecorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *sendRecorder) send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, string(data))
	return nil
}

func (r *sendRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *sendRecorder) countOfType(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, msg := range r.sent {
		if strings.Contains(msg, `"type":"`+kind+`"`) {
			count++
		}
	}
	return count
}

func (r *sendRecorder) contains(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range r.sent {
		if strings.Contains(msg, text) {
			return true
		}
	}
	return false
}

func (r *sendRecorder) dump() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.sent, "\n")
}
