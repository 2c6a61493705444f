package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lukavetter/aria-core/core/protocol"
)

// ExecuteFunc runs one named tool against its JSON argument payload and
// returns a textual outcome the agent can speak about.
type ExecuteFunc func(ctx context.Context, name string, arguments string) (string, error)

// toolCoordinator tracks the remote response lifecycle and in-flight tool
// calls. All state lives behind one mutex: the interpreter writes it from
// the event loop while executor completions write it from their own
// goroutines, and the cancellation check must be atomic with the send.
type toolCoordinator struct {
	send    func(data []byte) error
	execute ExecuteFunc

	mu sync.Mutex
	// open counts currently-open remote responses. The protocol contract
	// keeps it at 0 or 1; it must never go negative.
	open int
	// cancelled grows monotonically for the life of the session; entries
	// are never removed.
	cancelled map[string]struct{}
	// pending maps call id to the id of the response that owns it.
	pending map[string]string
	closed  bool
}

func newToolCoordinator(send func(data []byte) error, execute ExecuteFunc) *toolCoordinator {
	return &toolCoordinator{
		send:      send,
		execute:   execute,
		cancelled: map[string]struct{}{},
		pending:   map[string]string{},
	}
}

func (c *toolCoordinator) responseOpened(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open++
	if c.open > 1 {
		// The remote side violated its own single-active-response
		// contract. Keep counting so response.done accounting stays
		// balanced; recovery is the server's problem.
		logger.Warn("response opened while another is active",
			"response_id", id, "open_responses", c.open)
	}
}

func (c *toolCoordinator) responseClosed(id, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open > 0 {
		c.open--
	}
	if status == protocol.ResponseStatusCancelled {
		c.cancelled[id] = struct{}{}
	}
}

// dispatch records the pending call and runs the executor concurrently
// with continued event processing. No deadline is imposed on the
// executor; a hung call leaves its pending entry in place until teardown.
func (c *toolCoordinator) dispatch(ctx context.Context, callID, responseID, name, arguments string) {
	c.mu.Lock()
	c.pending[callID] = responseID
	execute := c.execute
	c.mu.Unlock()

	go func() {
		ctx, span := tracer.Start(ctx, "execute tool call")
		defer span.End()
		span.SetAttributes(
			attribute.String("tool.name", name),
			attribute.String("tool.call_id", callID),
			attribute.String("tool.response_id", responseID),
		)

		var output string
		if execute == nil {
			output = "error: no tool executor configured"
		} else if result, err := execute(ctx, name, arguments); err != nil {
			// Executor failures become a diagnostic result so the agent
			// can recover conversationally.
			span.RecordError(err)
			output = "error: " + err.Error()
		} else {
			output = result
		}

		c.complete(callID, responseID, output)
	}()
}

// complete delivers one tool outcome. The cancellation check happens
// here, at send time, not at dispatch time: the response may have been
// cancelled while the executor was running, or even after it finished but
// before this point.
func (c *toolCoordinator) complete(callID, responseID, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, callID)

	if c.closed {
		return
	}
	if _, wasCancelled := c.cancelled[responseID]; wasCancelled {
		logger.Debug("discarding tool result for cancelled response",
			"call_id", callID, "response_id", responseID)
		return
	}

	data, err := protocol.NewFunctionOutputItem(callID, output)
	if err != nil {
		logger.Error("failed to encode tool output", "call_id", callID, "error", err)
		return
	}
	if err := c.send(data); err != nil {
		logger.Error("failed to send tool output", "call_id", callID, "error", err)
		return
	}

	// A fresh response is only requested when no response is open at this
	// instant. There is no retry on the next response.done: the result is
	// delivered exactly once and the withheld request is simply dropped.
	if c.open == 0 {
		if data, err := protocol.NewResponseCreate(); err == nil {
			if err := c.send(data); err != nil {
				logger.Error("failed to request response after tool output", "call_id", callID, "error", err)
			}
		}
	}
}

// openResponses reports the current response counter.
func (c *toolCoordinator) openResponses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *toolCoordinator) pendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// reset clears all coordinator state and stops any still-running
// executor completion from reaching the channel.
func (c *toolCoordinator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = 0
	c.cancelled = map[string]struct{}{}
	c.pending = map[string]string{}
	c.closed = true
}
