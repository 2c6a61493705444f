// Package protocol defines the control-channel message contract.
//
// Messages are JSON objects discriminated by the "type" field. Inbound
// types are grouped by server-facing namespaces:
//
//   - session.*
//   - input_audio_buffer.*
//   - conversation.item.*
//   - response.*
//   - error
//
// Semantics used across the package:
//
//   - Delta: append-only text piece emitted in stream order.
//   - Done: terminal immutable text/state for the current stream phase.
//   - Response: one remote-agent generation cycle, opened by
//     response.created and closed by response.done.
//
// Outbound traffic is limited to two shapes: conversation.item.create
// (a user message item or a function_call_output item) and
// response.create. Unrecognized inbound types must be ignored by
// consumers so that newer server revisions stay compatible.
package protocol
