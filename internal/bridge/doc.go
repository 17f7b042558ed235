// Package bridge delivers demo source to an isolated execution context and
// waits for its completion report.
//
// The protocol is a single-shot handshake. The bridge posts one
// dumi.liveDemo.setSource message, registers exactly one listener, and
// resolves on the first inbound message whose type starts with
// dumi.liveDemo.compileDone. The listener is removed before the waiting
// task resumes, so no handler outlives its round trip. Starting a new round
// trip supersedes the pending one.
//
// Frames are the transport:
//   - LocalFrame runs the demo in-process with its own evaluator and mount
//   - WSFrame talks to a peer over a websocket
//   - Relay forwards to whichever websocket peer is currently attached
package bridge
