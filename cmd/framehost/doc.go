// Package main hosts one iframe demo outside the server process.
//
// The host loads the demo manifests, runs the demo in its own sandbox and
// dials the server's frame endpoint. Every dumi.liveDemo.setSource message
// it receives is answered with one dumi.liveDemo.compileDone message. The
// server must run with DEMO_FRAME_HOST=relay.
//
// Usage:
//
//	./framehost -server ws://localhost:8000 -demos ./demos -demo button
package main
