// Package render turns demo components into markup.
//
// A small component runtime is exposed to demo code as the "react" module
// (createElement, Fragment, hooks, findDOMNode, createPortal). Elements built
// with it are walked in Go and serialized with golang.org/x/net/html.
//
// Rendering has two modes. Static mode is the speculative, off-screen pass the
// Validator uses to catch render failures before anything becomes visible;
// effects never run and browser-only APIs fail the way a server renderer
// would. Live mode renders into a Mount, runs queued effects afterwards and
// catches failures in a demo error boundary.
package render
