// Package expect provides an expect-style driver for interactive CLI
// clients: it spawns one client process per session on a pseudo-terminal,
// accumulates its output, and lets a single control goroutine send text and
// block until the output matches a pattern or a timeout elapses.
package expect
