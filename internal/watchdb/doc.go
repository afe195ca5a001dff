// Package watchdb implements a small deterministic database client used as a
// test fixture for the session driver and the watch scenario. It speaks the
// textual protocol the scenario drives: a prompt, SET / CREATE / INSERT /
// DROP statements, and a WATCH command that streams incremental tumble-window
// counts until interrupted. It does not implement a real SQL dialect.
package watchdb
