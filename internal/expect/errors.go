package expect

import (
	"fmt"
	"strings"
	"time"
)

// ConnectError reports that a session's client process could not be started,
// or exited before the session became usable.
type ConnectError struct {
	Name string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("session %s: connect: %v", e.Name, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError reports that an expected pattern was not observed within the
// allowed wait. Tail carries the unconsumed output accumulated so far, for
// diagnosis of the unmet expectation.
type TimeoutError struct {
	Name     string
	Patterns []string
	Wait     time.Duration
	Tail     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("session %s: no match for %q after %s (buffered output: %q)",
		e.Name, strings.Join(e.Patterns, " | "), e.Wait, e.Tail)
}

// PipeError reports an operation against a session whose client process has
// exited or whose pty has been closed.
type PipeError struct {
	Name string
	Op   string
	Err  error
}

func (e *PipeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session %s: %s on dead session: %v", e.Name, e.Op, e.Err)
	}
	return fmt.Sprintf("session %s: %s on dead session", e.Name, e.Op)
}

func (e *PipeError) Unwrap() error { return e.Err }
