package expect

import (
	"bytes"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
)

// State tracks where a session is in its lifecycle.
type State int

const (
	// Opening means the client process is being spawned.
	Opening State = iota
	// Ready means the process is running and accepting input.
	Ready
	// Closed means the process has exited or Close was called.
	Closed
)

// Session represents one live client process on a pty, together with the
// output received from it so far. A Session is owned by a single control
// goroutine; only the output pump runs concurrently with it.
type Session struct {
	ID   string
	Name string
	Cmd  *exec.Cmd

	// Pty is set once in Open and never reassigned, so the pump can read
	// from it without holding mu.
	Pty *os.File

	log io.Writer

	mu    sync.Mutex
	state State

	bufMu sync.Mutex
	buf   bytes.Buffer

	data   chan struct{} // signaled when the pump appends output
	eof    chan struct{} // closed when the pump stops reading
	exited chan struct{} // closed once the process has been reaped

	closeOnce sync.Once
}

// Send writes text plus a newline terminator to the client's input. It fails
// with a *PipeError if the session is closed.
func (s *Session) Send(text string) error {
	return s.write(text + "\n")
}

// SendRaw writes text with no terminator, for raw control bytes such as
// ETX (Ctrl-C). A zero-length text is a no-op.
func (s *Session) SendRaw(text string) error {
	if text == "" {
		return nil
	}
	return s.write(text)
}

func (s *Session) write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return &PipeError{Name: s.Name, Op: "write"}
	}
	if _, err := s.Pty.Write([]byte(text)); err != nil {
		return &PipeError{Name: s.Name, Op: "write", Err: err}
	}
	if s.log != nil {
		io.WriteString(s.log, text)
	}
	return nil
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffered returns the output received but not yet consumed by a match.
func (s *Session) Buffered() string {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return s.buf.String()
}

// pump continuously reads from the pty into the match buffer and echoes to
// the transcript sink. It runs until the pty is closed or the client exits.
// A pty read error after child exit (EIO on Linux) is treated as EOF.
func (s *Session) pump() {
	defer close(s.eof)

	// Capture the pty once: Close may run concurrently, and closing an
	// os.File is safe against a blocked Read.
	pty := s.Pty
	buf := make([]byte, 4096)
	for {
		n, err := pty.Read(buf)
		if n > 0 {
			s.bufMu.Lock()
			s.buf.Write(buf[:n])
			s.bufMu.Unlock()
			if s.log != nil {
				s.log.Write(buf[:n])
			}
			select {
			case s.data <- struct{}{}:
			default:
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("[expect] session %s (%s): pty read ended: %v", s.ID, s.Name, err)
			}
			return
		}
	}
}
