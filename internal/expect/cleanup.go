package expect

import (
	"log"
	"syscall"
	"time"
)

// termGrace is how long Close waits after SIGTERM before escalating to
// SIGKILL.
const termGrace = 500 * time.Millisecond

// Close terminates the client process and releases the pty. It is
// idempotent and safe to call from deferred cleanup on every exit path: the
// process is reaped before Close returns, so no orphan survives the session.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { s.doClose() })
	return nil
}

func (s *Session) doClose() {
	log.Printf("[expect] closing session %s (%s)", s.ID, s.Name)

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()

	if s.Pty != nil {
		s.Pty.Close()
	}

	if s.Cmd != nil && s.Cmd.Process != nil {
		select {
		case <-s.exited:
		default:
			if err := s.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
				log.Printf("[expect] session %s: SIGTERM failed: %v", s.ID, err)
			}
			select {
			case <-s.exited:
			case <-time.After(termGrace):
				if err := s.Cmd.Process.Kill(); err != nil {
					log.Printf("[expect] session %s: kill failed: %v", s.ID, err)
				}
				<-s.exited
			}
		}
	}

	DefaultManager.Remove(s.ID)
	log.Printf("[expect] session %s (%s) closed", s.ID, s.Name)
}

// CloseAll closes every session registered with the default manager. It is
// intended for signal handlers and end-of-run sweeps.
func CloseAll() {
	for _, sess := range DefaultManager.List() {
		sess.Close()
	}
}
