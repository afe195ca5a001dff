package expect

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	ptylib "github.com/creack/pty"
	"github.com/google/uuid"
)

// startupGrace is how long Open watches a freshly spawned process for an
// immediate exit before declaring the session ready.
const startupGrace = 50 * time.Millisecond

// Options configures a new session.
type Options struct {
	// Name labels the session in logs and errors.
	Name string
	// Command is the client argv; Command[0] is the program to spawn.
	Command []string
	// Log, when non-nil, receives a transcript of everything sent to and
	// received from the client.
	Log io.Writer
}

// Open spawns the client process on a pty, registers the session with the
// default manager, and starts the output pump. It fails with a *ConnectError
// if the process cannot start or exits immediately.
func Open(opts Options) (*Session, error) {
	if len(opts.Command) == 0 {
		return nil, &ConnectError{Name: opts.Name, Err: fmt.Errorf("empty command")}
	}

	id := uuid.New().String()
	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Env = os.Environ()

	ptyFile, err := ptylib.Start(cmd)
	if err != nil {
		return nil, &ConnectError{Name: opts.Name, Err: err}
	}

	sess := &Session{
		ID:     id,
		Name:   opts.Name,
		Cmd:    cmd,
		Pty:    ptyFile,
		log:    opts.Log,
		state:  Opening,
		data:   make(chan struct{}, 1),
		eof:    make(chan struct{}),
		exited: make(chan struct{}),
	}

	go sess.pump()
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("[expect] session %s (%s): process exited: %v", id, opts.Name, err)
		}
		close(sess.exited)
	}()

	select {
	case <-sess.exited:
		ptyFile.Close()
		return nil, &ConnectError{Name: opts.Name, Err: fmt.Errorf("process exited immediately: %s", opts.Command[0])}
	case <-time.After(startupGrace):
	}

	sess.mu.Lock()
	sess.state = Ready
	sess.mu.Unlock()

	DefaultManager.Add(id, sess)
	log.Printf("[expect] opened session %s (%s): %s", id, opts.Name, strings.Join(opts.Command, " "))
	return sess, nil
}
