// Package scenario drives the window-view watch integration scenario: two
// client sessions against one server, a continuously updating tumble-window
// aggregation observed through WATCH, and a clean mid-watch interrupt.
package scenario

import (
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"wvharness/internal/expect"
)

// endOfBlock marks the end of one result batch: the remainder of the matched
// row line plus the table frame line below it.
const endOfBlock = `.*\r\n.*\r\n`

// shellPrompt recognizes a parent shell prompt, the sign that an interrupt
// killed the client instead of the running statement.
const shellPrompt = `[#\$] `

// etx is the Ctrl-C byte delivered to the client's pty.
const etx = "\x03"

// client pairs a session with its prompt pattern and per-step timeout.
type client struct {
	sess    *expect.Session
	prompt  string
	launch  string // shell-mode client invocation; empty when spawned directly
	timeout time.Duration
}

// step sends one statement and waits for the prompt to come back.
func (c *client) step(stmt string) error {
	if err := c.sess.Send(stmt); err != nil {
		return err
	}
	_, err := c.sess.Expect(c.prompt, c.timeout)
	return err
}

// Run executes the scenario against the configured client. Any unmet
// expectation aborts the run; both sessions are closed on every path.
func Run(cfg *Config, logSink io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Printf("[scenario] %s: starting", cfg.Name)

	c1, err := openClient(cfg, "client1>", logSink)
	if err != nil {
		return err
	}
	defer c1.sess.Close()

	c2, err := openClient(cfg, "client2>", logSink)
	if err != nil {
		return err
	}
	defer c2.sess.Close()

	if _, err := c1.sess.Expect(c1.prompt, c1.timeout); err != nil {
		return err
	}
	if _, err := c2.sess.Expect(c2.prompt, c2.timeout); err != nil {
		return err
	}

	for _, stmt := range cfg.Settings {
		if err := c1.step(stmt); err != nil {
			return err
		}
	}
	for _, stmt := range cfg.PeerSettings {
		if err := c2.step(stmt); err != nil {
			return err
		}
	}

	setup := []string{
		"DROP TABLE IF EXISTS " + cfg.Table,
		"DROP TABLE IF EXISTS " + cfg.View,
		"DROP TABLE IF EXISTS `.inner." + viewBase(cfg.View) + "`",
		"CREATE TABLE " + cfg.Table + "(a Int32, timestamp DateTime) ENGINE=MergeTree ORDER BY tuple()",
		"CREATE WINDOW VIEW " + cfg.View + " AS SELECT count(a) AS count FROM " + cfg.Table +
			" GROUP BY TUMBLE(timestamp, INTERVAL '1' SECOND) AS wid",
	}
	for _, stmt := range setup {
		if err := c1.step(stmt); err != nil {
			return err
		}
	}

	if err := c1.sess.Send("WATCH " + cfg.View); err != nil {
		return err
	}
	watch := cfg.WatchTimeout.D()
	for i := 1; i <= cfg.Inserts; i++ {
		if err := c2.sess.Send("INSERT INTO " + cfg.Table + " VALUES (1, now())"); err != nil {
			return err
		}
		// Exactly one incremental block per insert, then the cumulative
		// progress counter.
		if _, err := c1.sess.Expect("1"+endOfBlock, watch); err != nil {
			return err
		}
		if _, err := c1.sess.Expect(fmt.Sprintf(`Progress: %d\.00 rows.*\)`, i), watch); err != nil {
			return err
		}
	}

	if _, err := interrupt(c1); err != nil {
		return err
	}

	if err := c1.step("DROP TABLE " + cfg.View); err != nil {
		return err
	}
	if err := c1.step("DROP TABLE " + cfg.Table); err != nil {
		return err
	}

	log.Printf("[scenario] %s: passed", cfg.Name)
	return nil
}

// interrupt aborts the running watch with Ctrl-C and disambiguates the
// outcome: either the client acknowledged with a fresh prompt, or the
// interrupt killed the client and the parent shell answered instead. In the
// latter case the client is restarted with its original invocation; the
// return reports whether that single resend happened.
func interrupt(c *client) (bool, error) {
	if err := c.sess.SendRaw(etx); err != nil {
		return false, err
	}
	m, err := c.sess.ExpectAny([]string{c.prompt, shellPrompt}, c.timeout)
	if err != nil {
		return false, err
	}
	if m.Index == 0 {
		return false, nil
	}
	if c.launch == "" {
		return false, fmt.Errorf("session %s dropped to a shell and no launch command is known", c.sess.Name)
	}
	if err := c.sess.Send(c.launch); err != nil {
		return true, err
	}
	if _, err := c.sess.Expect(c.prompt, c.timeout); err != nil {
		return true, err
	}
	return true, nil
}

// openClient opens one named session. Directly spawned clients get the
// session name as their prompt via the configured prompt flag; shell-mode
// clients are typed into a fresh interactive shell instead.
func openClient(cfg *Config, name string, logSink io.Writer) (*client, error) {
	c := &client{prompt: regexp.QuoteMeta(name), timeout: cfg.StepTimeout.D()}

	if cfg.Client.UseShell {
		shell, err := expect.DetectShell()
		if err != nil {
			return nil, err
		}
		sess, err := expect.Open(expect.Options{Name: name, Command: []string{shell}, Log: logSink})
		if err != nil {
			return nil, err
		}
		c.sess = sess
		c.launch = strings.Join(append(append([]string{}, cfg.Client.Command...),
			cfg.Client.PromptFlag, promptArg(name)), " ")
		if err := sess.Send(c.launch); err != nil {
			sess.Close()
			return nil, err
		}
		return c, nil
	}

	argv := append(append([]string{}, cfg.Client.Command...), cfg.Client.PromptFlag, name)
	sess, err := expect.Open(expect.Options{Name: name, Command: argv, Log: logSink})
	if err != nil {
		return nil, err
	}
	c.sess = sess
	return c, nil
}

// promptArg quotes the prompt for the shell with the final character in its
// own quoted chunk, so the echoed command line never contains the contiguous
// prompt string and cannot satisfy a prompt expectation itself.
func promptArg(name string) string {
	if len(name) < 2 {
		return "'" + name + "'"
	}
	return "'" + name[:len(name)-1] + "''" + name[len(name)-1:] + "'"
}

// viewBase returns the view's unqualified name, used to address the server's
// inner state table during cleanup.
func viewBase(view string) string {
	if i := strings.LastIndex(view, "."); i >= 0 {
		return view[i+1:]
	}
	return view
}
