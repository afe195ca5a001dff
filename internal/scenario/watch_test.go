package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wvharness/internal/expect"
	"wvharness/internal/watchdb"
)

// replModeEnv turns the re-executed test binary into the watchdb fixture
// client so scenarios have a real interactive process to drive.
const replModeEnv = "WVHARNESS_WATCHDB"

func TestMain(m *testing.M) {
	if os.Getenv(replModeEnv) == "1" {
		prompt, dbPath := "watchdb>", ""
		exitOnInterrupt := false
		for i, a := range os.Args {
			switch {
			case a == "--prompt" && i+1 < len(os.Args):
				prompt = os.Args[i+1]
			case a == "--db" && i+1 < len(os.Args):
				dbPath = os.Args[i+1]
			case a == "--exit-on-interrupt":
				exitOnInterrupt = true
			}
		}
		r, err := watchdb.New(prompt, dbPath, os.Stdin, os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		r.ExitOnInterrupt = exitOnInterrupt
		if err := r.Run(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// fixtureConfig points the scenario at this test binary running in REPL
// mode. Both clients open the same sqlite file, so inserts from one session
// are visible to the other's watch.
func fixtureConfig(t *testing.T, name string) *Config {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "watchdb.sqlite")
	return &Config{
		Name:   name,
		Client: ClientConfig{Command: []string{os.Args[0], "--db", dbPath}},
	}
}

func TestWindowWatchScenario(t *testing.T) {
	t.Setenv(replModeEnv, "1")

	before := expect.DefaultManager.Count()
	require.NoError(t, Run(fixtureConfig(t, "tumble-watch"), nil))
	assert.Equal(t, before, expect.DefaultManager.Count(), "scenario must close every session it opens")
}

func TestWindowWatchSingleInsert(t *testing.T) {
	t.Setenv(replModeEnv, "1")

	cfg := fixtureConfig(t, "tumble-watch-single")
	cfg.Inserts = 1
	require.NoError(t, Run(cfg, nil))
}

func TestScenarioFailsOnUnresponsiveClient(t *testing.T) {
	// cat never prints a prompt, so the very first expectation must fail
	// with a timeout naming the pattern. The sh wrapper swallows the
	// appended prompt option as positional parameters.
	cfg := &Config{
		Name:        "unresponsive",
		Client:      ClientConfig{Command: []string{"/bin/sh", "-c", "cat"}},
		StepTimeout: Duration(300 * time.Millisecond),
	}

	before := expect.DefaultManager.Count()
	err := Run(cfg, nil)
	require.Error(t, err)

	var terr *expect.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Patterns[0], "client1>")
	assert.Equal(t, before, expect.DefaultManager.Count(), "sessions must be released on failure too")
}

func TestScenarioFailsOnMissingClient(t *testing.T) {
	cfg := &Config{
		Name:   "missing-client",
		Client: ClientConfig{Command: []string{"/no/such/client"}},
	}

	err := Run(cfg, nil)
	var cerr *expect.ConnectError
	require.True(t, errors.As(err, &cerr))
}

func TestScenarioRejectsInvalidConfig(t *testing.T) {
	err := Run(&Config{Name: "no-client"}, nil)
	require.Error(t, err)
}

func TestOpenClientShellMode(t *testing.T) {
	t.Setenv(replModeEnv, "1")

	cfg := fixtureConfig(t, "shell-mode")
	cfg.Client.UseShell = true
	require.NoError(t, cfg.Validate())

	c, err := openClient(cfg, "client1>", nil)
	require.NoError(t, err)
	defer c.sess.Close()

	assert.Contains(t, c.launch, os.Args[0])
	assert.Contains(t, c.launch, "--prompt 'client1''>'")

	// The client typed into the shell must come up and prompt.
	_, err = c.sess.Expect(c.prompt, 10*time.Second)
	require.NoError(t, err)
}

func TestInterruptShellFallbackResends(t *testing.T) {
	t.Setenv(replModeEnv, "1")

	// The fixture dies on SIGINT, so the interrupt drops the session to
	// the parent shell and recovery must go through one relaunch.
	cfg := fixtureConfig(t, "interrupt-shell")
	cfg.Client.Command = append(cfg.Client.Command, "--exit-on-interrupt")
	cfg.Client.UseShell = true
	require.NoError(t, cfg.Validate())

	c, err := openClient(cfg, "client1>", nil)
	require.NoError(t, err)
	defer c.sess.Close()

	_, err = c.sess.Expect(c.prompt, 10*time.Second)
	require.NoError(t, err)

	resent, err := interrupt(c)
	require.NoError(t, err)
	assert.True(t, resent, "a client killed by the interrupt must be relaunched")

	// The relaunched client answers statements on the same session.
	require.NoError(t, c.step("SET allow_experimental_window_view = 1"))
}

func TestInterruptDuringWatchResumesPrompt(t *testing.T) {
	t.Setenv(replModeEnv, "1")

	cfg := fixtureConfig(t, "interrupt-watch")
	require.NoError(t, cfg.Validate())

	c, err := openClient(cfg, "client1>", nil)
	require.NoError(t, err)
	defer c.sess.Close()

	_, err = c.sess.Expect(c.prompt, 10*time.Second)
	require.NoError(t, err)

	for _, stmt := range []string{
		"SET allow_experimental_window_view = 1",
		"SET window_view_heartbeat_interval = 1",
		"CREATE TABLE test.mt(a Int32, timestamp DateTime) ENGINE=MergeTree ORDER BY tuple()",
		"CREATE WINDOW VIEW test.wv AS SELECT count(a) AS count FROM test.mt GROUP BY TUMBLE(timestamp, INTERVAL '1' SECOND) AS wid",
	} {
		require.NoError(t, c.step(stmt))
	}

	require.NoError(t, c.sess.Send("WATCH test.wv"))
	// Let the client enter the watch before the interrupt arrives.
	time.Sleep(200 * time.Millisecond)

	resent, err := interrupt(c)
	require.NoError(t, err)
	assert.False(t, resent, "a client that survives the interrupt needs no relaunch")

	// The same session keeps answering statements afterwards.
	require.NoError(t, c.step("DROP TABLE test.wv"))
}

func TestPromptArg(t *testing.T) {
	assert.Equal(t, "'client1''>'", promptArg("client1>"))
	assert.Equal(t, "'x'", promptArg("x"))
	assert.NotContains(t, promptArg("client1>"), "client1>")
}
