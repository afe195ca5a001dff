package watchdb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultHeartbeat = 3 * time.Second

var (
	reSet        = regexp.MustCompile(`(?i)^SET\s+(\w+)\s*=\s*(\S+)$`)
	reDropTable  = regexp.MustCompile(`(?i)^DROP\s+TABLE\s+(IF\s+EXISTS\s+)?(\S+)$`)
	reCreateTbl  = regexp.MustCompile(`(?i)^CREATE\s+TABLE\s+([^\s(]+)\s*\(`)
	reCreateView = regexp.MustCompile(`(?i)^CREATE\s+WINDOW\s+VIEW\s+(\S+)\s+AS\s+SELECT\s+.+?\s+FROM\s+(\S+)\s+GROUP\s+BY\s+TUMBLE\(\s*\w+\s*,\s*INTERVAL\s+'(\d+)'\s+SECOND\s*\)`)
	reInsert     = regexp.MustCompile(`(?i)^INSERT\s+INTO\s+(\S+)\s+VALUES\s*(.+)$`)
	reWatch      = regexp.MustCompile(`(?i)^WATCH\s+(\S+)$`)

	// reRowValue finds the leading integer of each inserted row tuple.
	reRowValue = regexp.MustCompile(`\(\s*(-?\d+)`)
)

// view is a registered window view: a tumble-window count over the insert
// stream of one source table.
type view struct {
	name     string
	source   string
	interval time.Duration
}

// REPL is one interactive fixture client: it prints a prompt, reads
// newline-terminated statements, and answers on its output stream.
type REPL struct {
	// ExitOnInterrupt disables the SIGINT handlers, so an interrupt kills
	// the process instead of canceling the running watch. Scenarios use it
	// to rehearse a client that dies under Ctrl-C.
	ExitOnInterrupt bool

	prompt   string
	in       *bufio.Scanner
	out      io.Writer
	store    *Store
	settings map[string]string
	views    map[string]view
}

// New builds a REPL reading statements from in and answering on out. An
// empty dbPath keeps rows in process-private memory; a file path shares them
// with every other client opened on the same path.
func New(prompt, dbPath string, in io.Reader, out io.Writer) (*REPL, error) {
	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &REPL{
		prompt:   prompt,
		in:       bufio.NewScanner(in),
		out:      out,
		store:    store,
		settings: make(map[string]string),
		views:    make(map[string]view),
	}, nil
}

// Run serves statements until the input stream ends or ctx is canceled.
// SIGINT outside a WATCH is swallowed so the client survives a stray Ctrl-C.
func (r *REPL) Run(ctx context.Context) error {
	defer r.store.Close()

	if !r.ExitOnInterrupt {
		stray := make(chan os.Signal, 1)
		signal.Notify(stray, os.Interrupt)
		defer signal.Stop(stray)
	}

	for {
		fmt.Fprintf(r.out, "%s ", r.prompt)
		if !r.in.Scan() {
			return r.in.Err()
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.in.Text()), ";"))
		if line == "" {
			continue
		}
		if err := r.exec(ctx, line); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}

func (r *REPL) exec(ctx context.Context, line string) error {
	switch {
	case reSet.MatchString(line):
		m := reSet.FindStringSubmatch(line)
		r.settings[strings.ToLower(m[1])] = m[2]
		return nil

	case reDropTable.MatchString(line):
		m := reDropTable.FindStringSubmatch(line)
		return r.dropTable(ident(m[2]), m[1] != "")

	case reCreateView.MatchString(line):
		m := reCreateView.FindStringSubmatch(line)
		return r.createView(ident(m[1]), ident(m[2]), m[3])

	case reCreateTbl.MatchString(line):
		m := reCreateTbl.FindStringSubmatch(line)
		return r.store.CreateTable(ident(m[1]))

	case reInsert.MatchString(line):
		m := reInsert.FindStringSubmatch(line)
		return r.insert(ident(m[1]), m[2])

	case reWatch.MatchString(line):
		m := reWatch.FindStringSubmatch(line)
		return r.watch(ctx, ident(m[1]))

	default:
		return fmt.Errorf("syntax error: %s", line)
	}
}

func (r *REPL) dropTable(name string, ifExists bool) error {
	if _, ok := r.views[name]; ok {
		delete(r.views, name)
		return nil
	}
	exists, err := r.store.HasTable(name)
	if err != nil {
		return err
	}
	if !exists {
		if ifExists {
			return nil
		}
		return fmt.Errorf("table %s does not exist", name)
	}
	return r.store.DropTable(name)
}

func (r *REPL) createView(name, source, seconds string) error {
	if !r.windowViewsEnabled() {
		return fmt.Errorf("window views are disabled (SET allow_experimental_window_view = 1)")
	}
	exists, err := r.store.HasTable(source)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", source)
	}
	secs, err := strconv.Atoi(seconds)
	if err != nil || secs <= 0 {
		return fmt.Errorf("bad tumble interval %q", seconds)
	}
	r.views[name] = view{name: name, source: source, interval: time.Duration(secs) * time.Second}
	return nil
}

func (r *REPL) insert(table, values string) error {
	exists, err := r.store.HasTable(table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", table)
	}
	rows := reRowValue.FindAllStringSubmatch(values, -1)
	if len(rows) == 0 {
		return fmt.Errorf("no rows in VALUES clause: %s", values)
	}
	now := time.Now()
	for _, row := range rows {
		a, _ := strconv.ParseInt(row[1], 10, 64)
		// Timestamp expressions are always evaluated as now(); the fixture
		// has no other clock source.
		if err := r.store.Insert(table, a, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *REPL) windowViewsEnabled() bool {
	return r.settings["allow_experimental_window_view"] == "1"
}

// heartbeat is the watch poll interval, taken from the
// window_view_heartbeat_interval setting (seconds).
func (r *REPL) heartbeat() time.Duration {
	v, ok := r.settings["window_view_heartbeat_interval"]
	if !ok {
		return defaultHeartbeat
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return defaultHeartbeat
	}
	return time.Duration(secs) * time.Second
}

// ident strips backtick quoting so dotted names like `.inner.wv` compare
// equal to their bare spelling.
func ident(name string) string {
	return strings.Trim(name, "`")
}
