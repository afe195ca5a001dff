package watchdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// watch streams incremental results for a view until SIGINT or ctx
// cancellation. Interruption ends the watch, not the session: control
// returns to the prompt.
func (r *REPL) watch(ctx context.Context, name string) error {
	if !r.windowViewsEnabled() {
		return fmt.Errorf("window views are disabled (SET allow_experimental_window_view = 1)")
	}
	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("view %s does not exist", name)
	}

	wctx, stop := ctx, func() {}
	if !r.ExitOnInterrupt {
		wctx, stop = signal.NotifyContext(ctx, os.Interrupt)
	}
	defer stop()

	g, wctx := errgroup.WithContext(wctx)
	g.Go(func() error { return r.stream(wctx, v) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	// Fresh line so the prompt does not trail the interrupted stream.
	fmt.Fprintln(r.out)
	return nil
}

// stream emits one result block plus a cumulative progress line for every
// closed tumble window that delivered rows. Windows close on interval
// boundaries; the poll cadence is the heartbeat setting.
func (r *REPL) stream(ctx context.Context, v view) error {
	start := time.Now()
	next := start.Truncate(v.interval).Add(v.interval)
	var delivered int64

	ticker := time.NewTicker(r.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			for !next.After(now) {
				n, err := r.store.CountRange(v.source, next.Add(-v.interval), next)
				if err != nil {
					return err
				}
				if n > 0 {
					delivered += n
					r.printBlock(n)
					r.printProgress(delivered, time.Since(start))
				}
				next = next.Add(v.interval)
			}
		}
	}
}

// printBlock renders a one-value result block in the pretty table format the
// scenario's end-of-block pattern expects: the value line followed by the
// table frame bottom.
func (r *REPL) printBlock(count int64) {
	val := strconv.FormatInt(count, 10)
	w := len("count")
	if len(val) > w {
		w = len(val)
	}
	fmt.Fprintf(r.out, "┌─%s─┐\n", "count"+strings.Repeat("─", w-len("count")))
	fmt.Fprintf(r.out, "│ %*s │\n", w, val)
	fmt.Fprintf(r.out, "└─%s─┘\n", strings.Repeat("─", w))
	fmt.Fprintln(r.out)
}

// printProgress renders the cumulative delivery counter in the
// "Progress: N.00 rows ... )" shape the scenario asserts on.
func (r *REPL) printProgress(delivered int64, elapsed time.Duration) {
	rows := float64(delivered)
	bytes := rows * 8
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	fmt.Fprintf(r.out, "Progress: %.2f rows, %.2f B (%.2f rows/s., %.2f B/s.)\n",
		rows, bytes, rows/secs, bytes/secs)
}
