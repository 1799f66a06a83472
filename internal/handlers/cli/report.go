package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/gabapcia/mempoolverify/internal/mempoolaudit"
)

// consoleReporter prints the human readable run output. Informational and
// progress lines are only written in verbose mode.
type consoleReporter struct {
	out     io.Writer
	verbose bool
}

// Compile-time assertion that consoleReporter implements mempoolaudit.Reporter.
var _ mempoolaudit.Reporter = (*consoleReporter)(nil)

func (r *consoleReporter) FetchingListing(context.Context) {
	if r.verbose {
		fmt.Fprintln(r.out, "[*] Fetching mempool with details ...")
	}
}

func (r *consoleReporter) Selected(_ context.Context, eligible int) {
	if r.verbose {
		fmt.Fprintf(r.out, "[*] Found %d top-level (no-depends) transactions to verify.\n", eligible)
	}
}

func (r *consoleReporter) Progress(_ context.Context, processed, total int) {
	if r.verbose {
		fmt.Fprintf(r.out, "    ... at %d/%d\n", processed, total)
	}
}

// Result prints the outcome of a run. Failure lines go to stderr; the success
// line and the first failing transaction id go to the reporter's output.
func (r *consoleReporter) Result(stderr io.Writer, result mempoolaudit.Result) {
	f := result.Failure
	if f == nil {
		fmt.Fprintf(r.out, "[OK] All %d transactions passed.\n", result.Processed)
		return
	}

	switch f.Category {
	case mempoolaudit.CategoryCommandFailed,
		mempoolaudit.CategoryCommandTimeout,
		mempoolaudit.CategoryUnexpectedOutputShape:
		fmt.Fprintf(stderr, "[ERROR] %s\n", f.Error())
	default:
		fmt.Fprintf(stderr, "[FAIL] %s\n", f.Error())
	}

	if f.TxID != "" {
		fmt.Fprintf(r.out, "[RESULT] First failing TXID: %s\n", f.TxID)
	}
}

func newConsoleReporter(out io.Writer, verbose bool) *consoleReporter {
	return &consoleReporter{
		out:     out,
		verbose: verbose,
	}
}
