// Command mempoolverify submits every independent mempool transaction of a
// bitcoin node to a verification endpoint and stops at the first failure.
//
// Exit codes: 0 success, 1 node query or configuration failure, 2 missing
// serialized transaction or verification request failure, 3 verification
// mismatch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabapcia/mempoolverify/internal/handlers/cli"
	"github.com/gabapcia/mempoolverify/internal/mempoolaudit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()

	os.Exit(mempoolaudit.ExitCode(err))
}
