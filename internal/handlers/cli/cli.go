package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/gabapcia/mempoolverify/internal/config"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the mempoolverify CLI application.
//
// Flag defaults come from the environment (see internal/config), so flags only
// need to be given to override them.
//
// Parameters:
//   - ctx: Context used to control the lifecycle of the CLI application.
//   - args: full command line, including the program name.
//   - stdout: destination of informational, progress and result lines.
//   - stderr: destination of failure lines and JSON logs.
//
// The returned error is nil on success. A failed verification run returns a
// *mempoolaudit.Failure; map it to an exit code with mempoolaudit.ExitCode.
// Every returned error has already been reported on stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "[ERROR] Invalid configuration:\n%v\n", err)
		return err
	}

	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "mempoolverify",
		Description:           "Verify every independent mempool transaction against an external /verify endpoint.",
		Usage:                 "mempoolverify [flags]",
		Writer:                stdout,
		ErrWriter:             stderr,
		Flags:                 verifyFlags(cfg),
		Action:                verifyAction(cfg, stdout, stderr, newService),
	}

	return app.Run(ctx, args)
}
