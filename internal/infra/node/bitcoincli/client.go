// Package bitcoincli implements mempoolaudit.Node on top of a bitcoin-cli
// compatible command-line tool.
package bitcoincli

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/mempoolverify/internal/mempoolaudit"
	"github.com/gabapcia/mempoolverify/internal/pkg/transport/command"
	"github.com/gabapcia/mempoolverify/internal/pkg/types"
)

// client queries the node through a command executor.
type client struct {
	exec command.Executor // executor bound to the node's command-line tool
}

// Ensure client implements the mempoolaudit.Node interface at compile time.
var _ mempoolaudit.Node = (*client)(nil)

// PendingTransactions runs "getrawmempool true".
func (c *client) PendingTransactions(ctx context.Context) (types.Output, error) {
	return c.query(ctx, "getrawmempool", "true")
}

// SerializedTransaction runs "getrawtransaction <txid>".
func (c *client) SerializedTransaction(ctx context.Context, txid string) (types.Output, error) {
	return c.query(ctx, "getrawtransaction", txid)
}

// query executes a node command and maps executor errors onto the
// mempoolaudit error taxonomy.
func (c *client) query(ctx context.Context, args ...string) (types.Output, error) {
	out, err := c.exec.Execute(ctx, args...)
	if err == nil {
		return out, nil
	}

	if errors.Is(err, command.ErrCommandTimeout) {
		return types.Output{}, fmt.Errorf("%w: %w", mempoolaudit.ErrCommandTimeout, err)
	}

	var cmdErr *command.Error
	if errors.As(err, &cmdErr) && cmdErr.Output != "" {
		return types.Output{}, fmt.Errorf("%w: %w\nstdout+stderr:\n%s", mempoolaudit.ErrCommandFailed, err, cmdErr.Output)
	}

	return types.Output{}, fmt.Errorf("%w: %w", mempoolaudit.ErrCommandFailed, err)
}

// NewClient creates a node client that runs its queries through exec.
func NewClient(exec command.Executor) *client {
	return &client{
		exec: exec,
	}
}
