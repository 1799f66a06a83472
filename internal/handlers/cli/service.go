package cli

import (
	"github.com/gabapcia/mempoolverify/internal/config"
	"github.com/gabapcia/mempoolverify/internal/infra/node/bitcoincli"
	"github.com/gabapcia/mempoolverify/internal/infra/verifier/httpapi"
	"github.com/gabapcia/mempoolverify/internal/mempoolaudit"
	"github.com/gabapcia/mempoolverify/internal/pkg/transport/command"
	httptransport "github.com/gabapcia/mempoolverify/internal/pkg/transport/http"
)

// newService wires the bitcoin-cli node adapter and the HTTP verifier into a
// verification service.
func newService(cfg config.Config, reporter mempoolaudit.Reporter) mempoolaudit.Service {
	exec := command.NewExecutor(cfg.CLIPath,
		command.WithTimeout(cfg.CLITimeout),
		command.WithArgs(cfg.CLIArgs...),
	)
	node := bitcoincli.NewClient(exec)

	httpClient := httptransport.NewClient(httptransport.WithTimeout(cfg.VerifyTimeout()))
	verifier := httpapi.NewClient(httpClient, cfg.VerifyURL)

	return mempoolaudit.New(node, verifier, mempoolaudit.Config{
		Limit:    cfg.Limit,
		Reporter: reporter,
	})
}
