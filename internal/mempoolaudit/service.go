// Package mempoolaudit verifies every independent pending transaction of a node
// against an external verification peer.
//
// A run fetches the mempool listing once, selects the transactions that have no
// unconfirmed dependencies, and for each of them fetches the serialized form and
// submits it for verification. The first failure stops the run.
package mempoolaudit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gabapcia/mempoolverify/internal/pkg/logger"
	"github.com/gabapcia/mempoolverify/internal/pkg/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package to the OpenTelemetry providers.
const instrumentationName = "github.com/gabapcia/mempoolverify/internal/mempoolaudit"

const (
	// ExpectedVerification is the value the verification peer must return in the
	// "verification" field of its response.
	ExpectedVerification = "Test"

	// progressInterval is the number of processed transactions between progress reports.
	progressInterval = 100
)

// VerificationRequest is the payload submitted to the verification peer.
type VerificationRequest struct {
	TxHex string `json:"tx_hex"`
}

// Node gives access to the pending transactions of a running node.
type Node interface {
	// PendingTransactions returns the mempool listing with full metadata.
	// Errors wrap ErrCommandFailed or ErrCommandTimeout.
	PendingTransactions(ctx context.Context) (types.Output, error)

	// SerializedTransaction returns the hex encoded form of a transaction.
	// Errors wrap ErrCommandFailed or ErrCommandTimeout.
	SerializedTransaction(ctx context.Context, txid string) (types.Output, error)
}

// Verifier submits a transaction to the verification peer.
type Verifier interface {
	// Verify sends req and returns the peer's response. Errors wrap
	// ErrVerificationHTTP or ErrVerificationTransport.
	Verify(ctx context.Context, req VerificationRequest) (types.Output, error)
}

// Reporter receives progress notifications during a run.
type Reporter interface {
	// FetchingListing is called before the mempool listing is requested.
	FetchingListing(ctx context.Context)

	// Selected is called once the work list is known.
	Selected(ctx context.Context, eligible int)

	// Progress is called before the first transaction and then every 100 transactions.
	Progress(ctx context.Context, processed, total int)
}

// noopReporter discards every notification.
type noopReporter struct{}

func (noopReporter) FetchingListing(context.Context) {}
func (noopReporter) Selected(context.Context, int) {}
func (noopReporter) Progress(context.Context, int, int) {}

// Config holds the run settings of the service.
type Config struct {
	Limit    int      // maximum number of transactions to verify, 0 means all
	Reporter Reporter // progress sink, may be nil
}

// Service runs verification passes over the node's mempool.
type Service interface {
	// Run performs one complete verification pass. It never panics or exits the
	// process; the outcome, including the first failure, is described by Result.
	Run(ctx context.Context) Result
}

// service is the concrete implementation of Service.
type service struct {
	node     Node
	verifier Verifier
	cfg      Config

	tracer   trace.Tracer
	verified metric.Int64Counter
	failed   metric.Int64Counter
}

// Compile-time check to ensure *service implements the Service interface.
var _ Service = (*service)(nil)

// run holds the mutable state of a single pass.
type run struct {
	result   Result
	listing  Listing
	workList []string
}

// Run implements the Service interface.
func (s *service) Run(ctx context.Context) Result {
	r := &run{
		result: Result{
			RunID: uuid.Must(uuid.NewV7()).String(),
			State: StateFetching,
		},
	}

	ctx, span := s.tracer.Start(ctx, "mempoolaudit.Run", trace.WithAttributes(
		attribute.String("run.id", r.result.RunID),
		attribute.Int("run.limit", s.cfg.Limit),
	))
	defer span.End()

	for !r.result.State.terminal() {
		switch r.result.State {
		case StateFetching:
			s.fetch(ctx, r)
		case StateFiltering:
			s.filter(ctx, r)
		case StateIterating:
			s.iterate(ctx, r)
		}
	}

	span.SetAttributes(
		attribute.Int("run.eligible", r.result.Eligible),
		attribute.Int("run.processed", r.result.Processed),
	)

	if f := r.result.Failure; f != nil {
		span.SetStatus(codes.Error, string(f.Category))
		span.RecordError(f)
		logger.Error(ctx, "verification run failed",
			"runID", r.result.RunID,
			"category", f.Category,
			"txid", f.TxID,
			"processed", r.result.Processed,
			"error", f.Error(),
		)
		return r.result
	}

	logger.Info(ctx, "verification run succeeded",
		"runID", r.result.RunID,
		"processed", r.result.Processed,
	)
	return r.result
}

// fail moves the run to StateFailed with the given failure.
func (s *service) fail(ctx context.Context, r *run, f *Failure) {
	r.result.State = StateFailed
	r.result.Failure = f
	s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(f.Category))))
}

// fetch requests the mempool listing and decodes it.
func (s *service) fetch(ctx context.Context, r *run) {
	s.cfg.Reporter.FetchingListing(ctx)

	out, err := s.node.PendingTransactions(ctx)
	if err != nil {
		s.fail(ctx, r, commandFailure(err, ""))
		return
	}

	doc, ok := out.Structured()
	if !ok {
		s.fail(ctx, r, &Failure{Category: CategoryUnexpectedOutputShape, Response: out, Err: ErrUnexpectedOutputShape})
		return
	}

	listing, err := ParseListing(doc)
	if err != nil {
		s.fail(ctx, r, &Failure{Category: CategoryUnexpectedOutputShape, Response: out, Err: err})
		return
	}

	r.listing = listing
	r.result.State = StateFiltering
}

// filter builds the work list from the listing.
func (s *service) filter(ctx context.Context, r *run) {
	sel := Select(r.listing, s.cfg.Limit)
	for _, entry := range sel.Malformed {
		logger.Warn(ctx, "skipping pending transaction with malformed metadata",
			"runID", r.result.RunID,
			"txid", entry.TxID,
			"reason", entry.Malformed,
		)
	}

	r.workList = sel.TxIDs
	r.result.Eligible = len(sel.TxIDs)
	r.result.Malformed = len(sel.Malformed)
	s.cfg.Reporter.Selected(ctx, r.result.Eligible)

	r.result.State = StateIterating
}

// iterate verifies the work list in order and stops at the first failure.
func (s *service) iterate(ctx context.Context, r *run) {
	total := len(r.workList)
	for _, txid := range r.workList {
		if r.result.Processed%progressInterval == 0 {
			s.cfg.Reporter.Progress(ctx, r.result.Processed, total)
		}

		if f := s.verifyTransaction(ctx, txid); f != nil {
			s.fail(ctx, r, f)
			return
		}

		r.result.Processed++
		s.verified.Add(ctx, 1)
	}

	r.result.State = StateSucceeded
}

// verifyTransaction runs the serialize then verify round trip for one transaction.
func (s *service) verifyTransaction(ctx context.Context, txid string) *Failure {
	ctx, span := s.tracer.Start(ctx, "mempoolaudit.VerifyTransaction", trace.WithAttributes(
		attribute.String("tx.id", txid),
	))
	defer span.End()

	serialized, err := s.node.SerializedTransaction(ctx, txid)
	if err != nil {
		return commandFailure(err, txid)
	}

	txHex, ok := serialized.Text()
	if !ok || txHex == "" {
		return &Failure{Category: CategoryMissingSerialization, TxID: txid, Response: serialized}
	}

	res, err := s.verifier.Verify(ctx, VerificationRequest{TxHex: txHex})
	if err != nil {
		category := CategoryVerificationTransportError
		if errors.Is(err, ErrVerificationHTTP) {
			category = CategoryVerificationHTTPError
		}
		return &Failure{Category: category, TxID: txid, Err: err}
	}

	if !matchesExpected(res) {
		return &Failure{Category: CategoryVerificationMismatch, TxID: txid, Response: res}
	}

	logger.Debug(ctx, "transaction verified", "txid", txid)
	return nil
}

// commandFailure classifies a Node error.
func commandFailure(err error, txid string) *Failure {
	category := CategoryCommandFailed
	if errors.Is(err, ErrCommandTimeout) {
		category = CategoryCommandTimeout
	}
	return &Failure{Category: category, TxID: txid, Err: err}
}

// matchesExpected reports whether res is a JSON object whose "verification"
// field is exactly the string ExpectedVerification.
func matchesExpected(res types.Output) bool {
	doc, ok := res.Structured()
	if !ok {
		return false
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(doc, &body); err != nil {
		return false
	}

	field, ok := body["verification"]
	if !ok {
		return false
	}

	var value string
	if err := json.Unmarshal(field, &value); err != nil {
		return false
	}

	return value == ExpectedVerification
}

// New creates a verification service over the given node and verifier.
// Spans and counters are recorded against the global OpenTelemetry providers.
func New(node Node, verifier Verifier, cfg Config) *service {
	if cfg.Reporter == nil {
		cfg.Reporter = noopReporter{}
	}

	meter := otel.Meter(instrumentationName)

	// Instruments returned alongside an error are still usable no-ops.
	verified, _ := meter.Int64Counter("mempoolaudit.transactions.verified",
		metric.WithDescription("Transactions that passed verification."),
	)
	failed, _ := meter.Int64Counter("mempoolaudit.transactions.failed",
		metric.WithDescription("Verification runs that stopped on a failure, by category."),
	)

	return &service{
		node:     node,
		verifier: verifier,
		cfg:      cfg,
		tracer:   otel.Tracer(instrumentationName),
		verified: verified,
		failed:   failed,
	}
}
