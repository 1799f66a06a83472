package mempoolaudit

import (
	"errors"
	"fmt"

	"github.com/gabapcia/mempoolverify/internal/pkg/types"
)

var (
	// ErrCommandFailed is returned by Node implementations when the node query
	// could not be run or exited with a non-zero status.
	ErrCommandFailed = errors.New("node command failed")

	// ErrCommandTimeout is returned by Node implementations when the node query
	// did not finish in time.
	ErrCommandTimeout = errors.New("node command timed out")

	// ErrVerificationHTTP is returned by Verifier implementations when the
	// verification peer answered with a non-2xx status.
	ErrVerificationHTTP = errors.New("verification endpoint returned an error status")

	// ErrVerificationTransport is returned by Verifier implementations when the
	// request could not be completed (connection, DNS, timeout, TLS, malformed response).
	ErrVerificationTransport = errors.New("verification request failed")

	// ErrUnexpectedOutputShape is returned by ParseListing when the pending
	// transaction listing is not a JSON object keyed by transaction id.
	ErrUnexpectedOutputShape = errors.New("unexpected pending transaction listing shape")
)

// State is a step of the verification run.
type State int

const (
	StateFetching State = iota
	StateFiltering
	StateIterating
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFetching:
		return "Fetching"
	case StateFiltering:
		return "Filtering"
	case StateIterating:
		return "Iterating"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// terminal reports whether the run stops in this state.
func (s State) terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Category classifies why a run failed.
type Category string

const (
	CategoryCommandFailed              Category = "CommandFailed"
	CategoryCommandTimeout             Category = "CommandTimeout"
	CategoryUnexpectedOutputShape      Category = "UnexpectedOutputShape"
	CategoryMissingSerialization       Category = "MissingSerialization"
	CategoryVerificationTransportError Category = "VerificationTransportError"
	CategoryVerificationHTTPError      Category = "VerificationHttpError"
	CategoryVerificationMismatch       Category = "VerificationMismatch"
)

// ExitCode returns the process exit code associated with the category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryMissingSerialization, CategoryVerificationTransportError, CategoryVerificationHTTPError:
		return 2
	case CategoryVerificationMismatch:
		return 3
	default:
		return 1
	}
}

// Failure describes the first failure of a run. It implements error so it can
// travel through the CLI layer up to the process boundary.
type Failure struct {
	Category Category     // failure taxonomy
	TxID     string       // first failing transaction, empty when the failure is not per-transaction
	Response types.Output // offending node or verifier output, when there is one
	Err      error        // underlying cause, when there is one
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch f.Category {
	case CategoryCommandFailed, CategoryCommandTimeout:
		if f.TxID != "" {
			return fmt.Sprintf("node query failed for %s: %v", f.TxID, f.Err)
		}
		return fmt.Sprintf("node query failed: %v", f.Err)
	case CategoryUnexpectedOutputShape:
		return "unexpected getrawmempool output (expected JSON object)"
	case CategoryMissingSerialization:
		return fmt.Sprintf("getrawtransaction returned empty/non-text for %s", f.TxID)
	case CategoryVerificationTransportError, CategoryVerificationHTTPError:
		return fmt.Sprintf("HTTP error verifying %s: %v", f.TxID, f.Err)
	case CategoryVerificationMismatch:
		return fmt.Sprintf("Verification mismatch for %s. Got: %s", f.TxID, f.Response.String())
	default:
		return fmt.Sprintf("%s: %v", f.Category, f.Err)
	}
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one verification run.
type Result struct {
	RunID     string   // unique id of the run, attached to logs and traces
	State     State    // terminal state: StateSucceeded or StateFailed
	Eligible  int      // number of transactions selected for verification
	Processed int      // number of transactions that passed verification
	Malformed int      // number of listing entries excluded for malformed metadata
	Failure   *Failure // first failure, nil on success
}

// Err returns the run failure as an error, or nil when the run succeeded.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// ExitCode maps an error returned from a run (or from anything around it) to a
// process exit code:
//
//   - 0: success, including runs with zero eligible transactions
//   - 1: node query failure or unexpected listing shape, and any non-run error
//   - 2: missing serialized transaction or verification request error
//   - 3: verification response mismatch
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Category.ExitCode()
	}

	return 1
}
