package mempoolaudit

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/gabapcia/mempoolverify/internal/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var verificationOK = types.ParseOutput(`{"verification":"Test"}`)

// listingOf builds a getrawmempool document of n independent transactions tx0..tx(n-1).
func listingOf(n int) types.Output {
	parts := make([]string, 0, n)
	for i := range n {
		parts = append(parts, fmt.Sprintf(`"tx%d":{"depends":[]}`, i))
	}
	return types.ParseOutput("{" + strings.Join(parts, ",") + "}")
}

func TestNew(t *testing.T) {
	t.Run("creates service with provided dependencies", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		svc := New(node, verifier, Config{Limit: 5})

		require.NotNil(t, svc)
		assert.Equal(t, node, svc.node)
		assert.Equal(t, verifier, svc.verifier)
		assert.Equal(t, 5, svc.cfg.Limit)
		assert.IsType(t, noopReporter{}, svc.cfg.Reporter, "a nil reporter falls back to a no-op")
		assert.NotNil(t, svc.tracer)
		assert.NotNil(t, svc.verified)
		assert.NotNil(t, svc.failed)
	})
}

func TestService_Run(t *testing.T) {
	t.Run("succeeds when every independent transaction verifies", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).
			Return(types.ParseOutput(`{"a":{"depends":[]},"b":{"depends":["a"]}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").
			Return(types.ParseOutput("0100000001abcdef\n"), nil).Once()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "0100000001abcdef"}).
			Return(verificationOK, nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, 1, result.Eligible)
		assert.Equal(t, 1, result.Processed)
		assert.Nil(t, result.Failure)
		assert.NoError(t, result.Err())
		assert.Equal(t, 0, ExitCode(result.Err()))
		assert.NotEmpty(t, result.RunID)
	})

	t.Run("succeeds with zero processed when nothing is eligible", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).
			Return(types.ParseOutput(`{"a":{"depends":["x"]}}`), nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, 0, result.Eligible)
		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, 0, ExitCode(result.Err()))
	})

	t.Run("succeeds with zero processed on an empty mempool", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{}`), nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, 0, result.Processed)
	})

	t.Run("fails with VerificationMismatch on an unexpected verdict", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)
		response := types.ParseOutput(`{"verification":"Fail"}`)

		node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{"a":{"depends":[]}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").Return(types.ParseOutput("0100"), nil).Once()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "0100"}).Return(response, nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateFailed, result.State)
		require.NotNil(t, result.Failure)
		assert.Equal(t, CategoryVerificationMismatch, result.Failure.Category)
		assert.Equal(t, "a", result.Failure.TxID)
		assert.Equal(t, response, result.Failure.Response)
		assert.Equal(t, `Verification mismatch for a. Got: {"verification":"Fail"}`, result.Failure.Error())
		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, 3, ExitCode(result.Err()))
	})

	t.Run("fails with VerificationHttpError on non-2xx responses", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)
		httpErr := fmt.Errorf("HTTP 500: boom: %w", ErrVerificationHTTP)

		node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{"a":{"depends":[]}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").Return(types.ParseOutput("0100"), nil).Once()
		verifier.On("Verify", mock.Anything, mock.Anything).Return(types.Output{}, httpErr).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		require.NotNil(t, result.Failure)
		assert.Equal(t, CategoryVerificationHTTPError, result.Failure.Category)
		assert.Equal(t, "a", result.Failure.TxID)
		assert.ErrorIs(t, result.Err(), ErrVerificationHTTP)
		assert.Equal(t, 2, ExitCode(result.Err()))
	})

	t.Run("fails with VerificationTransportError when the request fails", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{"a":{"depends":[]}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").Return(types.ParseOutput("0100"), nil).Once()
		verifier.On("Verify", mock.Anything, mock.Anything).
			Return(types.Output{}, fmt.Errorf("%w: connection refused", ErrVerificationTransport)).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		require.NotNil(t, result.Failure)
		assert.Equal(t, CategoryVerificationTransportError, result.Failure.Category)
		assert.Contains(t, result.Failure.Error(), "HTTP error verifying a")
		assert.Equal(t, 2, ExitCode(result.Err()))
	})

	t.Run("processes exactly the limit", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).Return(listingOf(10), nil).Once()
		for i := range 3 {
			txid := fmt.Sprintf("tx%d", i)
			node.On("SerializedTransaction", mock.Anything, txid).Return(types.ParseOutput("0100"+txid), nil).Once()
		}
		verifier.On("Verify", mock.Anything, mock.Anything).Return(verificationOK, nil).Times(3)

		result := New(node, verifier, Config{Limit: 3}).Run(t.Context())

		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, 3, result.Eligible)
		assert.Equal(t, 3, result.Processed)
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).Return(listingOf(4), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "tx0").Return(types.ParseOutput("00"), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "tx1").Return(types.ParseOutput("01"), nil).Once()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "00"}).Return(verificationOK, nil).Once()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "01"}).
			Return(types.ParseOutput(`{"verification":"Fail"}`), nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		require.NotNil(t, result.Failure)
		assert.Equal(t, "tx1", result.Failure.TxID)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 4, result.Eligible)
		node.AssertNotCalled(t, "SerializedTransaction", mock.Anything, "tx2")
		verifier.AssertNumberOfCalls(t, "Verify", 2)
	})

	t.Run("fails with CommandFailed when the listing query fails", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).
			Return(types.Output{}, fmt.Errorf("%w: exit status 1", ErrCommandFailed)).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateFailed, result.State)
		require.NotNil(t, result.Failure)
		assert.Equal(t, CategoryCommandFailed, result.Failure.Category)
		assert.Empty(t, result.Failure.TxID)
		assert.Equal(t, 1, ExitCode(result.Err()))
	})

	t.Run("fails with CommandTimeout when the listing query times out", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).
			Return(types.Output{}, fmt.Errorf("%w: getrawmempool", ErrCommandTimeout)).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		require.NotNil(t, result.Failure)
		assert.Equal(t, CategoryCommandTimeout, result.Failure.Category)
		assert.Equal(t, 1, ExitCode(result.Err()))
	})

	t.Run("records the txid when fetching a serialized transaction fails", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{"a":{"depends":[]}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").
			Return(types.Output{}, fmt.Errorf("%w: exit status 5", ErrCommandFailed)).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		require.NotNil(t, result.Failure)
		assert.Equal(t, CategoryCommandFailed, result.Failure.Category)
		assert.Equal(t, "a", result.Failure.TxID)
		assert.Equal(t, 1, ExitCode(result.Err()))
	})

	shapeCases := map[string]types.Output{
		"raw text": types.ParseOutput("error: Could not connect to the server"),
		"array":    types.ParseOutput(`["a","b"]`),
		"number":   types.ParseOutput(`3`),
	}
	for name, out := range shapeCases {
		t.Run("fails with UnexpectedOutputShape for listing as "+name, func(t *testing.T) {
			node := NewNodeMock(t)
			verifier := NewVerifierMock(t)

			node.On("PendingTransactions", mock.Anything).Return(out, nil).Once()

			result := New(node, verifier, Config{}).Run(t.Context())

			require.NotNil(t, result.Failure)
			assert.Equal(t, CategoryUnexpectedOutputShape, result.Failure.Category)
			assert.ErrorIs(t, result.Err(), ErrUnexpectedOutputShape)
			assert.Equal(t, 1, ExitCode(result.Err()))
		})
	}

	serializationCases := map[string]types.Output{
		"empty text":  types.ParseOutput("\n"),
		"json object": types.ParseOutput(`{"hex":"0100"}`),
		"json number": types.ParseOutput(`12`),
		"empty json":  types.ParseOutput(`""`),
	}
	for name, out := range serializationCases {
		t.Run("fails with MissingSerialization for "+name, func(t *testing.T) {
			node := NewNodeMock(t)
			verifier := NewVerifierMock(t)

			node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{"a":{"depends":[]}}`), nil).Once()
			node.On("SerializedTransaction", mock.Anything, "a").Return(out, nil).Once()

			result := New(node, verifier, Config{}).Run(t.Context())

			require.NotNil(t, result.Failure)
			assert.Equal(t, CategoryMissingSerialization, result.Failure.Category)
			assert.Equal(t, "a", result.Failure.TxID)
			assert.Equal(t, "getrawtransaction returned empty/non-text for a", result.Failure.Error())
			assert.Equal(t, 2, ExitCode(result.Err()))
		})
	}

	t.Run("accepts a serialized transaction framed as a json string", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).Return(types.ParseOutput(`{"a":{"depends":[]}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").Return(types.ParseOutput(`"0100"`), nil).Once()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "0100"}).Return(verificationOK, nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateSucceeded, result.State)
	})

	t.Run("skips malformed entries and counts them", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).
			Return(types.ParseOutput(`{"bad":7,"a":{"depends":[]},"worse":{"depends":"x"}}`), nil).Once()
		node.On("SerializedTransaction", mock.Anything, "a").Return(types.ParseOutput("0100"), nil).Once()
		verifier.On("Verify", mock.Anything, mock.Anything).Return(verificationOK, nil).Once()

		result := New(node, verifier, Config{}).Run(t.Context())

		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 2, result.Malformed)
	})

	t.Run("reports phases and progress every hundred transactions", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)
		reporter := NewReporterMock(t)

		node.On("PendingTransactions", mock.Anything).Return(listingOf(250), nil).Once()
		node.On("SerializedTransaction", mock.Anything, mock.Anything).Return(types.ParseOutput("0100"), nil).Times(250)
		verifier.On("Verify", mock.Anything, mock.Anything).Return(verificationOK, nil).Times(250)

		reporter.On("FetchingListing", mock.Anything).Once()
		reporter.On("Selected", mock.Anything, 250).Once()
		reporter.On("Progress", mock.Anything, 0, 250).Once()
		reporter.On("Progress", mock.Anything, 100, 250).Once()
		reporter.On("Progress", mock.Anything, 200, 250).Once()

		result := New(node, verifier, Config{Reporter: reporter}).Run(t.Context())

		assert.Equal(t, 250, result.Processed)
		reporter.AssertNumberOfCalls(t, "Progress", 3)
	})

	t.Run("is idempotent against unchanged peers", func(t *testing.T) {
		node := NewNodeMock(t)
		verifier := NewVerifierMock(t)

		node.On("PendingTransactions", mock.Anything).
			Return(types.ParseOutput(`{"a":{"depends":[]},"b":{"depends":["a"]},"c":{"depends":[]}}`), nil).Twice()
		node.On("SerializedTransaction", mock.Anything, "a").Return(types.ParseOutput("0a"), nil).Twice()
		node.On("SerializedTransaction", mock.Anything, "c").Return(types.ParseOutput("0c"), nil).Twice()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "0a"}).Return(verificationOK, nil).Twice()
		verifier.On("Verify", mock.Anything, VerificationRequest{TxHex: "0c"}).
			Return(types.ParseOutput(`{"verification":"Fail"}`), nil).Twice()

		svc := New(node, verifier, Config{})
		first := svc.Run(t.Context())
		second := svc.Run(t.Context())

		assert.NotEqual(t, first.RunID, second.RunID)
		first.RunID, second.RunID = "", ""
		assert.Equal(t, first, second)
		require.NotNil(t, second.Failure)
		assert.Equal(t, "c", second.Failure.TxID)
		assert.Equal(t, 1, second.Processed)
	})
}

func TestMatchesExpected(t *testing.T) {
	testCases := []struct {
		name     string
		response types.Output
		expected bool
	}{
		{name: "exact match", response: types.ParseOutput(`{"verification":"Test"}`), expected: true},
		{name: "extra fields are ignored", response: types.ParseOutput(`{"verification":"Test","elapsed_ms":3}`), expected: true},
		{name: "different value", response: types.ParseOutput(`{"verification":"Fail"}`), expected: false},
		{name: "different case", response: types.ParseOutput(`{"verification":"test"}`), expected: false},
		{name: "non-string value", response: types.ParseOutput(`{"verification":true}`), expected: false},
		{name: "missing field", response: types.ParseOutput(`{"result":"Test"}`), expected: false},
		{name: "array", response: types.ParseOutput(`[{"verification":"Test"}]`), expected: false},
		{name: "json string", response: types.ParseOutput(`"Test"`), expected: false},
		{name: "null", response: types.NewStructuredOutput(json.RawMessage(`null`)), expected: false},
		{name: "plain text", response: types.ParseOutput(`Test`), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, matchesExpected(tc.response))
		})
	}
}
