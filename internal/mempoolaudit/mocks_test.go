package mempoolaudit

import (
	"context"
	"testing"

	"github.com/gabapcia/mempoolverify/internal/pkg/types"

	"github.com/stretchr/testify/mock"
)

// NodeMock is a testify mock of Node.
type NodeMock struct {
	mock.Mock
}

func (m *NodeMock) PendingTransactions(ctx context.Context) (types.Output, error) {
	ret := m.Called(ctx)
	return ret.Get(0).(types.Output), ret.Error(1)
}

func (m *NodeMock) SerializedTransaction(ctx context.Context, txid string) (types.Output, error) {
	ret := m.Called(ctx, txid)
	return ret.Get(0).(types.Output), ret.Error(1)
}

// NewNodeMock creates a NodeMock whose expectations are asserted on cleanup.
func NewNodeMock(t *testing.T) *NodeMock {
	m := new(NodeMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// VerifierMock is a testify mock of Verifier.
type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, req VerificationRequest) (types.Output, error) {
	ret := m.Called(ctx, req)
	return ret.Get(0).(types.Output), ret.Error(1)
}

// NewVerifierMock creates a VerifierMock whose expectations are asserted on cleanup.
func NewVerifierMock(t *testing.T) *VerifierMock {
	m := new(VerifierMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// ReporterMock is a testify mock of Reporter.
type ReporterMock struct {
	mock.Mock
}

func (m *ReporterMock) FetchingListing(ctx context.Context) {
	m.Called(ctx)
}

func (m *ReporterMock) Selected(ctx context.Context, eligible int) {
	m.Called(ctx, eligible)
}

func (m *ReporterMock) Progress(ctx context.Context, processed, total int) {
	m.Called(ctx, processed, total)
}

// NewReporterMock creates a ReporterMock whose expectations are asserted on cleanup.
func NewReporterMock(t *testing.T) *ReporterMock {
	m := new(ReporterMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
