package application_test

import (
	"context"
	"fmt"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ports.Aggregator
type mockAggregator struct {
	mock.Mock
}

func (m *mockAggregator) Quote(
	ctx context.Context, req ports.QuoteRequest,
) (*domain.SwapQuote, error) {
	args := m.Called(ctx, req)
	var res *domain.SwapQuote
	if a := args.Get(0); a != nil {
		res = a.(*domain.SwapQuote)
	}
	return res, args.Error(1)
}

func (m *mockAggregator) CreateTransaction(
	ctx context.Context, requestID, userAddress, destinationAddress string,
) (*ports.UnsignedTx, error) {
	args := m.Called(ctx, requestID, userAddress, destinationAddress)
	var res *ports.UnsignedTx
	if a := args.Get(0); a != nil {
		res = a.(*ports.UnsignedTx)
	}
	return res, args.Error(1)
}

func (m *mockAggregator) Status(
	ctx context.Context, requestID, txID string,
) (*ports.SwapTracking, error) {
	args := m.Called(ctx, requestID, txID)
	var res *ports.SwapTracking
	if a := args.Get(0); a != nil {
		res = a.(*ports.SwapTracking)
	}
	return res, args.Error(1)
}

// ports.ChainService with deterministic derivation and mocked network calls.
type mockChainService struct {
	mock.Mock
	chain domain.Chain

	// derivationPath overrides the conventional path when set.
	derivationPath string
}

func newMockChainService(chain domain.Chain) *mockChainService {
	return &mockChainService{chain: chain}
}

func (m *mockChainService) Chain() domain.Chain {
	return m.chain
}

func (m *mockChainService) DeriveAccount(
	seed []byte, index uint32,
) (*domain.Account, error) {
	derivationPath := m.derivationPath
	if len(derivationPath) <= 0 {
		derivationPath = m.chain.DerivationPath(index)
	}
	return &domain.Account{
		Chain:          m.chain,
		DerivationPath: derivationPath,
		Address:        fmt.Sprintf("%s-address-%x-%d", m.chain, seed[:4], index),
		Index:          index,
	}, nil
}

func (m *mockChainService) SigningKeyFromSeed(
	seed []byte, index uint32,
) (*ports.SigningKey, error) {
	return &ports.SigningKey{}, nil
}

func (m *mockChainService) ValidateAddress(address string) bool {
	return len(address) > 0 && address != "invalid"
}

func (m *mockChainService) SignTransaction(
	ctx context.Context, key *ports.SigningKey, tx *ports.UnsignedTx,
) (*ports.SignedTx, error) {
	args := m.Called(ctx, key, tx)
	var res *ports.SignedTx
	if a := args.Get(0); a != nil {
		res = a.(*ports.SignedTx)
	}
	return res, args.Error(1)
}

func (m *mockChainService) BroadcastTransaction(
	ctx context.Context, signedTx []byte,
) (string, error) {
	args := m.Called(ctx, signedTx)
	return args.String(0), args.Error(1)
}

func (m *mockChainService) GetTxStatus(
	ctx context.Context, txid string,
) (ports.TxStatus, error) {
	args := m.Called(ctx, txid)
	return args.Get(0).(ports.TxStatus), args.Error(1)
}

func (m *mockChainService) GetBalance(
	ctx context.Context, address string,
) (decimal.Decimal, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
