package application_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harborwallet/harbor/internal/core/application"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	"github.com/harborwallet/harbor/internal/infrastructure/storage/db/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	trackingWait = 2 * time.Second
	trackingTick = 10 * time.Millisecond
)

type swapTestEnv struct {
	walletSvc   *application.WalletService
	swapSvc     *application.SwapService
	services    map[domain.Chain]*mockChainService
	aggregator  *mockAggregator
	repoManager ports.RepoManager

	userID    string
	walletID  string
	addresses map[domain.Chain]string
}

func newSwapTestEnv(
	t *testing.T, destinationTimeout time.Duration,
) *swapTestEnv {
	return newSwapTestEnvWithTimeouts(t, time.Minute, destinationTimeout)
}

func newSwapTestEnvWithTimeouts(
	t *testing.T, submissionTimeout, destinationTimeout time.Duration,
) *swapTestEnv {
	services := newTestChainServices()
	registry := newTestRegistry(t, services)
	repoManager := inmemory.NewRepoManager()
	keyStore := newTestKeyStore(t)
	aggregator := &mockAggregator{}

	walletSvc := application.NewWalletService(repoManager, keyStore, registry)
	swapSvc := application.NewSwapService(
		repoManager, keyStore, aggregator, registry,
		submissionTimeout, destinationTimeout, trackingTick,
	)
	t.Cleanup(swapSvc.Stop)

	_, info, err := walletSvc.CreateWallet(ctx, "user-1")
	require.NoError(t, err)

	return &swapTestEnv{
		walletSvc:   walletSvc,
		swapSvc:     swapSvc,
		services:    services,
		aggregator:  aggregator,
		repoManager: repoManager,
		userID:      "user-1",
		walletID:    info.ID,
		addresses:   info.Addresses,
	}
}

func (env *swapTestEnv) swapStatus(t *testing.T, swapID string) *application.SwapInfo {
	info, err := env.swapSvc.GetSwap(ctx, env.userID, swapID)
	require.NoError(t, err)
	return info
}

func newTestSwapRequest() application.SwapRequest {
	return application.SwapRequest{
		FromChain: domain.ChainEthereum,
		ToChain:   domain.ChainSolana,
		FromAsset: "ETH",
		ToAsset:   "SOL",
		Amount:    decimal.NewFromFloat(1.5),
	}
}

func newTestQuote(requestID string, expiresAt time.Time) *domain.SwapQuote {
	return &domain.SwapQuote{
		RequestID:   requestID,
		FromChain:   domain.ChainEthereum,
		ToChain:     domain.ChainSolana,
		FromAsset:   "ETH",
		ToAsset:     "SOL",
		AmountIn:    decimal.NewFromFloat(1.5),
		AmountOut:   decimal.NewFromInt(150),
		FeeAmount:   decimal.NewFromFloat(0.0021),
		FeeAsset:    "ETH",
		Route:       []string{"eth", "solana"},
		SlippagePct: decimal.NewFromInt(1),
		ExpiresAt:   expiresAt,
	}
}

func TestRequestQuote(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)

	info, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)
	require.Equal(t, domain.SwapQuoted.String(), info.Status)
	require.Equal(t, env.walletID, info.WalletID)
	require.True(t, info.AmountOut.Equal(decimal.NewFromInt(150)))
	// the destination defaults to the wallet's own account
	require.Equal(t, env.addresses[domain.ChainSolana], info.DestinationAddress)
	require.True(t, info.QuoteExpiresAt.After(time.Now()))

	t.Run("custom destination", func(t *testing.T) {
		req := newTestSwapRequest()
		req.DestinationAddress = "destination-elsewhere"
		info, err := env.swapSvc.RequestQuote(ctx, env.userID, req)
		require.NoError(t, err)
		require.Equal(t, "destination-elsewhere", info.DestinationAddress)
	})
}

func TestRequestQuoteInvalidRequest(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)

	t.Run("unknown chain", func(t *testing.T) {
		req := newTestSwapRequest()
		req.FromChain = "dogechain"
		_, err := env.swapSvc.RequestQuote(ctx, env.userID, req)
		require.ErrorIs(t, err, domain.ErrInvalidChain)
	})

	t.Run("non positive amount", func(t *testing.T) {
		req := newTestSwapRequest()
		req.Amount = decimal.Zero
		_, err := env.swapSvc.RequestQuote(ctx, env.userID, req)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("invalid destination", func(t *testing.T) {
		req := newTestSwapRequest()
		req.DestinationAddress = "invalid"
		_, err := env.swapSvc.RequestQuote(ctx, env.userID, req)
		require.ErrorIs(t, err, domain.ErrInvalidAddress)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.swapSvc.RequestQuote(ctx, "nobody", newTestSwapRequest())
		require.EqualError(t, err, domain.ErrWalletNotFound.Error())
	})

	// none of the rejections above must have contacted the aggregator
	env.aggregator.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
}

func TestRequestQuoteNoRoute(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		nil, fmt.Errorf("%w: NO_ROUTE", domain.ErrNoRouteFound),
	)

	_, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.ErrorIs(t, err, domain.ErrNoRouteFound)

	// the execution is persisted and marked failed, not dropped
	history, err := env.swapSvc.GetSwapHistory(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.SwapFailed.String(), history[0].Status)
	require.Equal(t, string(domain.ReasonNoRouteFound), history[0].FailureReason)
}

func TestRequestQuoteAggregatorDown(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		nil, fmt.Errorf("request timed out after 4 attempts"),
	)

	_, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.Error(t, err)

	// a transport failure is not a missing route, the record tells them apart
	history, err := env.swapSvc.GetSwapHistory(ctx, env.userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.SwapFailed.String(), history[0].Status)
	require.Equal(
		t, string(domain.ReasonAggregatorUnavailable), history[0].FailureReason,
	)
}

func TestConfirmSwap(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	unsignedTx := &ports.UnsignedTx{
		Chain: domain.ChainEthereum,
		From:  env.addresses[domain.ChainEthereum],
	}
	signedTx := &ports.SignedTx{
		TxID: "source-txid", Payload: []byte("signed payload"),
	}
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1",
		env.addresses[domain.ChainEthereum], env.addresses[domain.ChainSolana],
	).Return(unsignedTx, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, unsignedTx).
		Return(signedTx, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, signedTx.Payload).
		Return("source-txid", nil)
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxPending, nil).Once()
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxConfirmed, nil)
	env.aggregator.On("Status", mock.Anything, "req-1", "source-txid").Return(
		&ports.SwapTracking{Status: ports.SwapTrackingPending}, nil,
	).Once()
	env.aggregator.On("Status", mock.Anything, "req-1", "source-txid").Return(
		&ports.SwapTracking{
			Status: ports.SwapTrackingSettled, DestTxID: "dest-txid",
		}, nil,
	)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	submitted, err := env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapSubmittedSource.String(), submitted.Status)
	require.Equal(t, "source-txid", submitted.SourceTxID)

	require.Eventually(t, func() bool {
		return env.swapStatus(t, quoted.ID).Status == domain.SwapSettled.String()
	}, trackingWait, trackingTick)

	settled := env.swapStatus(t, quoted.ID)
	require.Equal(t, "source-txid", settled.SourceTxID)
	require.Equal(t, "dest-txid", settled.DestTxID)
	require.Empty(t, settled.FailureReason)
}

func TestConfirmSwapExpiredQuote(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(-time.Minute)), nil,
	)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.ErrorIs(t, err, domain.ErrQuoteExpired)

	// the expiry is persisted, a retry must re-quote instead of reusing the
	// stale price
	require.Equal(
		t, domain.SwapExpired.String(), env.swapStatus(t, quoted.ID).Status,
	)
	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.Error(t, err)
}

func TestConfirmSwapNotOwned(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	_, _, err = env.walletSvc.CreateWallet(ctx, "user-2")
	require.NoError(t, err)

	// another user's wallet never sees, let alone confirms, the execution
	_, err = env.swapSvc.ConfirmSwap(ctx, "user-2", quoted.ID)
	require.EqualError(t, err, domain.ErrSwapNotFound.Error())
	_, err = env.swapSvc.GetSwap(ctx, "user-2", quoted.ID)
	require.EqualError(t, err, domain.ErrSwapNotFound.Error())

	require.Equal(t, domain.SwapQuoted.String(), env.swapStatus(t, quoted.ID).Status)
}

func TestConfirmSwapRetriesBroadcast(t *testing.T) {
	restore := *application.SubmitRetryDelay
	*application.SubmitRetryDelay = time.Millisecond
	t.Cleanup(func() { *application.SubmitRetryDelay = restore })

	env := newSwapTestEnv(t, time.Minute)
	signedTx := &ports.SignedTx{
		TxID: "source-txid", Payload: []byte("signed payload"),
	}
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(signedTx, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, signedTx.Payload).
		Return("", fmt.Errorf("mempool full")).Times(3)
	ethSvc.On("BroadcastTransaction", mock.Anything, signedTx.Payload).
		Return("source-txid", nil)
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxConfirmed, nil)
	env.aggregator.On("Status", mock.Anything, "req-1", "source-txid").Return(
		&ports.SwapTracking{Status: ports.SwapTrackingSettled, DestTxID: "dest-txid"},
		nil,
	)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	submitted, err := env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.NoError(t, err)
	require.Equal(t, "source-txid", submitted.SourceTxID)
	ethSvc.AssertNumberOfCalls(t, "BroadcastTransaction", 4)
}

func TestConfirmSwapSerializesSigning(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	signedTx := &ports.SignedTx{
		TxID: "source-txid", Payload: []byte("signed payload"),
	}
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)

	// two signers in the critical section at once would reuse the account
	// nonce fetched at signing time
	var signing, overlaps int32
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Run(func(_ mock.Arguments) {
			if atomic.AddInt32(&signing, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&signing, -1)
		}).
		Return(signedTx, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, signedTx.Payload).
		Return("source-txid", nil)
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxPending, nil)

	first, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)
	second, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	wg := &sync.WaitGroup{}
	errs := make(chan error, 2)
	for _, swapID := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.swapSvc.ConfirmSwap(ctx, env.userID, id)
			errs <- err
		}(swapID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Zero(t, atomic.LoadInt32(&overlaps))
	require.Equal(
		t, domain.SwapSubmittedSource.String(), env.swapStatus(t, first.ID).Status,
	)
	require.Equal(
		t, domain.SwapSubmittedSource.String(), env.swapStatus(t, second.ID).Status,
	)
}

func TestConfirmSwapBroadcastExhausted(t *testing.T) {
	restore := *application.SubmitRetryDelay
	*application.SubmitRetryDelay = time.Millisecond
	t.Cleanup(func() { *application.SubmitRetryDelay = restore })

	env := newSwapTestEnv(t, time.Minute)
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.SignedTx{
			TxID: "source-txid", Payload: []byte("signed payload"),
		}, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("mempool full"))

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.Error(t, err)

	failed := env.swapStatus(t, quoted.ID)
	require.Equal(t, domain.SwapFailed.String(), failed.Status)
	require.Equal(t, string(domain.ReasonSubmissionFailed), failed.FailureReason)
	require.Contains(t, failed.LastError, "mempool full")
	// the txid was recorded before the first broadcast attempt: even though
	// no broadcast ever succeeded, a crash mid-submission would have left a
	// record pointing at the signed transaction
	require.Equal(t, "source-txid", failed.SourceTxID)
}

func TestConfirmSwapSigningFailure(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: malformed payload", domain.ErrSigning))

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)

	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.ErrorIs(t, err, domain.ErrSigning)

	failed := env.swapStatus(t, quoted.ID)
	require.Equal(t, domain.SwapFailed.String(), failed.Status)
	require.Equal(t, string(domain.ReasonSigningFailed), failed.FailureReason)
	// nothing was ever broadcast
	ethSvc.AssertNotCalled(t, "BroadcastTransaction", mock.Anything, mock.Anything)
}

func TestSourceTransactionRejected(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.SignedTx{
			TxID: "source-txid", Payload: []byte("signed payload"),
		}, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, mock.Anything).
		Return("source-txid", nil)
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxRejected, nil)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)
	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.swapStatus(t, quoted.ID).Status == domain.SwapFailed.String()
	}, trackingWait, trackingTick)

	failed := env.swapStatus(t, quoted.ID)
	require.Equal(t, string(domain.ReasonSubmissionFailed), failed.FailureReason)
	require.Equal(t, "source-txid", failed.SourceTxID)
}

func TestSubmissionConfirmationTimeout(t *testing.T) {
	env := newSwapTestEnvWithTimeouts(t, 50*time.Millisecond, time.Minute)
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.SignedTx{
			TxID: "source-txid", Payload: []byte("signed payload"),
		}, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, mock.Anything).
		Return("source-txid", nil)
	// the source transaction never leaves the mempool
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxPending, nil)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)
	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.swapStatus(t, quoted.ID).Status == domain.SwapFailed.String()
	}, trackingWait, trackingTick)

	failed := env.swapStatus(t, quoted.ID)
	require.Equal(t, string(domain.ReasonSubmissionFailed), failed.FailureReason)
	require.Equal(t, "source-txid", failed.SourceTxID)
}

func TestDestinationTimeout(t *testing.T) {
	env := newSwapTestEnv(t, 50*time.Millisecond)
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.SignedTx{
			TxID: "source-txid", Payload: []byte("signed payload"),
		}, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, mock.Anything).
		Return("source-txid", nil)
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxConfirmed, nil)
	env.aggregator.On("Status", mock.Anything, "req-1", "source-txid").Return(
		&ports.SwapTracking{Status: ports.SwapTrackingPending}, nil,
	)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)
	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.swapStatus(t, quoted.ID).Status == domain.SwapFailed.String()
	}, trackingWait, trackingTick)

	// the record keeps the source txid, it is the only trace of funds in
	// flight and the handle for manual escalation
	failed := env.swapStatus(t, quoted.ID)
	require.Equal(t, string(domain.ReasonDestinationTimeout), failed.FailureReason)
	require.Equal(t, "source-txid", failed.SourceTxID)
}

func TestBridgeFailure(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	ethSvc := env.services[domain.ChainEthereum]

	env.aggregator.On("Quote", mock.Anything, mock.Anything).Return(
		newTestQuote("req-1", time.Now().Add(time.Minute)), nil,
	)
	env.aggregator.On(
		"CreateTransaction", mock.Anything, "req-1", mock.Anything, mock.Anything,
	).Return(&ports.UnsignedTx{Chain: domain.ChainEthereum}, nil)
	ethSvc.On("SignTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.SignedTx{
			TxID: "source-txid", Payload: []byte("signed payload"),
		}, nil)
	ethSvc.On("BroadcastTransaction", mock.Anything, mock.Anything).
		Return("source-txid", nil)
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxConfirmed, nil)
	env.aggregator.On("Status", mock.Anything, "req-1", "source-txid").Return(
		&ports.SwapTracking{
			Status: ports.SwapTrackingFailed, Error: "slippage exceeded",
		}, nil,
	)

	quoted, err := env.swapSvc.RequestQuote(ctx, env.userID, newTestSwapRequest())
	require.NoError(t, err)
	_, err = env.swapSvc.ConfirmSwap(ctx, env.userID, quoted.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.swapStatus(t, quoted.ID).Status == domain.SwapFailed.String()
	}, trackingWait, trackingTick)

	failed := env.swapStatus(t, quoted.ID)
	require.Equal(t, string(domain.ReasonBridgeFailed), failed.FailureReason)
	require.Contains(t, failed.LastError, "slippage exceeded")
}

func TestResumePendingSwaps(t *testing.T) {
	env := newSwapTestEnv(t, time.Minute)
	swapRepo := env.repoManager.SwapRepository()
	destination := env.addresses[domain.ChainSolana]
	now := time.Now()

	interrupted := domain.NewSwapExecution(env.walletID, destination)
	require.NoError(t, swapRepo.AddSwapExecution(ctx, interrupted))

	stale := domain.NewSwapExecution(env.walletID, destination)
	require.NoError(t, stale.SetQuoted(*newTestQuote("req-stale", now.Add(-time.Minute))))
	require.NoError(t, swapRepo.AddSwapExecution(ctx, stale))

	fresh := domain.NewSwapExecution(env.walletID, destination)
	require.NoError(t, fresh.SetQuoted(*newTestQuote("req-fresh", now.Add(time.Hour))))
	require.NoError(t, swapRepo.AddSwapExecution(ctx, fresh))

	unsubmitted := domain.NewSwapExecution(env.walletID, destination)
	require.NoError(t, unsubmitted.SetQuoted(*newTestQuote("req-unsubmitted", now.Add(time.Hour))))
	require.NoError(t, unsubmitted.Confirm(now))
	require.NoError(t, swapRepo.AddSwapExecution(ctx, unsubmitted))

	submitted := domain.NewSwapExecution(env.walletID, destination)
	require.NoError(t, submitted.SetQuoted(*newTestQuote("req-submitted", now.Add(time.Hour))))
	require.NoError(t, submitted.Confirm(now))
	require.NoError(t, submitted.SetSubmitted("source-txid"))
	require.NoError(t, swapRepo.AddSwapExecution(ctx, submitted))

	env.aggregator.On("Status", mock.Anything, "req-unsubmitted", "").Return(
		&ports.SwapTracking{Status: ports.SwapTrackingUnknown}, nil,
	)
	ethSvc := env.services[domain.ChainEthereum]
	ethSvc.On("GetTxStatus", mock.Anything, "source-txid").
		Return(ports.TxConfirmed, nil)
	env.aggregator.On("Status", mock.Anything, "req-submitted", "source-txid").Return(
		&ports.SwapTracking{
			Status: ports.SwapTrackingSettled, DestTxID: "dest-txid",
		}, nil,
	)

	require.NoError(t, env.swapSvc.ResumePendingSwaps(ctx))

	// interrupted quoting fails, its aggregator request id is lost
	info := env.swapStatus(t, interrupted.ID)
	require.Equal(t, domain.SwapFailed.String(), info.Status)
	require.Equal(
		t, string(domain.ReasonAggregatorUnavailable), info.FailureReason,
	)

	// stale quotes expire, fresh ones stay confirmable
	require.Equal(t, domain.SwapExpired.String(), env.swapStatus(t, stale.ID).Status)
	require.Equal(t, domain.SwapQuoted.String(), env.swapStatus(t, fresh.ID).Status)

	// caught between signing and a recorded submission: fail conservatively
	// with the aggregator's view recorded for escalation
	info = env.swapStatus(t, unsubmitted.ID)
	require.Equal(t, domain.SwapFailed.String(), info.Status)
	require.Equal(t, string(domain.ReasonSubmissionFailed), info.FailureReason)
	require.Contains(t, info.LastError, "aggregator reports")

	// submitted executions resume background tracking to settlement
	require.Eventually(t, func() bool {
		return env.swapStatus(t, submitted.ID).Status == domain.SwapSettled.String()
	}, trackingWait, trackingTick)
	require.Equal(t, "dest-txid", env.swapStatus(t, submitted.ID).DestTxID)
}
