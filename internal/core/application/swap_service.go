package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	"github.com/harborwallet/harbor/pkg/wallet/mnemonic"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const submitAttempts = 4

var (
	defaultSlippagePct = decimal.NewFromInt(1)
	submitRetryDelay   = time.Second
)

// SwapService orchestrates cross-chain swaps end to end:
//   - Request a priced quote from the aggregator for a wallet.
//   - Confirm a quoted swap: build the source transaction, sign it with
//     just-in-time decrypted key material and submit it to the source chain.
//   - Track submitted swaps until the destination transfer settles, fails or
//     times out.
//   - Resume tracking of every pending swap after a restart.
//
// Every state transition is persisted before the external call it follows
// from. In particular the source transaction id, known at signing time, is
// recorded before the first broadcast attempt: a crash never leaves signed
// transactions unaccounted for.
type SwapService struct {
	repoManager   ports.RepoManager
	keyStore      ports.KeyStore
	aggregator    ports.Aggregator
	chainRegistry ports.ChainRegistry

	submissionTimeout  time.Duration
	destinationTimeout time.Duration
	pollInterval       time.Duration

	accountLocks map[string]*sync.Mutex
	locksLock    *sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewSwapService(
	repoManager ports.RepoManager, keyStore ports.KeyStore,
	aggregator ports.Aggregator, chainRegistry ports.ChainRegistry,
	submissionTimeout, destinationTimeout, pollInterval time.Duration,
) *SwapService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SwapService{
		repoManager:        repoManager,
		keyStore:           keyStore,
		aggregator:         aggregator,
		chainRegistry:      chainRegistry,
		submissionTimeout:  submissionTimeout,
		destinationTimeout: destinationTimeout,
		pollInterval:       pollInterval,
		accountLocks:       make(map[string]*sync.Mutex),
		locksLock:          &sync.Mutex{},
		ctx:                ctx,
		cancel:             cancel,
		wg:                 &sync.WaitGroup{},
	}
}

// RequestQuote opens a new swap execution for the user's wallet and asks the
// aggregator to price it. The execution is persisted before the aggregator
// is contacted and reaches either SwapQuoted or SwapFailed.
func (ss *SwapService) RequestQuote(
	ctx context.Context, userID string, req SwapRequest,
) (*SwapInfo, error) {
	if !req.FromChain.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidChain, req.FromChain)
	}
	if !req.ToChain.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidChain, req.ToChain)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf(
			"%w: %s", domain.ErrInvalidAmount, req.Amount,
		)
	}

	wallet, err := ss.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}
	if _, err := wallet.Account(req.FromChain); err != nil {
		return nil, err
	}

	destination := req.DestinationAddress
	if len(destination) <= 0 {
		account, err := wallet.Account(req.ToChain)
		if err != nil {
			return nil, err
		}
		destination = account.Address
	}
	destSvc, err := ss.chainRegistry.Service(req.ToChain)
	if err != nil {
		return nil, err
	}
	if !destSvc.ValidateAddress(destination) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAddress, destination)
	}

	slippage := req.SlippagePct
	if !slippage.IsPositive() {
		slippage = defaultSlippagePct
	}

	execution := domain.NewSwapExecution(wallet.ID, destination)
	if err := ss.repoManager.SwapRepository().AddSwapExecution(
		ctx, execution,
	); err != nil {
		return nil, err
	}

	quote, err := ss.aggregator.Quote(ctx, ports.QuoteRequest{
		FromChain:   req.FromChain,
		ToChain:     req.ToChain,
		FromAsset:   req.FromAsset,
		ToAsset:     req.ToAsset,
		Amount:      req.Amount,
		SlippagePct: slippage,
	})
	if err != nil {
		// a missing route is the user's problem, an unreachable aggregator
		// is ours, the record must tell them apart
		reason := domain.ReasonAggregatorUnavailable
		if errors.Is(err, domain.ErrNoRouteFound) {
			reason = domain.ReasonNoRouteFound
		}
		ss.failExecution(ctx, execution.ID, reason, err)
		return nil, err
	}

	var updated *domain.SwapExecution
	if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
		ctx, execution.ID,
		func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
			if err := s.SetQuoted(*quote); err != nil {
				return nil, err
			}
			updated = s
			return s, nil
		},
	); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"swap":   execution.ID,
		"wallet": wallet.ID,
	}).Infof(
		"quoted %s %s -> %s %s", quote.AmountIn, quote.FromAsset,
		quote.AmountOut, quote.ToAsset,
	)

	return swapInfo(updated), nil
}

// ConfirmSwap executes a quoted swap: the execution moves through
// SwapAwaitingSignature, gets signed and submitted to the source chain, and
// is then tracked in background until settlement. A quote past its validity
// window is refused and the execution expires.
func (ss *SwapService) ConfirmSwap(
	ctx context.Context, userID, swapID string,
) (*SwapInfo, error) {
	wallet, err := ss.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}
	execution, err := ss.executionForWallet(ctx, wallet.ID, swapID)
	if err != nil {
		return nil, err
	}

	var expired bool
	if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
		ctx, swapID,
		func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
			if err := s.Confirm(time.Now()); err != nil {
				if errors.Is(err, domain.ErrQuoteExpired) {
					// persist the expiry, the stale quote must not be reused
					expired = true
					return s, nil
				}
				return nil, err
			}
			execution = s
			return s, nil
		},
	); err != nil {
		return nil, err
	}
	if expired {
		return nil, domain.ErrQuoteExpired
	}

	return ss.executeSwap(ctx, wallet, execution)
}

// GetSwap returns the given swap execution of the user's wallet.
func (ss *SwapService) GetSwap(
	ctx context.Context, userID, swapID string,
) (*SwapInfo, error) {
	wallet, err := ss.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}
	execution, err := ss.executionForWallet(ctx, wallet.ID, swapID)
	if err != nil {
		return nil, err
	}
	return swapInfo(execution), nil
}

// GetSwapHistory returns the full swap history of the user's wallet.
func (ss *SwapService) GetSwapHistory(
	ctx context.Context, userID string,
) ([]SwapInfo, error) {
	wallet, err := ss.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}

	executions, err := ss.repoManager.SwapRepository().GetSwapExecutionsForWallet(
		ctx, wallet.ID,
	)
	if err != nil {
		return nil, err
	}

	history := make([]SwapInfo, 0, len(executions))
	for i := range executions {
		history = append(history, *swapInfo(&executions[i]))
	}
	return history, nil
}

// ResumePendingSwaps recovers every execution left in a non-terminal state
// by a previous run:
//   - interrupted quoting fails, the aggregator request id is lost;
//   - stale quotes expire, fresh ones stay confirmable;
//   - executions interrupted before the submission was recorded fail, the
//     broadcast only ever happens after that record, with the aggregator's
//     view recorded for escalation;
//   - submitted executions resume background tracking, re-checking the
//     persisted txid on chain.
func (ss *SwapService) ResumePendingSwaps(ctx context.Context) error {
	pending, err := ss.repoManager.SwapRepository().GetPendingSwapExecutions(
		ctx,
	)
	if err != nil {
		return err
	}

	for i := range pending {
		execution := pending[i]
		switch execution.Status {
		case domain.SwapQuoting:
			ss.failExecution(
				ctx, execution.ID, domain.ReasonAggregatorUnavailable,
				fmt.Errorf("quoting interrupted by restart"),
			)
		case domain.SwapQuoted:
			if execution.Quote.IsExpired(time.Now()) {
				if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
					ctx, execution.ID,
					func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
						if err := s.Expire(); err != nil {
							return nil, err
						}
						return s, nil
					},
				); err != nil {
					log.WithError(err).Warnf(
						"failed to expire stale swap %s", execution.ID,
					)
				}
			}
		case domain.SwapAwaitingSignature:
			cause := fmt.Errorf("restarted before submission was recorded")
			if tracking, err := ss.aggregator.Status(
				ctx, execution.Quote.RequestID, execution.SourceTxID,
			); err == nil {
				cause = fmt.Errorf(
					"restarted before submission was recorded, "+
						"aggregator reports %s", tracking.Status,
				)
			}
			ss.failExecution(
				ctx, execution.ID, domain.ReasonSubmissionFailed, cause,
			)
		case domain.SwapSubmittedSource, domain.SwapAwaitingDestination:
			ss.trackInBackground(execution.ID)
		}
	}

	log.Infof("resumed %d pending swap(s)", len(pending))
	return nil
}

func (ss *SwapService) RegisterHandlerForSwapEvent(
	eventType domain.SwapEventType, handler ports.SwapEventHandler,
) {
	ss.repoManager.RegisterHandlerForSwapEvent(eventType, handler)
}

// Stop cancels the background trackers and waits for them to drain.
func (ss *SwapService) Stop() {
	ss.cancel()
	ss.wg.Wait()
}

func (ss *SwapService) executeSwap(
	ctx context.Context, wallet *domain.Wallet, execution *domain.SwapExecution,
) (*SwapInfo, error) {
	sourceChain := execution.Quote.FromChain
	sourceSvc, err := ss.chainRegistry.Service(sourceChain)
	if err != nil {
		ss.failExecution(ctx, execution.ID, domain.ReasonSubmissionFailed, err)
		return nil, err
	}
	sourceAccount, err := wallet.Account(sourceChain)
	if err != nil {
		ss.failExecution(ctx, execution.ID, domain.ReasonSubmissionFailed, err)
		return nil, err
	}

	unsignedTx, err := ss.aggregator.CreateTransaction(
		ctx, execution.Quote.RequestID, sourceAccount.Address,
		execution.DestinationAddress,
	)
	if err != nil {
		ss.failExecution(ctx, execution.ID, domain.ReasonSubmissionFailed, err)
		return nil, err
	}

	// one signer at a time per account, the nonce is assigned at signing
	// time and must land on chain before the next signature reuses it
	unlock := ss.lockAccount(wallet.ID, sourceChain)
	defer unlock()

	signedTx, err := ss.signTransaction(
		ctx, wallet, sourceSvc, sourceAccount.Index, unsignedTx,
	)
	if err != nil {
		reason := domain.ReasonSigningFailed
		if errors.Is(err, domain.ErrKeyUnavailable) ||
			errors.Is(err, domain.ErrIntegrity) {
			reason = domain.ReasonCustodyFailed
		}
		ss.failExecution(ctx, execution.ID, reason, err)
		return nil, err
	}

	// the txid is known before any broadcast, persist it first: if a crash
	// hits mid-submission the record still points at the funds in flight
	var updated *domain.SwapExecution
	if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
		ctx, execution.ID,
		func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
			if err := s.SetSubmitted(signedTx.TxID); err != nil {
				return nil, err
			}
			updated = s
			return s, nil
		},
	); err != nil {
		return nil, err
	}

	if err := ss.submitWithRetry(ctx, sourceSvc, signedTx.Payload); err != nil {
		ss.failExecution(ctx, execution.ID, domain.ReasonSubmissionFailed, err)
		return nil, err
	}

	log.WithFields(log.Fields{
		"swap": execution.ID,
		"txid": signedTx.TxID,
	}).Info("swap submitted to source chain")

	ss.trackInBackground(execution.ID)
	return swapInfo(updated), nil
}

// lockAccount serializes signing and submission for one wallet account,
// returning the release func.
func (ss *SwapService) lockAccount(
	walletID string, chain domain.Chain,
) func() {
	key := fmt.Sprintf("%s/%s", walletID, chain)

	ss.locksLock.Lock()
	mtx, ok := ss.accountLocks[key]
	if !ok {
		mtx = &sync.Mutex{}
		ss.accountLocks[key] = mtx
	}
	ss.locksLock.Unlock()

	mtx.Lock()
	return mtx.Unlock
}

// signTransaction acquires the wallet's key material for exactly one signing
// operation. Every secret buffer is zeroed on every exit path.
func (ss *SwapService) signTransaction(
	ctx context.Context, wallet *domain.Wallet, svc ports.ChainService,
	accountIndex uint32, unsignedTx *ports.UnsignedTx,
) (*ports.SignedTx, error) {
	plaintext, err := ss.keyStore.Unseal(&wallet.EncryptedMnemonic)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(plaintext)

	seed, err := mnemonic.ToSeedFromSentence(plaintext, "")
	if err != nil {
		return nil, err
	}
	defer zeroBytes(seed)

	key, err := svc.SigningKeyFromSeed(seed, accountIndex)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	return svc.SignTransaction(ctx, key, unsignedTx)
}

// submitWithRetry broadcasts the signed payload with a bounded number of
// attempts. The payload never changes between attempts, re-broadcasting an
// already accepted transaction is idempotent on every supported chain.
func (ss *SwapService) submitWithRetry(
	ctx context.Context, svc ports.ChainService, payload []byte,
) error {
	var lastErr error
	for attempt := 0; attempt < submitAttempts; attempt++ {
		if attempt > 0 {
			delay := submitRetryDelay << (attempt - 1)
			if jitter := int64(delay / 2); jitter > 0 {
				delay += time.Duration(rand.Int63n(jitter))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := svc.BroadcastTransaction(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		log.WithError(err).Warnf(
			"broadcast attempt %d/%d failed", attempt+1, submitAttempts,
		)
	}
	return lastErr
}

func (ss *SwapService) trackInBackground(swapID string) {
	ss.wg.Add(1)
	go func() {
		defer ss.wg.Done()
		ss.trackExecution(swapID)
	}()
}

// trackExecution follows a submitted execution until it reaches a terminal
// state: first the source chain confirmation, then the aggregator's view of
// the destination transfer.
func (ss *SwapService) trackExecution(swapID string) {
	ticker := time.NewTicker(ss.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ss.ctx.Done():
			return
		case <-ticker.C:
		}

		execution, err := ss.repoManager.SwapRepository().GetSwapExecution(
			ss.ctx, swapID,
		)
		if err != nil {
			log.WithError(err).Warnf("tracker: cannot load swap %s", swapID)
			return
		}

		switch execution.Status {
		case domain.SwapSubmittedSource:
			ss.trackSource(execution)
		case domain.SwapAwaitingDestination:
			ss.trackDestination(execution)
		default:
			// terminal state reached, nothing left to track
			return
		}
	}
}

func (ss *SwapService) trackSource(execution *domain.SwapExecution) {
	// the confirmation wait is bounded like the destination one, anchored to
	// the persisted submission time so that restarts don't extend it
	anchor, ok := execution.StatusChangedAt(domain.SwapSubmittedSource)
	if !ok {
		anchor = execution.CreatedAt
	}
	if time.Since(anchor) > ss.submissionTimeout {
		ss.failExecution(
			ss.ctx, execution.ID, domain.ReasonSubmissionFailed,
			fmt.Errorf(
				"source confirmation not observed within %s",
				ss.submissionTimeout,
			),
		)
		return
	}

	svc, err := ss.chainRegistry.Service(execution.Quote.FromChain)
	if err != nil {
		log.WithError(err).Warnf("tracker: swap %s", execution.ID)
		return
	}

	status, err := svc.GetTxStatus(ss.ctx, execution.SourceTxID)
	if err != nil {
		log.WithError(err).Debugf(
			"tracker: source status of swap %s", execution.ID,
		)
		return
	}

	switch status {
	case ports.TxConfirmed:
		if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
			ss.ctx, execution.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				if err := s.SetAwaitingDestination(); err != nil {
					return nil, err
				}
				return s, nil
			},
		); err != nil {
			log.WithError(err).Warnf("tracker: swap %s", execution.ID)
		}
	case ports.TxRejected:
		ss.failExecution(
			ss.ctx, execution.ID, domain.ReasonSubmissionFailed,
			fmt.Errorf("source transaction rejected by the chain"),
		)
	}
}

func (ss *SwapService) trackDestination(execution *domain.SwapExecution) {
	// the timeout is anchored to the persisted source confirmation time so
	// that restarts don't extend it
	anchor, ok := execution.StatusChangedAt(domain.SwapAwaitingDestination)
	if !ok {
		anchor = execution.CreatedAt
	}
	if time.Since(anchor) > ss.destinationTimeout {
		ss.failExecution(
			ss.ctx, execution.ID, domain.ReasonDestinationTimeout,
			fmt.Errorf(
				"destination transfer not observed within %s",
				ss.destinationTimeout,
			),
		)
		return
	}

	tracking, err := ss.aggregator.Status(
		ss.ctx, execution.Quote.RequestID, execution.SourceTxID,
	)
	if err != nil {
		log.WithError(err).Debugf(
			"tracker: aggregator status of swap %s", execution.ID,
		)
		return
	}

	switch tracking.Status {
	case ports.SwapTrackingSettled:
		destTxID := tracking.DestTxID
		if len(destTxID) <= 0 {
			destTxID = execution.Quote.RequestID
		}
		if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
			ss.ctx, execution.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				if err := s.Settle(destTxID); err != nil {
					return nil, err
				}
				return s, nil
			},
		); err != nil {
			log.WithError(err).Warnf("tracker: swap %s", execution.ID)
			return
		}
		log.WithFields(log.Fields{
			"swap": execution.ID,
			"txid": destTxID,
		}).Info("swap settled")
	case ports.SwapTrackingFailed:
		ss.failExecution(
			ss.ctx, execution.ID, domain.ReasonBridgeFailed,
			fmt.Errorf("aggregator reported failure: %s", tracking.Error),
		)
	}
}

func (ss *SwapService) executionForWallet(
	ctx context.Context, walletID, swapID string,
) (*domain.SwapExecution, error) {
	execution, err := ss.repoManager.SwapRepository().GetSwapExecution(
		ctx, swapID,
	)
	if err != nil {
		return nil, err
	}
	if execution.WalletID != walletID {
		return nil, domain.ErrSwapNotFound
	}
	return execution, nil
}

func (ss *SwapService) failExecution(
	ctx context.Context, swapID string, reason domain.FailureReason,
	cause error,
) {
	if err := ss.repoManager.SwapRepository().UpdateSwapExecution(
		ctx, swapID,
		func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
			if err := s.Fail(reason, cause); err != nil {
				return nil, err
			}
			return s, nil
		},
	); err != nil {
		log.WithError(err).Errorf("failed to mark swap %s as failed", swapID)
		return
	}

	log.WithFields(log.Fields{
		"swap":   swapID,
		"reason": reason,
	}).Warnf("swap failed: %s", cause)
}
