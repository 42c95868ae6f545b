package domain_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestQuote(expiry time.Time) domain.SwapQuote {
	return domain.SwapQuote{
		RequestID:   "req-1",
		FromChain:   domain.ChainEthereum,
		ToChain:     domain.ChainBSC,
		FromAsset:   "ETH",
		ToAsset:     "BNB",
		AmountIn:    decimal.NewFromFloat(0.1),
		AmountOut:   decimal.NewFromFloat(0.51),
		SlippagePct: decimal.NewFromFloat(0.5),
		ExpiresAt:   expiry,
	}
}

func TestSwapExecutionLifecycle(t *testing.T) {
	s := domain.NewSwapExecution("wallet-1", "0xdest")
	require.NotEmpty(t, s.ID)
	require.Equal(t, domain.SwapQuoting, s.Status)
	require.True(t, s.IsPending())
	require.Len(t, s.History, 1)

	quote := newTestQuote(time.Now().Add(time.Minute))
	require.NoError(t, s.SetQuoted(quote))
	require.Equal(t, domain.SwapQuoted, s.Status)

	require.NoError(t, s.Confirm(time.Now()))
	require.Equal(t, domain.SwapAwaitingSignature, s.Status)

	require.NoError(t, s.SetSubmitted("0xsourcetx"))
	require.Equal(t, domain.SwapSubmittedSource, s.Status)
	require.Equal(t, "0xsourcetx", s.SourceTxID)

	// submission must happen within the quote validity window
	submittedAt, ok := s.StatusChangedAt(domain.SwapSubmittedSource)
	require.True(t, ok)
	require.True(t, !submittedAt.After(s.Quote.ExpiresAt))

	require.NoError(t, s.SetAwaitingDestination())
	require.NoError(t, s.Settle("0xdesttx"))
	require.Equal(t, domain.SwapSettled, s.Status)
	require.Equal(t, "0xdesttx", s.DestTxID)
	require.False(t, s.IsPending())

	// the full path is recorded, append-only
	require.Len(t, s.History, 6)

	t.Run("terminal state is immutable", func(t *testing.T) {
		err := s.Fail(domain.ReasonSubmissionFailed, nil)
		require.ErrorIs(t, err, domain.ErrSwapFinalized)
	})
}

func TestSwapExecutionQuoteExpiry(t *testing.T) {
	s := domain.NewSwapExecution("wallet-1", "0xdest")
	require.NoError(t, s.SetQuoted(newTestQuote(time.Now().Add(-time.Second))))

	err := s.Confirm(time.Now())
	require.ErrorIs(t, err, domain.ErrQuoteExpired)
	require.Equal(t, domain.SwapExpired, s.Status)
	require.False(t, s.IsPending())
}

func TestSwapExecutionNoRoute(t *testing.T) {
	s := domain.NewSwapExecution("wallet-1", "0xdest")
	require.NoError(t, s.Fail(domain.ReasonNoRouteFound, domain.ErrNoRouteFound))
	require.Equal(t, domain.SwapFailed, s.Status)
	require.Equal(t, domain.ReasonNoRouteFound, s.FailureReason)
	require.Equal(t, domain.ErrNoRouteFound.Error(), s.LastError)
}

func TestSwapExecutionDestinationTimeout(t *testing.T) {
	s := domain.NewSwapExecution("wallet-1", "0xdest")
	require.NoError(t, s.SetQuoted(newTestQuote(time.Now().Add(time.Minute))))
	require.NoError(t, s.Confirm(time.Now()))
	require.NoError(t, s.SetSubmitted("0xsourcetx"))
	require.NoError(t, s.SetAwaitingDestination())

	require.NoError(t, s.Fail(
		domain.ReasonDestinationTimeout,
		fmt.Errorf("settlement not observed within timeout"),
	))
	require.Equal(t, domain.SwapFailed, s.Status)
	require.Equal(t, domain.ReasonDestinationTimeout, s.FailureReason)
	// source tx reference is retained for escalation
	require.NotEmpty(t, s.SourceTxID)
}

func TestSwapExecutionInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *domain.SwapExecution) error
	}{
		{"settle while quoting", func(s *domain.SwapExecution) error {
			return s.Settle("tx")
		}},
		{"submit while quoting", func(s *domain.SwapExecution) error {
			return s.SetSubmitted("tx")
		}},
		{"confirm while quoting", func(s *domain.SwapExecution) error {
			return s.Confirm(time.Now())
		}},
		{"expire while quoting", func(s *domain.SwapExecution) error {
			return s.Expire()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.NewSwapExecution("wallet-1", "0xdest")
			require.Error(t, tt.run(s))
			require.Equal(t, domain.SwapQuoting, s.Status)
		})
	}

	t.Run("missing tx ids", func(t *testing.T) {
		s := domain.NewSwapExecution("wallet-1", "0xdest")
		require.NoError(t, s.SetQuoted(newTestQuote(time.Now().Add(time.Minute))))
		require.NoError(t, s.Confirm(time.Now()))
		require.Error(t, s.SetSubmitted(""))
	})
}
