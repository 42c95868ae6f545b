package db_test

import (
	"testing"
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestQuote() domain.SwapQuote {
	return domain.SwapQuote{
		RequestID:   "req-1",
		FromChain:   domain.ChainEthereum,
		ToChain:     domain.ChainSolana,
		FromAsset:   "ETH",
		ToAsset:     "SOL",
		AmountIn:    decimal.NewFromFloat(1.5),
		AmountOut:   decimal.NewFromFloat(150),
		FeeAmount:   decimal.NewFromFloat(0.01),
		FeeAsset:    "ETH",
		Route:       []string{"rango"},
		SlippagePct: decimal.NewFromFloat(1),
		ExpiresAt:   time.Now().Add(time.Minute),
	}
}

func TestSwapRepository(t *testing.T) {
	for name, manager := range newRepoManagers(t) {
		t.Run(name, func(t *testing.T) {
			manager.RegisterHandlerForSwapEvent(
				domain.SwapExecutionSettled, func(event domain.SwapEvent) {
					t.Logf(
						"received event from %s repo: {EventType: %s, ID: %s}",
						name, event.EventType, event.Execution.ID,
					)
				},
			)
			testSwapRepository(t, manager.SwapRepository())
		})
	}
}

func testSwapRepository(t *testing.T, repo domain.SwapRepository) {
	execution := domain.NewSwapExecution("wallet-1", "dest-address")

	t.Run("add_swap_execution", func(t *testing.T) {
		got, err := repo.GetSwapExecution(ctx, execution.ID)
		require.EqualError(t, err, domain.ErrSwapNotFound.Error())
		require.Nil(t, got)

		err = repo.AddSwapExecution(ctx, execution)
		require.NoError(t, err)

		err = repo.AddSwapExecution(ctx, execution)
		require.Error(t, err)

		got, err = repo.GetSwapExecution(ctx, execution.ID)
		require.NoError(t, err)
		require.Equal(t, execution.ID, got.ID)
		require.Equal(t, domain.SwapQuoting, got.Status)
		require.Len(t, got.History, 1)
	})

	t.Run("update_swap_execution", func(t *testing.T) {
		err := repo.UpdateSwapExecution(
			ctx, execution.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				return nil, errSomethingWentWrong
			},
		)
		require.EqualError(t, err, errSomethingWentWrong.Error())

		err = repo.UpdateSwapExecution(
			ctx, execution.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				if err := s.SetQuoted(newTestQuote()); err != nil {
					return nil, err
				}
				return s, nil
			},
		)
		require.NoError(t, err)

		got, err := repo.GetSwapExecution(ctx, execution.ID)
		require.NoError(t, err)
		require.Equal(t, domain.SwapQuoted, got.Status)
		require.Equal(t, "req-1", got.Quote.RequestID)
		require.Len(t, got.History, 2)
	})

	t.Run("get_pending_executions", func(t *testing.T) {
		pending, err := repo.GetPendingSwapExecutions(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, execution.ID, pending[0].ID)

		err = repo.UpdateSwapExecution(
			ctx, execution.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				if err := s.Confirm(time.Now()); err != nil {
					return nil, err
				}
				if err := s.SetSubmitted("source-tx"); err != nil {
					return nil, err
				}
				if err := s.SetAwaitingDestination(); err != nil {
					return nil, err
				}
				if err := s.Settle("dest-tx"); err != nil {
					return nil, err
				}
				return s, nil
			},
		)
		require.NoError(t, err)

		pending, err = repo.GetPendingSwapExecutions(ctx)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("get_executions_for_wallet", func(t *testing.T) {
		failed := domain.NewSwapExecution("wallet-1", "dest-address")
		require.NoError(t, repo.AddSwapExecution(ctx, failed))
		require.NoError(t, repo.UpdateSwapExecution(
			ctx, failed.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				if err := s.Fail(domain.ReasonNoRouteFound, nil); err != nil {
					return nil, err
				}
				return s, nil
			},
		))

		history, err := repo.GetSwapExecutionsForWallet(ctx, "wallet-1")
		require.NoError(t, err)
		require.Len(t, history, 2)

		history, err = repo.GetSwapExecutionsForWallet(ctx, "other-wallet")
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("terminal_execution_is_immutable", func(t *testing.T) {
		err := repo.UpdateSwapExecution(
			ctx, execution.ID,
			func(s *domain.SwapExecution) (*domain.SwapExecution, error) {
				if err := s.Fail(domain.ReasonSubmissionFailed, nil); err != nil {
					return nil, err
				}
				return s, nil
			},
		)
		require.ErrorIs(t, err, domain.ErrSwapFinalized)
	})
}
