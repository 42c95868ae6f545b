package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	dbbadger "github.com/harborwallet/harbor/internal/infrastructure/storage/db/badger"
	"github.com/harborwallet/harbor/internal/infrastructure/storage/db/inmemory"
	"github.com/stretchr/testify/require"
)

var (
	ctx                   = context.Background()
	errSomethingWentWrong = fmt.Errorf("something went wrong")
)

func newRepoManagers(t *testing.T) map[string]ports.RepoManager {
	badgerManager, err := dbbadger.NewRepoManager("", nil)
	require.NoError(t, err)

	return map[string]ports.RepoManager{
		"inmemory": inmemory.NewRepoManager(),
		"badger":   badgerManager,
	}
}

func newTestWallet(t *testing.T, userID string) *domain.Wallet {
	accounts := make([]domain.Account, 0)
	for i, chain := range domain.SupportedChains() {
		accounts = append(accounts, domain.Account{
			Chain:          chain,
			DerivationPath: chain.DerivationPath(0),
			Address:        fmt.Sprintf("address-%d", i),
			Index:          0,
		})
	}

	wallet, err := domain.NewWallet(
		userID,
		domain.EncryptedSecret{
			Ciphertext: []byte("ciphertext"),
			Nonce:      []byte("nonce"),
		},
		accounts,
	)
	require.NoError(t, err)
	return wallet
}

func TestWalletRepository(t *testing.T) {
	for name, manager := range newRepoManagers(t) {
		t.Run(name, func(t *testing.T) {
			manager.RegisterHandlerForWalletEvent(
				domain.WalletCreated, func(event domain.WalletEvent) {
					t.Logf(
						"received event from %s repo: {EventType: %s, WalletID: %s}",
						name, event.EventType, event.WalletID,
					)
				},
			)
			testWalletRepository(t, manager.WalletRepository())
		})
	}
}

func testWalletRepository(t *testing.T, repo domain.WalletRepository) {
	wallet := newTestWallet(t, "user-1")

	t.Run("create_wallet", func(t *testing.T) {
		got, err := repo.GetWallet(ctx, wallet.ID)
		require.EqualError(t, err, domain.ErrWalletNotFound.Error())
		require.Nil(t, got)

		err = repo.CreateWallet(ctx, wallet)
		require.NoError(t, err)

		err = repo.CreateWallet(ctx, wallet)
		require.EqualError(t, err, domain.ErrWalletAlreadyExisting.Error())

		got, err = repo.GetWallet(ctx, wallet.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, wallet.ID, got.ID)
		require.Equal(t, wallet.UserID, got.UserID)
		require.Len(t, got.Accounts, len(domain.SupportedChains()))
		require.True(t, got.Active)
	})

	t.Run("one_wallet_per_user", func(t *testing.T) {
		other := newTestWallet(t, "user-1")
		err := repo.CreateWallet(ctx, other)
		require.EqualError(t, err, domain.ErrWalletAlreadyExisting.Error())
	})

	t.Run("get_wallet_by_user", func(t *testing.T) {
		got, err := repo.GetWalletByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, wallet.ID, got.ID)

		got, err = repo.GetWalletByUser(ctx, "unknown-user")
		require.EqualError(t, err, domain.ErrWalletNotFound.Error())
		require.Nil(t, got)
	})

	t.Run("update_wallet", func(t *testing.T) {
		err := repo.UpdateWallet(
			ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
				return nil, errSomethingWentWrong
			},
		)
		require.EqualError(t, err, errSomethingWentWrong.Error())

		err = repo.UpdateWallet(
			ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
				account, err := w.Account(domain.ChainEthereum)
				if err != nil {
					return nil, err
				}
				account.Address = "0xupdated"
				return w, nil
			},
		)
		require.NoError(t, err)

		got, err := repo.GetWallet(ctx, wallet.ID)
		require.NoError(t, err)
		require.Equal(t, "0xupdated", got.Accounts[domain.ChainEthereum].Address)
	})

	t.Run("concurrent_update_rejected", func(t *testing.T) {
		started := make(chan struct{})
		proceed := make(chan struct{})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.UpdateWallet(
				ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
					close(started)
					<-proceed
					return w, nil
				},
			)
			require.NoError(t, err)
		}()

		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("first update never started")
		}

		err := repo.UpdateWallet(
			ctx, wallet.ID, func(w *domain.Wallet) (*domain.Wallet, error) {
				return w, nil
			},
		)
		require.EqualError(t, err, domain.ErrConcurrentModification.Error())

		close(proceed)
		wg.Wait()
	})

	t.Run("deactivate_wallet", func(t *testing.T) {
		err := repo.DeactivateWallet(ctx, wallet.ID)
		require.NoError(t, err)

		got, err := repo.GetWallet(ctx, wallet.ID)
		require.NoError(t, err)
		require.False(t, got.Active)

		_, err = repo.GetWalletByUser(ctx, "user-1")
		require.EqualError(t, err, domain.ErrWalletNotFound.Error())

		err = repo.DeactivateWallet(ctx, wallet.ID)
		require.EqualError(t, err, domain.ErrWalletInactive.Error())
	})
}
