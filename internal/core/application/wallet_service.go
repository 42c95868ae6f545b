package application

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	path "github.com/harborwallet/harbor/pkg/wallet/derivation-path"
	"github.com/harborwallet/harbor/pkg/wallet/mnemonic"
	log "github.com/sirupsen/logrus"
)

// WalletService is responsible for the custody lifecycle of user wallets:
//   - Generate a new random 12-words mnemonic.
//   - Create a new wallet for a user, deriving one account per supported
//     chain and sealing the mnemonic at rest.
//   - Restore a wallet from an existing mnemonic.
//   - Get wallet info and per-chain native balances.
//   - Re-export the mnemonic of a wallet. The export is audited, it is the
//     only operation returning secret material to the caller.
//   - Soft-delete a wallet, keeping its record and sealed mnemonic.
//
// This service doesn't register any handler for wallet events, rather it
// allows its users to register their own to react to the wallet lifecycle.
type WalletService struct {
	repoManager   ports.RepoManager
	keyStore      ports.KeyStore
	chainRegistry ports.ChainRegistry
}

func NewWalletService(
	repoManager ports.RepoManager, keyStore ports.KeyStore,
	chainRegistry ports.ChainRegistry,
) *WalletService {
	return &WalletService{
		repoManager:   repoManager,
		keyStore:      keyStore,
		chainRegistry: chainRegistry,
	}
}

// GenSeed returns a new random mnemonic, not yet bound to any wallet.
func (ws *WalletService) GenSeed(_ context.Context) ([]string, error) {
	return mnemonic.NewMnemonic(mnemonic.NewMnemonicArgs{})
}

// CreateWallet creates a wallet for the given user from a freshly generated
// mnemonic and returns the words for the one-time backup prompt.
func (ws *WalletService) CreateWallet(
	ctx context.Context, userID string,
) ([]string, *WalletInfo, error) {
	words, err := ws.GenSeed(ctx)
	if err != nil {
		return nil, nil, err
	}

	info, err := ws.createWallet(ctx, userID, words)
	if err != nil {
		return nil, nil, err
	}
	return words, info, nil
}

// RestoreWallet creates a wallet for the given user from an existing
// mnemonic, re-deriving the same accounts on every supported chain.
func (ws *WalletService) RestoreWallet(
	ctx context.Context, userID string, words []string,
) (*WalletInfo, error) {
	return ws.createWallet(ctx, userID, words)
}

// GetWallet returns the info of the active wallet owned by the given user.
func (ws *WalletService) GetWallet(
	ctx context.Context, userID string,
) (*WalletInfo, error) {
	wallet, err := ws.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}
	return walletInfo(wallet), nil
}

// GetBalances returns the native balance of every wallet account. A chain
// whose node cannot be reached reports the failure on its own entry instead
// of failing the whole call.
func (ws *WalletService) GetBalances(
	ctx context.Context, userID string,
) ([]ChainBalance, error) {
	wallet, err := ws.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}

	balances := make([]ChainBalance, 0, len(wallet.Accounts))
	for _, svc := range ws.chainRegistry.Services() {
		account, err := wallet.Account(svc.Chain())
		if err != nil {
			continue
		}

		balance := ChainBalance{
			Chain:   svc.Chain(),
			Address: account.Address,
		}
		amount, err := svc.GetBalance(ctx, account.Address)
		if err != nil {
			balance.Error = err.Error()
		} else {
			balance.Balance = amount
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// ExportMnemonic returns the wallet's mnemonic for user-requested backup.
func (ws *WalletService) ExportMnemonic(
	ctx context.Context, userID string,
) ([]string, error) {
	wallet, err := ws.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return nil, err
	}

	plaintext, err := ws.keyStore.Unseal(&wallet.EncryptedMnemonic)
	if err != nil {
		return nil, err
	}
	// split on the wipeable buffer, the words themselves are the export
	fields := bytes.Fields(plaintext)
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		words = append(words, string(field))
	}
	zeroBytes(plaintext)

	log.WithFields(log.Fields{
		"wallet": wallet.ID,
		"user":   userID,
	}).Warn("mnemonic exported")

	return words, nil
}

// DeactivateWallet soft-deletes the active wallet of the given user.
func (ws *WalletService) DeactivateWallet(
	ctx context.Context, userID string,
) error {
	wallet, err := ws.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	)
	if err != nil {
		return err
	}
	return ws.repoManager.WalletRepository().DeactivateWallet(ctx, wallet.ID)
}

func (ws *WalletService) RegisterHandlerForWalletEvent(
	eventType domain.WalletEventType, handler ports.WalletEventHandler,
) {
	ws.repoManager.RegisterHandlerForWalletEvent(eventType, handler)
}

func (ws *WalletService) createWallet(
	ctx context.Context, userID string, words []string,
) (*WalletInfo, error) {
	if err := mnemonic.Validate(words); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidMnemonic, err)
	}

	if _, err := ws.repoManager.WalletRepository().GetWalletByUser(
		ctx, userID,
	); err == nil {
		return nil, domain.ErrWalletAlreadyExisting
	}

	seed, err := mnemonic.ToSeed(words, "")
	if err != nil {
		return nil, err
	}
	defer zeroBytes(seed)

	accounts := make([]domain.Account, 0)
	for _, svc := range ws.chainRegistry.Services() {
		account, err := svc.DeriveAccount(seed, 0)
		if err != nil {
			return nil, fmt.Errorf(
				"deriving %s account: %w", svc.Chain(), err,
			)
		}
		// a plugin handing back an account on the wrong BIP44 branch would
		// custody funds on keys the chain never derives again
		derivationPath, err := path.ParseAccountDerivationPath(
			account.DerivationPath,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"invalid %s derivation path %s: %w",
				svc.Chain(), account.DerivationPath, err,
			)
		}
		if derivationPath.CoinType() != svc.Chain().CoinType() {
			return nil, fmt.Errorf(
				"derivation path %s does not match %s coin type %d",
				account.DerivationPath, svc.Chain(), svc.Chain().CoinType(),
			)
		}
		accounts = append(accounts, *account)
	}

	plaintext := []byte(strings.Join(words, " "))
	sealedMnemonic, err := ws.keyStore.Seal(plaintext)
	zeroBytes(plaintext)
	if err != nil {
		return nil, err
	}

	wallet, err := domain.NewWallet(userID, *sealedMnemonic, accounts)
	if err != nil {
		return nil, err
	}
	if err := ws.repoManager.WalletRepository().CreateWallet(
		ctx, wallet,
	); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"wallet": wallet.ID,
		"user":   userID,
	}).Info("wallet created")

	return walletInfo(wallet), nil
}

func zeroBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
