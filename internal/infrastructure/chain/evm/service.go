// Package evm implements the chain service for the EVM-compatible chains.
// Ethereum, BSC and Polygon share the same account scheme and wire format,
// one service type covers all three with a per-chain id and RPC endpoint.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	path "github.com/harborwallet/harbor/pkg/wallet/derivation-path"
	"github.com/harborwallet/harbor/pkg/wallet/hdkeys"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const weiDecimals = 18

var chainIDs = map[domain.Chain]*big.Int{
	domain.ChainEthereum: big.NewInt(1),
	domain.ChainBSC:      big.NewInt(56),
	domain.ChainPolygon:  big.NewInt(137),
}

type service struct {
	chain   domain.Chain
	chainID *big.Int
	rpcURL  string

	client     *ethclient.Client
	clientLock *sync.Mutex

	log func(format string, a ...interface{})
}

// NewService returns the chain service for the given EVM chain, talking to
// the node at the given RPC endpoint.
func NewService(chain domain.Chain, rpcURL string) (ports.ChainService, error) {
	chainID, ok := chainIDs[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrChainNotSupported, chain)
	}
	if len(rpcURL) <= 0 {
		return nil, fmt.Errorf("missing rpc url for chain %s", chain)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("%s service: %s", chain, format)
		log.Debugf(format, a...)
	}
	return &service{
		chain:      chain,
		chainID:    chainID,
		rpcURL:     rpcURL,
		clientLock: &sync.Mutex{},
		log:        logFn,
	}, nil
}

func (s *service) Chain() domain.Chain {
	return s.chain
}

func (s *service) DeriveAccount(
	seed []byte, index uint32,
) (*domain.Account, error) {
	derivationPath := s.chain.DerivationPath(index)
	key, err := s.deriveKey(seed, derivationPath)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	address := crypto.PubkeyToAddress(key.ToECDSA().PublicKey)
	return &domain.Account{
		Chain:          s.chain,
		DerivationPath: derivationPath,
		Address:        address.Hex(),
		Index:          index,
	}, nil
}

func (s *service) SigningKeyFromSeed(
	seed []byte, index uint32,
) (*ports.SigningKey, error) {
	key, err := s.deriveKey(seed, s.chain.DerivationPath(index))
	if err != nil {
		return nil, err
	}
	return &ports.SigningKey{Secp256k1: key}, nil
}

func (s *service) ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

func (s *service) SignTransaction(
	ctx context.Context, key *ports.SigningKey, tx *ports.UnsignedTx,
) (*ports.SignedTx, error) {
	if key == nil || key.Secp256k1 == nil {
		return nil, fmt.Errorf("%w: missing signing key", domain.ErrSigning)
	}
	if !s.ValidateAddress(tx.To) {
		return nil, fmt.Errorf(
			"%w: malformed recipient %s", domain.ErrSigning, tx.To,
		)
	}

	value, err := parseBigInt(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed value: %s", domain.ErrSigning, err)
	}

	gasPrice, err := parseBigInt(tx.GasPrice)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: malformed gas price: %s", domain.ErrSigning, err,
		)
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	nonce, err := s.client.PendingNonceAt(ctx, common.HexToAddress(tx.From))
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}

	if gasPrice.Sign() <= 0 {
		gasPrice, err = s.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching gas price: %w", err)
		}
	}

	to := common.HexToAddress(tx.To)
	gasLimit := tx.GasLimit
	if gasLimit <= 0 {
		gasLimit, err = s.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  common.HexToAddress(tx.From),
			To:    &to,
			Value: value,
			Data:  tx.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimating gas: %w", err)
		}
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     tx.Data,
	})

	signer := types.NewEIP155Signer(s.chainID)
	signedTx, err := types.SignTx(unsigned, signer, key.Secp256k1.ToECDSA())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSigning, err)
	}

	payload, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &ports.SignedTx{
		TxID:    signedTx.Hash().Hex(),
		Payload: payload,
	}, nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, signedTx []byte,
) (string, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return "", fmt.Errorf("malformed signed transaction: %w", err)
	}

	if err := s.connect(ctx); err != nil {
		return "", err
	}
	if err := s.client.SendTransaction(ctx, &tx); err != nil {
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}

	s.log("broadcasted transaction %s", tx.Hash().Hex())
	return tx.Hash().Hex(), nil
}

func (s *service) GetTxStatus(
	ctx context.Context, txid string,
) (ports.TxStatus, error) {
	if err := s.connect(ctx); err != nil {
		return ports.TxPending, err
	}

	receipt, err := s.client.TransactionReceipt(ctx, common.HexToHash(txid))
	if err != nil {
		if err == ethereum.NotFound {
			return ports.TxPending, nil
		}
		return ports.TxPending, err
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return ports.TxConfirmed, nil
	}
	return ports.TxRejected, nil
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (decimal.Decimal, error) {
	if !s.ValidateAddress(address) {
		return decimal.Zero, fmt.Errorf(
			"%w: %s", domain.ErrInvalidAddress, address,
		)
	}

	if err := s.connect(ctx); err != nil {
		return decimal.Zero, err
	}

	balance, err := s.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching balance: %w", err)
	}
	return decimal.NewFromBigInt(balance, -weiDecimals), nil
}

func (s *service) deriveKey(
	seed []byte, derivationPath string,
) (*btcec.PrivateKey, error) {
	parsedPath, err := path.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, err
	}
	return hdkeys.DeriveSecp256k1(seed, parsedPath)
}

func (s *service) connect(ctx context.Context) error {
	s.clientLock.Lock()
	defer s.clientLock.Unlock()

	if s.client != nil {
		return nil
	}
	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		return fmt.Errorf("connecting to %s node: %w", s.chain, err)
	}
	s.client = client
	return nil
}

func parseBigInt(s string) (*big.Int, error) {
	if len(s) <= 0 {
		return big.NewInt(0), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") {
		s = strings.TrimPrefix(s, "0x")
		base = 16
	}
	value, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("not a numeric string")
	}
	return value, nil
}
