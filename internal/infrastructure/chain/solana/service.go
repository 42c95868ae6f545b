// Package solana implements the chain service for Solana. Accounts follow
// SLIP-0010 ed25519 derivation, transactions are signed over the serialized
// message built by the aggregator.
package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	path "github.com/harborwallet/harbor/pkg/wallet/derivation-path"
	"github.com/harborwallet/harbor/pkg/wallet/hdkeys"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const lamportDecimals = 9

type service struct {
	client *rpc.Client

	log func(format string, a ...interface{})
}

// NewService returns the Solana chain service talking to the node at the
// given RPC endpoint.
func NewService(rpcURL string) (ports.ChainService, error) {
	if len(rpcURL) <= 0 {
		return nil, fmt.Errorf("missing rpc url for chain %s", domain.ChainSolana)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("solana service: %s", format)
		log.Debugf(format, a...)
	}
	return &service{
		client: rpc.New(rpcURL),
		log:    logFn,
	}, nil
}

func (s *service) Chain() domain.Chain {
	return domain.ChainSolana
}

func (s *service) DeriveAccount(
	seed []byte, index uint32,
) (*domain.Account, error) {
	derivationPath := domain.ChainSolana.DerivationPath(index)
	key, err := s.deriveKey(seed, derivationPath)
	if err != nil {
		return nil, err
	}
	defer zeroKey(key)

	pubKey := solanago.PublicKeyFromBytes(key.Public().(ed25519.PublicKey))
	return &domain.Account{
		Chain:          domain.ChainSolana,
		DerivationPath: derivationPath,
		Address:        pubKey.String(),
		Index:          index,
	}, nil
}

func (s *service) SigningKeyFromSeed(
	seed []byte, index uint32,
) (*ports.SigningKey, error) {
	key, err := s.deriveKey(seed, domain.ChainSolana.DerivationPath(index))
	if err != nil {
		return nil, err
	}
	return &ports.SigningKey{Ed25519: key}, nil
}

func (s *service) ValidateAddress(address string) bool {
	pubKey, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return false
	}
	return !pubKey.IsZero()
}

// SignTransaction signs the serialized message carried by the payload and
// assembles the broadcastable transaction around it.
func (s *service) SignTransaction(
	_ context.Context, key *ports.SigningKey, tx *ports.UnsignedTx,
) (*ports.SignedTx, error) {
	if key == nil || len(key.Ed25519) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: missing signing key", domain.ErrSigning)
	}
	if len(tx.Raw) <= 0 {
		return nil, fmt.Errorf(
			"%w: missing serialized message", domain.ErrSigning,
		)
	}

	var msg solanago.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(tx.Raw)); err != nil {
		return nil, fmt.Errorf(
			"%w: malformed serialized message: %s", domain.ErrSigning, err,
		)
	}

	signature := ed25519.Sign(key.Ed25519, tx.Raw)
	sig := solanago.SignatureFromBytes(signature)
	signed := solanago.Transaction{
		Signatures: []solanago.Signature{sig},
		Message:    msg,
	}
	payload, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// the fee payer signature is the transaction id on solana
	return &ports.SignedTx{
		TxID:    sig.String(),
		Payload: payload,
	}, nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, signedTx []byte,
) (string, error) {
	sig, err := s.client.SendEncodedTransaction(
		ctx, base64.StdEncoding.EncodeToString(signedTx),
	)
	if err != nil {
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}

	s.log("broadcasted transaction %s", sig)
	return sig.String(), nil
}

func (s *service) GetTxStatus(
	ctx context.Context, txid string,
) (ports.TxStatus, error) {
	sig, err := solanago.SignatureFromBase58(txid)
	if err != nil {
		return ports.TxPending, fmt.Errorf("malformed signature: %w", err)
	}

	res, err := s.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return ports.TxPending, err
	}
	if len(res.Value) <= 0 || res.Value[0] == nil {
		return ports.TxPending, nil
	}

	status := res.Value[0]
	if status.Err != nil {
		return ports.TxRejected, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return ports.TxConfirmed, nil
	default:
		return ports.TxPending, nil
	}
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (decimal.Decimal, error) {
	pubKey, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf(
			"%w: %s", domain.ErrInvalidAddress, address,
		)
	}

	res, err := s.client.GetBalance(ctx, pubKey, rpc.CommitmentFinalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching balance: %w", err)
	}
	return decimal.New(int64(res.Value), -lamportDecimals), nil
}

func (s *service) deriveKey(
	seed []byte, derivationPath string,
) (ed25519.PrivateKey, error) {
	parsedPath, err := path.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, err
	}
	return hdkeys.DeriveEd25519(seed, parsedPath)
}

func zeroKey(key ed25519.PrivateKey) {
	for i := range key {
		key[i] = 0
	}
}
