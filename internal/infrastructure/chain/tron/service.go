// Package tron implements the chain service for Tron through the HTTP API
// exposed by fullnodes. Addresses are the keccak hash of the secp256k1
// public key behind a 0x41 version byte, base58check encoded.
package tron

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	path "github.com/harborwallet/harbor/pkg/wallet/derivation-path"
	"github.com/harborwallet/harbor/pkg/wallet/hdkeys"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	addressPrefix = 0x41
	sunDecimals   = 6

	requestTimeout = 30 * time.Second
)

type service struct {
	nodeURL string
	client  *http.Client

	log func(format string, a ...interface{})
}

// NewService returns the Tron chain service talking to the fullnode at the
// given endpoint.
func NewService(nodeURL string) (ports.ChainService, error) {
	if len(nodeURL) <= 0 {
		return nil, fmt.Errorf("missing node url for chain %s", domain.ChainTron)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("tron service: %s", format)
		log.Debugf(format, a...)
	}
	return &service{
		nodeURL: nodeURL,
		client:  &http.Client{Timeout: requestTimeout},
		log:     logFn,
	}, nil
}

func (s *service) Chain() domain.Chain {
	return domain.ChainTron
}

func (s *service) DeriveAccount(
	seed []byte, index uint32,
) (*domain.Account, error) {
	derivationPath := domain.ChainTron.DerivationPath(index)
	key, err := s.deriveKey(seed, derivationPath)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	return &domain.Account{
		Chain:          domain.ChainTron,
		DerivationPath: derivationPath,
		Address:        addressFromKey(key),
		Index:          index,
	}, nil
}

func (s *service) SigningKeyFromSeed(
	seed []byte, index uint32,
) (*ports.SigningKey, error) {
	key, err := s.deriveKey(seed, domain.ChainTron.DerivationPath(index))
	if err != nil {
		return nil, err
	}
	return &ports.SigningKey{Secp256k1: key}, nil
}

func (s *service) ValidateAddress(address string) bool {
	decoded, version, err := base58.CheckDecode(address)
	if err != nil {
		return false
	}
	return version == addressPrefix && len(decoded) == 20
}

// signedTransaction is the fullnode transaction format: the aggregator
// builds the raw transaction, signing appends the recoverable signature
// over its id.
type signedTransaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
}

func (s *service) SignTransaction(
	_ context.Context, key *ports.SigningKey, tx *ports.UnsignedTx,
) (*ports.SignedTx, error) {
	if key == nil || key.Secp256k1 == nil {
		return nil, fmt.Errorf("%w: missing signing key", domain.ErrSigning)
	}
	if len(tx.Raw) <= 0 {
		return nil, fmt.Errorf("%w: missing raw transaction", domain.ErrSigning)
	}

	var unsigned signedTransaction
	if err := json.Unmarshal(tx.Raw, &unsigned); err != nil {
		return nil, fmt.Errorf(
			"%w: malformed raw transaction: %s", domain.ErrSigning, err,
		)
	}

	rawData, err := hex.DecodeString(unsigned.RawDataHex)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: malformed raw data: %s", domain.ErrSigning, err,
		)
	}

	// the tx id must be the hash of the raw data it claims to identify
	txID := sha256.Sum256(rawData)
	if hex.EncodeToString(txID[:]) != unsigned.TxID {
		return nil, fmt.Errorf(
			"%w: tx id does not match raw data", domain.ErrSigning,
		)
	}

	signature, err := ethcrypto.Sign(txID[:], key.Secp256k1.ToECDSA())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSigning, err)
	}
	unsigned.Signature = []string{hex.EncodeToString(signature)}

	payload, err := json.Marshal(unsigned)
	if err != nil {
		return nil, err
	}
	return &ports.SignedTx{
		TxID:    unsigned.TxID,
		Payload: payload,
	}, nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, signedTx []byte,
) (string, error) {
	var tx signedTransaction
	if err := json.Unmarshal(signedTx, &tx); err != nil {
		return "", fmt.Errorf("malformed signed transaction: %w", err)
	}

	var res struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := s.post(
		ctx, "/wallet/broadcasttransaction", json.RawMessage(signedTx), &res,
	); err != nil {
		return "", err
	}
	if !res.Result {
		return "", fmt.Errorf(
			"broadcast rejected: %s %s", res.Code, decodeNodeMessage(res.Message),
		)
	}

	txid := res.TxID
	if len(txid) <= 0 {
		txid = tx.TxID
	}
	s.log("broadcasted transaction %s", txid)
	return txid, nil
}

func (s *service) GetTxStatus(
	ctx context.Context, txid string,
) (ports.TxStatus, error) {
	body := map[string]interface{}{"value": txid}

	var res struct {
		ID      string `json:"id"`
		Receipt struct {
			Result string `json:"result"`
		} `json:"receipt"`
		Result string `json:"result"`
	}
	if err := s.post(
		ctx, "/wallet/gettransactioninfobyid", body, &res,
	); err != nil {
		return ports.TxPending, err
	}

	// the node replies with an empty object until the tx lands in a block
	if len(res.ID) <= 0 {
		return ports.TxPending, nil
	}
	if res.Result == "FAILED" {
		return ports.TxRejected, nil
	}
	if len(res.Receipt.Result) > 0 && res.Receipt.Result != "SUCCESS" {
		return ports.TxRejected, nil
	}
	return ports.TxConfirmed, nil
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (decimal.Decimal, error) {
	if !s.ValidateAddress(address) {
		return decimal.Zero, fmt.Errorf(
			"%w: %s", domain.ErrInvalidAddress, address,
		)
	}

	body := map[string]interface{}{"address": address, "visible": true}

	var res struct {
		Balance int64 `json:"balance"`
	}
	if err := s.post(ctx, "/wallet/getaccount", body, &res); err != nil {
		return decimal.Zero, fmt.Errorf("fetching balance: %w", err)
	}
	return decimal.New(res.Balance, -sunDecimals), nil
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

func (s *service) post(
	ctx context.Context, path string, body, dest interface{},
) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.nodeURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"node replied with status %d: %s", res.StatusCode, resBody,
		)
	}
	return json.Unmarshal(resBody, dest)
}

func addressFromKey(key *btcec.PrivateKey) string {
	pubKey := key.PubKey().ToECDSA()
	hash := ethcrypto.Keccak256(ethcrypto.FromECDSAPub(pubKey)[1:])
	return base58.CheckEncode(hash[12:], addressPrefix)
}

// decodeNodeMessage decodes the hex-encoded error message of the fullnode.
func decodeNodeMessage(message string) string {
	decoded, err := hex.DecodeString(message)
	if err != nil {
		return message
	}
	return string(decoded)
}
