// Package rango implements the ports.Aggregator interface against the Rango
// Exchange HTTP API.
package rango

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	defaultBaseURL  = "https://api.rango.exchange"
	defaultQuoteTTL = time.Minute
	assetCacheTTL   = 10 * time.Minute
	requestTimeout  = 30 * time.Second

	maxAttempts = 4
)

var retryBaseDelay = time.Second

// ServiceArgs bundles the arguments for creating a rango service.
type ServiceArgs struct {
	BaseURL  string
	APIKey   string
	QuoteTTL time.Duration
}

func (a ServiceArgs) validate() error {
	if len(a.BaseURL) > 0 {
		if _, err := url.Parse(a.BaseURL); err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
	}
	return nil
}

func (a ServiceArgs) baseURL() string {
	if len(a.BaseURL) > 0 {
		return a.BaseURL
	}
	return defaultBaseURL
}

func (a ServiceArgs) quoteTTL() time.Duration {
	if a.QuoteTTL > 0 {
		return a.QuoteTTL
	}
	return defaultQuoteTTL
}

type service struct {
	baseURL  string
	apiKey   string
	quoteTTL time.Duration
	client   *http.Client
	assets   *assetCache

	log func(format string, a ...interface{})
}

// NewService returns an aggregator talking to the Rango Exchange API at the
// given base url. Quotes are given a fixed validity window since the pricing
// endpoint does not carry one.
func NewService(args ServiceArgs) (ports.Aggregator, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("aggregator: %s", format)
		log.Debugf(format, a...)
	}
	return &service{
		baseURL:  args.baseURL(),
		apiKey:   args.APIKey,
		quoteTTL: args.quoteTTL(),
		client:   &http.Client{Timeout: requestTimeout},
		assets:   newAssetCache(assetCacheTTL),
		log:      logFn,
	}, nil
}

type feeEntry struct {
	Amount string    `json:"amount"`
	Token  tokenInfo `json:"token"`
}

type pathStep struct {
	Swapper struct {
		Title string `json:"title"`
	} `json:"swapper"`
	To tokenInfo `json:"to"`
}

type routeInfo struct {
	From         tokenInfo  `json:"from"`
	To           tokenInfo  `json:"to"`
	OutputAmount string     `json:"outputAmount"`
	Fee          []feeEntry `json:"fee"`
	Path         []pathStep `json:"path"`
}

type swapResponse struct {
	RequestID  string     `json:"requestId"`
	ResultType string     `json:"resultType"`
	Route      *routeInfo `json:"route"`
	Error      string     `json:"error"`
}

func (s *service) Quote(
	ctx context.Context, req ports.QuoteRequest,
) (*domain.SwapQuote, error) {
	if err := s.refreshAssets(ctx); err != nil {
		return nil, err
	}

	fromToken, ok := s.assets.findToken(
		req.FromAsset, blockchainNames[req.FromChain],
	)
	if !ok {
		return nil, fmt.Errorf(
			"%w: asset %s not listed on %s",
			domain.ErrNoRouteFound, req.FromAsset, req.FromChain,
		)
	}
	toToken, ok := s.assets.findToken(req.ToAsset, blockchainNames[req.ToChain])
	if !ok {
		return nil, fmt.Errorf(
			"%w: asset %s not listed on %s",
			domain.ErrNoRouteFound, req.ToAsset, req.ToChain,
		)
	}

	params := url.Values{
		"from":           []string{fromToken.identifier()},
		"to":             []string{toToken.identifier()},
		"amount":         []string{req.Amount.Shift(fromToken.Decimals).Truncate(0).String()},
		"slippage":       []string{req.SlippagePct.String()},
		"disableMultiTx": []string{"false"},
	}

	var res swapResponse
	if err := s.get(ctx, "/basic/swap", params, &res); err != nil {
		return nil, err
	}
	if res.ResultType != "OK" || res.Route == nil {
		cause := res.Error
		if len(cause) <= 0 {
			cause = res.ResultType
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrNoRouteFound, cause)
	}

	amountOut, err := decimal.NewFromString(res.Route.OutputAmount)
	if err != nil {
		return nil, fmt.Errorf("malformed output amount: %w", err)
	}

	feeAmount := decimal.Zero
	feeAsset := ""
	for _, fee := range res.Route.Fee {
		amount, err := decimal.NewFromString(fee.Amount)
		if err != nil || !amount.IsPositive() {
			continue
		}
		feeAmount = amount.Shift(-fee.Token.Decimals)
		feeAsset = fee.Token.Symbol
		break
	}

	route := []string{res.Route.From.Blockchain}
	for _, step := range res.Route.Path {
		route = append(route, step.To.Blockchain)
	}

	s.log("quote %s: %s %s -> %s %s", res.RequestID,
		req.Amount, fromToken.Symbol, amountOut.Shift(-toToken.Decimals),
		toToken.Symbol,
	)

	return &domain.SwapQuote{
		RequestID:   res.RequestID,
		FromChain:   req.FromChain,
		ToChain:     req.ToChain,
		FromAsset:   fromToken.Symbol,
		ToAsset:     toToken.Symbol,
		AmountIn:    req.Amount,
		AmountOut:   amountOut.Shift(-toToken.Decimals),
		FeeAmount:   feeAmount,
		FeeAsset:    feeAsset,
		Route:       route,
		SlippagePct: req.SlippagePct,
		ExpiresAt:   time.Now().Add(s.quoteTTL),
	}, nil
}

type createTxRequest struct {
	RequestID    string `json:"requestId"`
	UserSettings struct {
		Slippage           string `json:"slippage"`
		EnableRefuel       bool   `json:"enableRefuel"`
		DestinationAddress string `json:"destinationAddress,omitempty"`
	} `json:"userSettings"`
	Validations struct {
		Balance bool `json:"balance"`
		Fee     bool `json:"fee"`
	} `json:"validations"`
}

type txPayload struct {
	Type              string `json:"type"`
	BlockChain        string `json:"blockChain"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	Data              string `json:"data"`
	GasLimit          string `json:"gasLimit"`
	GasPrice          string `json:"gasPrice"`
	SerializedMessage []byte `json:"serializedMessage"`
}

type createTxResponse struct {
	OK          bool       `json:"ok"`
	Error       string     `json:"error"`
	Transaction *txPayload `json:"transaction"`
}

func (s *service) CreateTransaction(
	ctx context.Context, requestID, userAddress, destinationAddress string,
) (*ports.UnsignedTx, error) {
	body := createTxRequest{RequestID: requestID}
	body.UserSettings.Slippage = "1.0"
	body.UserSettings.DestinationAddress = destinationAddress
	body.Validations.Balance = true
	body.Validations.Fee = true

	var res createTxResponse
	if err := s.post(ctx, "/v1/transaction", body, &res); err != nil {
		return nil, err
	}
	if !res.OK || res.Transaction == nil {
		return nil, fmt.Errorf("transaction not created: %s", res.Error)
	}

	tx := res.Transaction
	chain, ok := chainByBlockchain(tx.BlockChain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidChain, tx.BlockChain)
	}

	from := tx.From
	if len(from) <= 0 {
		from = userAddress
	}

	unsigned := &ports.UnsignedTx{
		Chain:    chain,
		From:     from,
		To:       tx.To,
		Value:    tx.Value,
		GasPrice: tx.GasPrice,
		Raw:      tx.SerializedMessage,
	}
	if len(tx.Data) > 0 {
		data, err := hex.DecodeString(strings.TrimPrefix(tx.Data, "0x"))
		if err != nil {
			return nil, fmt.Errorf("malformed tx data: %w", err)
		}
		unsigned.Data = data
	}
	if len(tx.GasLimit) > 0 {
		gasLimit, err := parseNumeric(tx.GasLimit)
		if err != nil {
			return nil, fmt.Errorf("malformed gas limit: %w", err)
		}
		unsigned.GasLimit = gasLimit
	}
	return unsigned, nil
}

type statusResponse struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	OutputTx *struct {
		TxID string `json:"txId"`
	} `json:"outputTx"`
}

func (s *service) Status(
	ctx context.Context, requestID, txID string,
) (*ports.SwapTracking, error) {
	params := url.Values{
		"requestId": []string{requestID},
		"txId":      []string{txID},
	}

	var res statusResponse
	if err := s.get(ctx, "/basic/status", params, &res); err != nil {
		return nil, err
	}

	tracking := &ports.SwapTracking{Error: res.Error}
	switch strings.ToUpper(res.Status) {
	case "SUCCESS":
		tracking.Status = ports.SwapTrackingSettled
		if res.OutputTx != nil {
			tracking.DestTxID = res.OutputTx.TxID
		}
	case "FAILED":
		tracking.Status = ports.SwapTrackingFailed
	case "RUNNING", "":
		tracking.Status = ports.SwapTrackingPending
	default:
		tracking.Status = ports.SwapTrackingUnknown
	}
	return tracking, nil
}

func chainByBlockchain(blockchain string) (domain.Chain, bool) {
	blockchain = strings.ToLower(blockchain)
	for chain, name := range blockchainNames {
		if name == blockchain {
			return chain, true
		}
	}
	return "", false
}

func parseNumeric(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func (s *service) get(
	ctx context.Context, path string, params url.Values, dest interface{},
) error {
	if params == nil {
		params = url.Values{}
	}
	if len(s.apiKey) > 0 {
		params.Set("apiKey", s.apiKey)
	}
	endpoint := fmt.Sprintf("%s%s?%s", s.baseURL, path, params.Encode())

	return s.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, dest)
}

func (s *service) post(
	ctx context.Context, path string, body, dest interface{},
) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	params := url.Values{}
	if len(s.apiKey) > 0 {
		params.Set("apiKey", s.apiKey)
	}
	endpoint := fmt.Sprintf("%s%s?%s", s.baseURL, path, params.Encode())

	return s.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, endpoint, bytes.NewReader(payload),
		)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, dest)
}

// doWithRetry sends the request, retrying timeouts and 5xx-class responses
// with exponential backoff and jitter. 4xx-class responses are returned
// immediately, repeating a rejected request cannot change the outcome.
func (s *service) doWithRetry(
	ctx context.Context, newRequest func() (*http.Request, error),
	dest interface{},
) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(delay) / 2))
			s.log("retrying in %s after: %s", delay, lastErr)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := newRequest()
		if err != nil {
			return err
		}

		res, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf(
				"aggregator replied with status %d: %s", res.StatusCode, body,
			)
			continue
		}
		if res.StatusCode >= 400 {
			return fmt.Errorf(
				"aggregator rejected request with status %d: %s",
				res.StatusCode, body,
			)
		}

		return json.Unmarshal(body, dest)
	}
	return lastErr
}
