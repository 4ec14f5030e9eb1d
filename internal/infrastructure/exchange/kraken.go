package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/kraken_spot_bot/internal/domain"
	"go.uber.org/zap"
)

const KrakenBaseURL = "https://api.kraken.com"

// Asset code aliases: Kraken reports some assets under a legacy X/Z-prefixed
// name depending on the account.
var (
	quoteAssetKeys = []string{"ZCAD", "CAD"}
	baseAssetKeys  = []string{"XXBT", "XBT"}
)

// KrakenClient implements domain.Exchange against the Kraken REST API.
// All operations funnel through the shared limiter, so requests are
// serialized and politely spaced even if callers are added concurrently.
type KrakenClient struct {
	baseURL string
	client  *http.Client
	limiter *limiter
	signer  *signer // nil until SetCredentials succeeds
	log     *zap.Logger
}

func NewKrakenClient(baseURL string, minDelay time.Duration, log *zap.Logger) *KrakenClient {
	if baseURL == "" {
		baseURL = KrakenBaseURL
	}
	return &KrakenClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: newLimiter(minDelay, log),
		log:     log,
	}
}

// SetCredentials enables the private endpoints. The secret must be the
// base64-encoded value issued by Kraken.
func (k *KrakenClient) SetCredentials(apiKey, apiSecret string) error {
	if apiKey == "" || apiSecret == "" {
		return fmt.Errorf("API key and secret are required")
	}
	s, err := newSigner(apiKey, apiSecret)
	if err != nil {
		return err
	}
	k.signer = s
	k.log.Info("exchange client initialized with API credentials")
	return nil
}

func (k *KrakenClient) Initialized() bool {
	return k.signer != nil
}

func (k *KrakenClient) ConsecutiveFailures() int {
	return k.limiter.consecutiveFailures()
}

type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// call performs one rate-limited HTTP round trip and decodes the Kraken
// envelope. Transport errors, non-200 statuses, malformed JSON and Kraken
// error arrays all count as failures toward the backoff controller.
func (k *KrakenClient) call(ctx context.Context, req *http.Request) (json.RawMessage, error) {
	if err := k.limiter.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := k.client.Do(req)
	if err != nil {
		k.limiter.failure()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		k.limiter.failure()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		k.limiter.failure()
		return nil, fmt.Errorf("HTTP error %d", resp.StatusCode)
	}

	var env krakenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		k.limiter.failure()
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}

	if len(env.Error) > 0 {
		k.limiter.failure()
		return nil, fmt.Errorf("kraken error: %s", strings.Join(env.Error, "; "))
	}

	k.limiter.success()
	return env.Result, nil
}

func (k *KrakenClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "kraken-spot-bot/1.0")
	return k.call(ctx, req)
}

func (k *KrakenClient) post(ctx context.Context, path, postdata string) (json.RawMessage, error) {
	if k.signer == nil {
		return nil, fmt.Errorf("API credentials not initialized")
	}

	nonce := k.signer.nonce()
	postdata = "nonce=" + nonce + postdata

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path, strings.NewReader(postdata))
	if err != nil {
		return nil, err
	}
	req.Header.Set("API-Key", k.signer.apiKey)
	req.Header.Set("API-Sign", k.signer.sign(path, nonce, postdata))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "kraken-spot-bot/1.0")

	return k.call(ctx, req)
}

// GetTicker fetches last trade price and best bid/ask for a pair.
// Public endpoint, works without credentials.
func (k *KrakenClient) GetTicker(ctx context.Context, pair string) domain.TickerResult {
	var result domain.TickerResult

	raw, err := k.get(ctx, "/0/public/Ticker?pair="+pair)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	// Result is keyed by Kraken's canonical pair name, which may differ
	// from the requested one; take the first entry.
	var pairs map[string]struct {
		C []string `json:"c"` // last trade [price, lot volume]
		B []string `json:"b"` // best bid [price, whole lot volume, lot volume]
		A []string `json:"a"` // best ask
	}
	if err := json.Unmarshal(raw, &pairs); err != nil {
		k.limiter.failure()
		result.Err = "ticker parse error: " + err.Error()
		return result
	}

	for _, t := range pairs {
		if len(t.C) == 0 {
			continue
		}
		last, err := strconv.ParseFloat(t.C[0], 64)
		if err != nil {
			continue
		}
		result.LastPrice = last
		if len(t.B) > 0 {
			result.BidPrice, _ = strconv.ParseFloat(t.B[0], 64)
		}
		if len(t.A) > 0 {
			result.AskPrice, _ = strconv.ParseFloat(t.A[0], 64)
		}
		result.Timestamp = time.Now().Unix()
		result.Success = true
		k.log.Debug("ticker",
			zap.String("pair", pair),
			zap.Float64("last", result.LastPrice),
			zap.Float64("bid", result.BidPrice),
			zap.Float64("ask", result.AskPrice))
		return result
	}

	k.limiter.failure()
	result.Err = "could not parse last price from ticker response"
	return result
}

// GetBalance fetches free quote and base balances. Private endpoint.
func (k *KrakenClient) GetBalance(ctx context.Context) domain.BalanceResult {
	var result domain.BalanceResult

	raw, err := k.post(ctx, "/0/private/Balance", "")
	if err != nil {
		result.Err = err.Error()
		return result
	}

	var balances map[string]string
	if err := json.Unmarshal(raw, &balances); err != nil {
		k.limiter.failure()
		result.Err = "balance parse error: " + err.Error()
		return result
	}

	result.QuoteBalance = firstBalance(balances, quoteAssetKeys)
	result.BaseBalance = firstBalance(balances, baseAssetKeys)
	result.Success = true

	k.log.Info("balance",
		zap.Float64("quote", result.QuoteBalance),
		zap.Float64("base", result.BaseBalance))
	return result
}

func firstBalance(balances map[string]string, keys []string) float64 {
	for _, key := range keys {
		if v, ok := balances[key]; ok {
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				return f
			}
		}
	}
	return 0
}

// PlaceMarketOrder submits an immediate market order and returns its txid.
// It never resubmits on failure; retry policy lives with the caller.
func (k *KrakenClient) PlaceMarketOrder(ctx context.Context, pair, side string, volume float64) domain.OrderResult {
	var result domain.OrderResult

	volumeStr := strconv.FormatFloat(volume, 'f', 8, 64)
	postdata := "&ordertype=market" +
		"&type=" + side +
		"&volume=" + volumeStr +
		"&pair=" + pair

	k.log.Info("placing market order",
		zap.String("side", side),
		zap.String("volume", volumeStr),
		zap.String("pair", pair))

	raw, err := k.post(ctx, "/0/private/AddOrder", postdata)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	var placed struct {
		TxID []string `json:"txid"`
	}
	if err := json.Unmarshal(raw, &placed); err != nil {
		k.limiter.failure()
		result.Err = "order parse error: " + err.Error()
		return result
	}
	if len(placed.TxID) == 0 {
		result.Err = "no txid in order response"
		return result
	}

	result.TxID = placed.TxID[0]
	result.Success = true
	k.log.Info("order placed", zap.String("txid", result.TxID))
	return result
}

// QueryOrder fetches the current status of an order. Used exclusively for
// fill confirmation: Success is true only once the order is closed.
func (k *KrakenClient) QueryOrder(ctx context.Context, txid string) domain.OrderResult {
	result := domain.OrderResult{TxID: txid}

	raw, err := k.post(ctx, "/0/private/QueryOrders", "&txid="+txid+"&trades=true")
	if err != nil {
		result.Err = err.Error()
		return result
	}

	var orders map[string]struct {
		Status  string `json:"status"`
		VolExec string `json:"vol_exec"`
		Price   string `json:"price"`
		Fee     string `json:"fee"`
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		k.limiter.failure()
		result.Err = "query parse error: " + err.Error()
		return result
	}

	order, ok := orders[txid]
	if !ok {
		result.Err = "order not found: " + txid
		return result
	}

	result.Status = order.Status
	result.Volume, _ = strconv.ParseFloat(order.VolExec, 64)
	result.AvgPrice, _ = strconv.ParseFloat(order.Price, 64)
	result.Fee, _ = strconv.ParseFloat(order.Fee, 64)

	switch order.Status {
	case "closed":
		result.Success = true
		k.log.Info("order filled",
			zap.String("txid", txid),
			zap.Float64("volume", result.Volume),
			zap.Float64("avg_price", result.AvgPrice),
			zap.Float64("fee", result.Fee))
	case "canceled", "expired":
		result.Err = "order was " + order.Status
	default:
		k.log.Info("order pending", zap.String("txid", txid), zap.String("status", order.Status))
	}

	return result
}
