// Package clob is the REST client for the exchange's central limit
// order book: market data, balances, trade history, order submission,
// and credential management.
package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/auth"
	"github.com/polyclob/polyclob/pkg/crypto"
	"github.com/polyclob/polyclob/pkg/errors"
	"github.com/polyclob/polyclob/pkg/order"
	"github.com/polyclob/polyclob/pkg/util"
)

// endCursor is the sentinel the API returns on the last page.
const endCursor = "LTE="

// Client talks to one CLOB deployment on behalf of one signing
// identity. Market-data endpoints work unauthenticated; everything
// touching the account requires API credentials and fails fast with
// an auth error before any network work when they are missing.
type Client struct {
	http      *http.Client
	baseURL   string
	network   params.Network
	signer    crypto.SigningContext
	creds     params.Credentials
	clock     util.Clock
	log       *zap.Logger
	pageLimit int
	maxPages  int
}

func New(cfg params.Config, signer crypto.SigningContext, log *zap.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:   strings.TrimRight(cfg.ClobURL, "/"),
		network:   cfg.Network,
		signer:    signer,
		creds:     cfg.Creds,
		clock:     util.RealClock{},
		log:       log,
		pageLimit: cfg.PageLimit,
		maxPages:  cfg.MaxPages,
	}
}

func (c *Client) Address() common.Address { return c.signer.Address() }

func (c *Client) HasCredentials() bool { return c.creds.Complete() }

// SetCredentials installs API credentials after key issuance.
func (c *Client) SetCredentials(creds params.Credentials) { c.creds = creds }

// Markets pages through /markets from the given cursor.
func (c *Client) Markets(ctx context.Context, cursor string) (*MarketsResponse, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("next_cursor", cursor)
	}
	var out MarketsResponse
	if err := c.get(ctx, "/markets", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SimplifiedMarkets(ctx context.Context, cursor string) (*SimplifiedMarketsResponse, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("next_cursor", cursor)
	}
	var out SimplifiedMarketsResponse
	if err := c.get(ctx, "/simplified-markets", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SamplingMarkets lists markets eligible for liquidity rewards.
func (c *Client) SamplingMarkets(ctx context.Context, cursor string) (*MarketsResponse, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("next_cursor", cursor)
	}
	var out MarketsResponse
	if err := c.get(ctx, "/sampling-markets", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Market(ctx context.Context, conditionID string) (*Market, error) {
	if conditionID == "" {
		return nil, errors.New(errors.CodeInvalidMarket, "empty condition id")
	}
	var out Market
	err := c.get(ctx, "/markets/"+conditionID, nil, &out)
	if errors.HasCode(err, errors.CodeAPIError) && strings.Contains(err.Error(), "404") {
		return nil, errors.Newf(errors.CodeInvalidMarket, "unknown market: %s", conditionID)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) OrderBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	var out OrderBook
	if err := c.get(ctx, "/book", url.Values{"token_id": {tokenID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Midpoint(ctx context.Context, tokenID string) (string, error) {
	var out struct {
		Mid string `json:"mid"`
	}
	if err := c.get(ctx, "/midpoint", url.Values{"token_id": {tokenID}}, &out); err != nil {
		return "", err
	}
	return out.Mid, nil
}

func (c *Client) Spread(ctx context.Context, tokenID string) (string, error) {
	var out struct {
		Spread string `json:"spread"`
	}
	if err := c.get(ctx, "/spread", url.Values{"token_id": {tokenID}}, &out); err != nil {
		return "", err
	}
	return out.Spread, nil
}

// HistoryQuery bounds a prices-history fetch. Fidelity is the candle
// interval in minutes.
type HistoryQuery struct {
	StartTs  int64
	EndTs    int64
	Fidelity int
}

func (c *Client) PriceHistory(ctx context.Context, tokenID string, hq HistoryQuery) ([]PricePoint, error) {
	q := url.Values{"market": {tokenID}}
	if hq.StartTs > 0 {
		q.Set("startTs", strconv.FormatInt(hq.StartTs, 10))
	}
	if hq.EndTs > 0 {
		q.Set("endTs", strconv.FormatInt(hq.EndTs, 10))
	}
	if hq.Fidelity > 0 {
		q.Set("fidelity", strconv.Itoa(hq.Fidelity))
	}
	var out struct {
		History []PricePoint `json:"history"`
	}
	if err := c.get(ctx, "/prices-history", q, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) CollateralBalance(ctx context.Context) (*BalanceAllowance, error) {
	q := url.Values{"asset_type": {"COLLATERAL"}, "address": {c.Address().Hex()}}
	var out BalanceAllowance
	if err := c.authedGet(ctx, "/balance", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConditionalBalance(ctx context.Context, tokenID string) (*BalanceAllowance, error) {
	q := url.Values{
		"asset_type": {"CONDITIONAL"},
		"token_id":   {tokenID},
		"address":    {c.Address().Hex()},
	}
	var out BalanceAllowance
	if err := c.authedGet(ctx, "/balance", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConditionalBalances looks up conditional balances for a batch of
// tokens. A failed lookup logs and skips that token rather than
// aborting the batch; missing credentials still fail the whole call.
func (c *Client) ConditionalBalances(ctx context.Context, tokenIDs []string) (map[string]BalanceAllowance, error) {
	if !c.creds.Complete() {
		return nil, errors.New(errors.CodeAuthError, "operation requires api credentials")
	}
	out := make(map[string]BalanceAllowance, len(tokenIDs))
	for _, id := range tokenIDs {
		bal, err := c.ConditionalBalance(ctx, id)
		if err != nil {
			c.log.Warn("conditional balance lookup failed",
				zap.String("token_id", id), zap.Error(err))
			continue
		}
		out[id] = *bal
	}
	return out, nil
}

// Trades fetches the caller's fill history, following the cursor until
// the end sentinel or the page cap. A failed follow-up page logs and
// returns what was collected so far.
func (c *Client) Trades(ctx context.Context, tq TradeQuery) (*TradesResponse, error) {
	q := url.Values{"maker_address": {c.Address().Hex()}}
	if tq.Market != "" {
		q.Set("market", tq.Market)
	}
	for _, asset := range tq.AssetIDs {
		q.Add("asset_id", asset)
	}
	limit := tq.Limit
	if limit <= 0 {
		limit = c.pageLimit
	}
	q.Set("limit", strconv.Itoa(limit))

	maxPages := tq.MaxPages
	if maxPages <= 0 {
		maxPages = c.maxPages
	}

	var all TradesResponse
	if err := c.authedGet(ctx, "/trades", q, &all); err != nil {
		return nil, err
	}

	for page := 1; page < maxPages && all.NextCursor != "" && all.NextCursor != endCursor; page++ {
		q.Set("next_cursor", all.NextCursor)
		var next TradesResponse
		if err := c.authedGet(ctx, "/trades", q, &next); err != nil {
			c.log.Warn("trade page fetch failed, returning partial history",
				zap.Int("page", page), zap.Error(err))
			break
		}
		all.Data = append(all.Data, next.Data...)
		all.NextCursor = next.NextCursor
	}
	return &all, nil
}

func (c *Client) Order(ctx context.Context, orderID string) (*OpenOrder, error) {
	var out OpenOrder
	err := c.authedGet(ctx, "/order/"+orderID, nil, &out)
	if errors.HasCode(err, errors.CodeAPIError) && strings.Contains(err.Error(), "404") {
		return nil, errors.Newf(errors.CodeInvalidOrder, "order not found: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) OpenOrders(ctx context.Context, market, assetID string) ([]OpenOrder, error) {
	q := url.Values{"maker_address": {c.Address().Hex()}}
	if market != "" {
		q.Set("market", market)
	}
	if assetID != "" {
		q.Set("asset_id", assetID)
	}
	var out []OpenOrder
	if err := c.authedGet(ctx, "/orders", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostOrder submits a signed order with the given time-in-force.
func (c *Client) PostOrder(ctx context.Context, signed *order.SignedOrder, orderType OrderType) (*OrderResponse, error) {
	if orderType == "" {
		orderType = OrderTypeGTC
	}
	payload := map[string]any{
		"order":     signed,
		"owner":     c.creds.APIKey,
		"orderType": string(orderType),
	}
	var out OrderResponse
	if err := c.authedDo(ctx, http.MethodPost, "/order", nil, payload, &out); err != nil {
		return nil, err
	}
	if !out.Success && out.ErrorMsg != "" {
		return &out, errors.Newf(errors.CodeAPIError, "order rejected: %s", out.ErrorMsg)
	}
	return &out, nil
}

// CancelOrder returns true when the exchange accepted the cancel.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	err := c.authedDo(ctx, http.MethodDelete, "/order/"+orderID, nil, nil, nil)
	if err != nil {
		if errors.HasCode(err, errors.CodeAPIError) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateAPIKey signs a fresh challenge and exchanges it for API
// credentials. Only the private key is needed; the returned
// credentials are also installed on the client.
func (c *Client) CreateAPIKey(ctx context.Context) (params.Credentials, error) {
	req, err := auth.NewRequestBuilder(c.network.ChainID).Build(c.signer)
	if err != nil {
		return params.Credentials{}, err
	}
	var out struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/api-key", nil, req, nil, &out); err != nil {
		return params.Credentials{}, err
	}
	creds := params.Credentials{APIKey: out.APIKey, Secret: out.Secret, Passphrase: out.Passphrase}
	c.creds = creds
	return creds, nil
}

func (c *Client) APIKeys(ctx context.Context) ([]APIKey, error) {
	var out struct {
		APIKeys []APIKey `json:"api_keys"`
	}
	q := url.Values{"address": {c.Address().Hex()}}
	if err := c.authedGet(ctx, "/api-keys", q, &out); err != nil {
		return nil, err
	}
	return out.APIKeys, nil
}

func (c *Client) RevokeAPIKey(ctx context.Context, keyID string) (bool, error) {
	err := c.authedDo(ctx, http.MethodDelete, "/api-keys/"+keyID, nil, nil, nil)
	if err != nil {
		if errors.HasCode(err, errors.CodeAPIError) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, nil, out)
}

func (c *Client) authedGet(ctx context.Context, path string, q url.Values, out any) error {
	return c.authedDo(ctx, http.MethodGet, path, q, nil, out)
}

// authedDo attaches the HMAC headers. The signature covers the path
// without query parameters plus the exact serialized body.
func (c *Client) authedDo(ctx context.Context, method, path string, q url.Values, body, out any) error {
	if !c.creds.Complete() {
		return errors.New(errors.CodeAuthError, "operation requires api credentials")
	}
	bodyStr := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.CodeParseError, "encoding request body", err)
		}
		bodyStr = string(raw)
	}
	headers, err := auth.L2Headers(c.Address(), c.creds, c.clock.Now().Unix(), method, path, bodyStr)
	if err != nil {
		return err
	}
	return c.doRaw(ctx, method, path, q, []byte(bodyStr), headers, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, headers map[string]string, out any) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.CodeParseError, "encoding request body", err)
		}
	}
	return c.doRaw(ctx, method, path, q, raw, headers, out)
}

func (c *Client) doRaw(ctx context.Context, method, path string, q url.Values, body []byte, headers map[string]string, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return errors.Wrap(errors.CodeNetworkError, "building request", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(errors.CodeNetworkError, err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(errors.CodeNetworkError, err, "reading %s response", path)
	}
	if resp.StatusCode >= 400 {
		return errors.Newf(errors.CodeAPIError, "%s %s: %d %s",
			method, path, resp.StatusCode, truncateBody(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(errors.CodeParseError, err, "decoding %s response", path)
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return fmt.Sprintf("%s... (%d bytes)", b[:max], len(b))
	}
	return string(b)
}
