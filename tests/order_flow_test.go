package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/auth"
	"github.com/polyclob/polyclob/pkg/clob"
	"github.com/polyclob/polyclob/pkg/crypto"
	"github.com/polyclob/polyclob/pkg/order"
	"github.com/polyclob/polyclob/pkg/positions"
	"github.com/polyclob/polyclob/pkg/storage"
)

const (
	tokenID    = "71321045679252212594626385532706912750332728571942532289631379312455583992563"
	testSecret = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
)

// fakeExchange is an in-memory stand-in for the CLOB API: it verifies
// order signatures exactly as the real matching engine would, records
// accepted orders as fills, and serves them back as trade history.
type fakeExchange struct {
	t       *testing.T
	network params.Network
	fills   []clob.Trade
}

func (f *fakeExchange) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/api-key", func(w http.ResponseWriter, r *http.Request) {
		var req auth.KeyRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

		// Verify the challenge signature before issuing credentials.
		n, err := parseUint(req.Nonce)
		require.NoError(f.t, err)
		ts, err := parseInt(req.Timestamp)
		require.NoError(f.t, err)
		digest, err := crypto.NewAuthSigner(f.network.ChainID).Digest(&crypto.TypedAuth{
			Address:   common.HexToAddress(req.Address),
			Timestamp: ts,
			Nonce:     n,
		})
		require.NoError(f.t, err)
		recovered, err := crypto.RecoverAddress(digest, common.FromHex(req.Signature))
		require.NoError(f.t, err)
		require.Equal(f.t, common.HexToAddress(req.Address), recovered)

		writeJSON(f.t, w, map[string]string{
			"apiKey": "issued-key", "secret": testSecret, "passphrase": "pw",
		})
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(f.t, r.Header.Get("POLY_SIGNATURE"))

		var payload struct {
			Order order.SignedOrder `json:"order"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))

		typed, err := payload.Order.Typed()
		require.NoError(f.t, err)
		signer := crypto.NewOrderSigner(f.network.ChainID, f.network.Exchange(false))
		recovered, err := signer.RecoverOrderSigner(typed, common.FromHex(payload.Order.Signature))
		require.NoError(f.t, err)
		if recovered != typed.Maker {
			writeJSON(f.t, w, clob.OrderResponse{Success: false, ErrorMsg: "invalid signature"})
			return
		}

		// Full fill at the limit price.
		price := decimal.RequireFromString(payload.Order.MakerAmount).
			Div(decimal.RequireFromString(payload.Order.TakerAmount))
		size := decimal.RequireFromString(payload.Order.TakerAmount).Shift(-6)
		f.fills = append(f.fills, clob.Trade{
			ID:      "fill-1",
			AssetID: payload.Order.TokenID,
			Side:    "BUY",
			Price:   price.String(),
			Size:    size.String(),
			Status:  "CONFIRMED",
		})
		writeJSON(f.t, w, clob.OrderResponse{Success: true, OrderID: "0xobid", Status: "matched"})
	})
	mux.HandleFunc("/trades", func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(f.t, r.Header.Get("POLY_SIGNATURE"))
		writeJSON(f.t, w, clob.TradesResponse{Data: f.fills, NextCursor: "LTE="})
	})
	return mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }
func parseInt(s string) (int64, error)   { return strconv.ParseInt(s, 10, 64) }

// TestOrderLifecycle drives the full client path against the fake
// exchange: mint credentials, sign and post an order, pull the fill
// history, reconcile it into a position, and cache it locally.
func TestOrderLifecycle(t *testing.T) {
	network := params.Polygon()
	fake := &fakeExchange{t: t, network: network}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	signer, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := params.Default()
	cfg.ClobURL = srv.URL
	client := clob.New(cfg, signer, zap.NewNop())

	ctx := context.Background()

	// Credentials are required before any account endpoint works.
	_, err = client.Trades(ctx, clob.TradeQuery{})
	require.Error(t, err)

	creds, err := client.CreateAPIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "issued-key", creds.APIKey)

	// Build, sign, and submit.
	builder := order.NewBuilder(network)
	signed, err := builder.Build(signer, order.Params{
		TokenID: tokenID,
		Side:    order.Buy,
		Price:   decimal.RequireFromString("0.45"),
		Size:    decimal.RequireFromString("100"),
	})
	require.NoError(t, err)

	resp, err := client.PostOrder(ctx, signed, clob.OrderTypeGTC)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "0xobid", resp.OrderID)

	// History now shows the fill; reconcile it.
	trades, err := client.Trades(ctx, clob.TradeQuery{})
	require.NoError(t, err)
	require.Len(t, trades.Data, 1)

	folded := trades.ForReconciliation()
	recon := positions.NewReconciler(zap.NewNop())
	pos, err := recon.Reconcile(ctx, folded, nil)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, tokenID, pos[0].Asset)
	assert.True(t, pos[0].NetSize.Equal(decimal.RequireFromString("100")), "net %s", pos[0].NetSize)
	assert.True(t, pos[0].AvgPrice.Equal(decimal.RequireFromString("0.45")), "avg %s", pos[0].AvgPrice)

	// Cache credentials and fills for offline reconciliation.
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveCredentials(signer.Address(), creds))
	require.NoError(t, store.SaveTrades(signer.Address(), folded))

	cached, ok, err := store.Trades(signer.Address())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, folded, cached)
}
