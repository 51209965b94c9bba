package clob

import (
	"github.com/polyclob/polyclob/pkg/positions"
)

// Wire types for the CLOB REST surface. Numeric fields stay as the
// decimal strings the API sends; callers parse what they need.

type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

type Rewards struct {
	MinSize        float64 `json:"min_size"`
	MaxSpread      float64 `json:"max_spread"`
	EventStartDate string  `json:"event_start_date"`
	EventEndDate   string  `json:"event_end_date"`
}

type Market struct {
	ConditionID      string  `json:"condition_id"`
	QuestionID       string  `json:"question_id"`
	Tokens           []Token `json:"tokens"`
	Rewards          Rewards `json:"rewards"`
	MinimumOrderSize string  `json:"minimum_order_size"`
	MinimumTickSize  string  `json:"minimum_tick_size"`
	Category         string  `json:"category"`
	EndDateISO       string  `json:"end_date_iso"`
	GameStartTime    string  `json:"game_start_time"`
	Question         string  `json:"question"`
	MarketSlug       string  `json:"market_slug"`
	Active           bool    `json:"active"`
	Closed           bool    `json:"closed"`
	SecondsDelay     int64   `json:"seconds_delay"`
	FPMM             string  `json:"fpmm"`
}

type SimplifiedMarket struct {
	ConditionID string  `json:"condition_id"`
	Tokens      []Token `json:"tokens"`
	Rewards     Rewards `json:"rewards"`
	Active      bool    `json:"active"`
	Closed      bool    `json:"closed"`
}

type MarketsResponse struct {
	Limit      int      `json:"limit"`
	Count      int      `json:"count"`
	NextCursor string   `json:"next_cursor"`
	Data       []Market `json:"data"`
}

type SimplifiedMarketsResponse struct {
	Limit      int                `json:"limit"`
	Count      int                `json:"count"`
	NextCursor string             `json:"next_cursor"`
	Data       []SimplifiedMarket `json:"data"`
}

type BookEntry struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type OrderBook struct {
	Market  string      `json:"market"`
	AssetID string      `json:"asset_id"`
	Bids    []BookEntry `json:"bids"`
	Asks    []BookEntry `json:"asks"`
}

type BalanceAllowance struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// Trade is one fill from the authenticated trade history.
type Trade struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	TxHash    string `json:"transaction_hash"`
}

type TradesResponse struct {
	Data       []Trade `json:"data"`
	NextCursor string  `json:"next_cursor"`
}

// ForReconciliation reshapes the fills for the position fold.
func (tr *TradesResponse) ForReconciliation() []positions.Trade {
	out := make([]positions.Trade, 0, len(tr.Data))
	for _, t := range tr.Data {
		out = append(out, positions.Trade{
			Asset: t.AssetID,
			Side:  t.Side,
			Price: t.Price,
			Size:  t.Size,
		})
	}
	return out
}

type PricePoint struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Owner        string `json:"owner"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Expiration   string `json:"expiration"`
	OrderType    string `json:"order_type"`
	CreatedAt    int64  `json:"created_at"`
}

type OrderResponse struct {
	Success     bool     `json:"success"`
	ErrorMsg    string   `json:"errorMsg"`
	OrderID     string   `json:"orderId"`
	OrderHashes []string `json:"orderHashes"`
	Status      string   `json:"status"`
}

type APIKey struct {
	KeyID             string `json:"key_id"`
	Label             string `json:"label"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	LastUsedAt        string `json:"last_used_at"`
	IsCertWhitelisted bool   `json:"is_cert_whitelisted"`
}

// OrderType selects the time-in-force for a submitted order.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC"
	OrderTypeFOK OrderType = "FOK"
	OrderTypeGTD OrderType = "GTD"
	OrderTypeFAK OrderType = "FAK"
)

// TradeQuery filters the paginated trade-history fetch. Zero values
// mean no filter; MaxPages zero falls back to the configured default.
type TradeQuery struct {
	Market   string
	AssetIDs []string
	Limit    int
	MaxPages int
}
