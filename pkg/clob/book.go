package clob

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/polyclob/polyclob/pkg/order"
)

// BookSummary condenses an order book snapshot to its top of book.
// Spread is empty when either side of the book is.
type BookSummary struct {
	BestBid  string `json:"best_bid"`
	BestAsk  string `json:"best_ask"`
	Spread   string `json:"spread"`
	BidDepth int    `json:"bid_depth"`
	AskDepth int    `json:"ask_depth"`
}

// BestBid returns the top bid level, or false on an empty side.
func (ob *OrderBook) BestBid() (BookEntry, bool) {
	if len(ob.Bids) == 0 {
		return BookEntry{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the top ask level, or false on an empty side.
func (ob *OrderBook) BestAsk() (BookEntry, bool) {
	if len(ob.Asks) == 0 {
		return BookEntry{}, false
	}
	return ob.Asks[0], true
}

// Summary derives top-of-book prices, the spread, and the level counts.
// Unparseable prices leave the spread empty rather than failing.
func (ob *OrderBook) Summary() BookSummary {
	s := BookSummary{BidDepth: len(ob.Bids), AskDepth: len(ob.Asks)}
	if bid, ok := ob.BestBid(); ok {
		s.BestBid = bid.Price
	}
	if ask, ok := ob.BestAsk(); ok {
		s.BestAsk = ask.Price
	}
	if s.BestBid == "" || s.BestAsk == "" {
		return s
	}
	bid, errB := decimal.NewFromString(s.BestBid)
	ask, errA := decimal.NewFromString(s.BestAsk)
	if errB == nil && errA == nil {
		s.Spread = ask.Sub(bid).String()
	}
	return s
}

// BestPrice fetches the book and returns the level an incoming order on
// the given side would cross: asks for a buy, bids for a sell. An empty
// side returns zero values with no error.
func (c *Client) BestPrice(ctx context.Context, tokenID string, side order.Side) (price, size string, err error) {
	ob, err := c.OrderBook(ctx, tokenID)
	if err != nil {
		return "", "", err
	}
	var entry BookEntry
	var ok bool
	if side == order.Buy {
		entry, ok = ob.BestAsk()
	} else {
		entry, ok = ob.BestBid()
	}
	if !ok {
		return "", "", nil
	}
	return entry.Price, entry.Size, nil
}

// BookSummary fetches the book for a token and condenses it.
func (c *Client) BookSummary(ctx context.Context, tokenID string) (BookSummary, error) {
	ob, err := c.OrderBook(ctx, tokenID)
	if err != nil {
		return BookSummary{}, err
	}
	return ob.Summary(), nil
}

// OrderScoring reports which of the given orders currently count toward
// liquidity rewards.
func (c *Client) OrderScoring(ctx context.Context, orderIDs []string) (map[string]bool, error) {
	if len(orderIDs) == 0 {
		return map[string]bool{}, nil
	}
	q := url.Values{"order_ids": {strings.Join(orderIDs, ",")}}
	var out struct {
		Scoring map[string]bool `json:"scoring"`
	}
	if err := c.get(ctx, "/order-scoring", q, &out); err != nil {
		return nil, err
	}
	return out.Scoring, nil
}
