package clob

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/polyclob/polyclob/params"
)

// GammaMarket is a market as the discovery API describes it. Outcomes
// and prices arrive as JSON-encoded strings inside strings.
type GammaMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	ConditionID   string   `json:"conditionId"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	Outcomes      string   `json:"outcomes"`
	OutcomePrices string   `json:"outcomePrices"`
	Volume        string   `json:"volume"`
	Liquidity     string   `json:"liquidity"`
	Active        bool     `json:"active"`
	Closed        bool     `json:"closed"`
	EndDate       string   `json:"endDate"`
	ClobTokenIDs  string   `json:"clobTokenIds"`
	BestBid       *float64 `json:"bestBid"`
	BestAsk       *float64 `json:"bestAsk"`
}

type GammaEvent struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Slug    string        `json:"slug"`
	Active  bool          `json:"active"`
	Closed  bool          `json:"closed"`
	Markets []GammaMarket `json:"markets"`
}

type GammaTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

type gammaSearchResponse struct {
	Events []GammaEvent `json:"events"`
	Tags   []GammaTag   `json:"tags"`
}

// SearchResult flattens a discovery query down to matching markets.
type SearchResult struct {
	Query   string
	HasMore bool
	Markets []GammaMarket
	Tags    []GammaTag
}

// GammaClient queries the public market-discovery API. No
// authentication, separate host from the order book.
type GammaClient struct {
	http    *http.Client
	baseURL string
}

func NewGammaClient(cfg params.Config) *GammaClient {
	return &GammaClient{
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL: strings.TrimRight(cfg.GammaURL, "/"),
	}
}

const maxSearchLimit = 25

// Search runs a free-text market search, flattening event results into
// their markets. activeOnly drops closed markets client-side as well
// as in the query.
func (g *GammaClient) Search(ctx context.Context, query string, limit int, activeOnly bool) (*SearchResult, error) {
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	q := url.Values{
		"q":              {query},
		"limit_per_type": {strconv.Itoa(limit)},
	}
	if activeOnly {
		q.Set("events_status", "active")
	}

	var resp gammaSearchResponse
	c := &Client{http: g.http, baseURL: g.baseURL}
	if err := c.get(ctx, "/public-search", q, &resp); err != nil {
		return nil, err
	}

	var markets []GammaMarket
	for _, ev := range resp.Events {
		for _, m := range ev.Markets {
			if activeOnly && (!m.Active || m.Closed) {
				continue
			}
			markets = append(markets, m)
		}
	}
	hasMore := len(markets) > limit
	if hasMore {
		markets = markets[:limit]
	}
	return &SearchResult{Query: query, HasMore: hasMore, Markets: markets, Tags: resp.Tags}, nil
}
