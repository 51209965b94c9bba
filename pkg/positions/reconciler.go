// Package positions rebuilds a trader's holdings and PnL from the
// trade-history feed. The exchange has no authoritative position
// endpoint, so this fold is the source of truth.
package positions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// flatEpsilon treats dust below a ten-thousandth of a share as flat.
var flatEpsilon = decimal.New(1, -4)

// Trade is one fill from the history feed. Numeric fields stay as
// decimal strings because that is how the feed delivers them; parsing
// failures degrade to zero contribution instead of aborting the batch.
type Trade struct {
	Asset string
	Side  string
	Price string
	Size  string
}

// Position is the reconciled state for one asset.
type Position struct {
	Asset         string
	NetSize       decimal.Decimal
	AvgPrice      decimal.Decimal
	TotalBought   decimal.Decimal
	TotalSold     decimal.Decimal
	RealizedPnl   decimal.Decimal
	UnrealizedPnl decimal.Decimal
}

// PriceOracle supplies a current price per asset for unrealized PnL.
type PriceOracle interface {
	Price(ctx context.Context, asset string) (decimal.Decimal, error)
}

// accumulator is the per-asset running state of one fold pass.
type accumulator struct {
	totalBought   decimal.Decimal
	totalSold     decimal.Decimal
	totalCost     decimal.Decimal
	totalProceeds decimal.Decimal
}

// Reconciler folds trades into positions. One instance is safe for
// concurrent Reconcile calls; each call owns all of its state.
type Reconciler struct {
	log           *zap.Logger
	oracleWorkers int
	lookupTimeout time.Duration
}

func NewReconciler(log *zap.Logger) *Reconciler {
	return &Reconciler{log: log, oracleWorkers: 8, lookupTimeout: 5 * time.Second}
}

// Reconcile folds trades per asset, prunes flat positions, and, when
// an oracle is supplied, fills in unrealized PnL for long positions.
// Oracle failures zero that asset's unrealized PnL and never abort the
// pass. Output is sorted by asset id.
func (r *Reconciler) Reconcile(ctx context.Context, trades []Trade, oracle PriceOracle) ([]Position, error) {
	accs := make(map[string]*accumulator)
	for i, t := range trades {
		if t.Asset == "" {
			r.log.Warn("trade without asset id skipped", zap.Int("index", i))
			continue
		}
		acc, ok := accs[t.Asset]
		if !ok {
			acc = &accumulator{}
			accs[t.Asset] = acc
		}

		price := r.parseField(t.Asset, "price", t.Price)
		size := r.parseField(t.Asset, "size", t.Size)
		notional := price.Mul(size)

		switch strings.ToUpper(t.Side) {
		case "BUY", "0":
			acc.totalBought = acc.totalBought.Add(size)
			acc.totalCost = acc.totalCost.Add(notional)
		case "SELL", "1":
			acc.totalSold = acc.totalSold.Add(size)
			acc.totalProceeds = acc.totalProceeds.Add(notional)
		default:
			r.log.Warn("trade with unknown side skipped",
				zap.String("asset", t.Asset), zap.String("side", t.Side))
		}
	}

	positions := make([]Position, 0, len(accs))
	for asset, acc := range accs {
		netSize := acc.totalBought.Sub(acc.totalSold)
		if netSize.Abs().LessThan(flatEpsilon) {
			continue
		}

		// Cost basis from buys only. A short opened with no prior
		// buys therefore carries a zero average price.
		avg := decimal.Zero
		if acc.totalBought.IsPositive() {
			avg = acc.totalCost.Div(acc.totalBought)
		}
		realized := acc.totalProceeds.Sub(acc.totalSold.Mul(avg))

		positions = append(positions, Position{
			Asset:       asset,
			NetSize:     netSize,
			AvgPrice:    avg,
			TotalBought: acc.totalBought,
			TotalSold:   acc.totalSold,
			RealizedPnl: realized,
		})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Asset < positions[j].Asset })

	if oracle != nil {
		r.markUnrealized(ctx, positions, oracle)
	}
	return positions, nil
}

// markUnrealized fans out oracle lookups for long positions with
// bounded concurrency. Each lookup has its own timeout and fails soft.
func (r *Reconciler) markUnrealized(ctx context.Context, positions []Position, oracle PriceOracle) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.oracleWorkers)

	for i := range positions {
		if !positions[i].NetSize.IsPositive() {
			continue
		}
		i := i
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, r.lookupTimeout)
			defer cancel()

			current, err := oracle.Price(lctx, positions[i].Asset)
			if err != nil {
				r.log.Warn("oracle lookup failed, unrealized pnl zeroed",
					zap.String("asset", positions[i].Asset), zap.Error(err))
				return nil
			}
			unrealized := current.Sub(positions[i].AvgPrice).Mul(positions[i].NetSize)

			mu.Lock()
			positions[i].UnrealizedPnl = unrealized
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers fail soft, never return errors
}

func (r *Reconciler) parseField(asset, name, raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		r.log.Warn("malformed trade field zeroed",
			zap.String("asset", asset), zap.String("field", name), zap.String("value", raw))
		return decimal.Zero
	}
	return v
}
