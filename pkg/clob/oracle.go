package clob

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polyclob/polyclob/pkg/errors"
	"github.com/polyclob/polyclob/pkg/positions"
)

// MidpointOracle marks positions against the live book midpoint.
type MidpointOracle struct {
	Client *Client
}

var _ positions.PriceOracle = MidpointOracle{}

func (o MidpointOracle) Price(ctx context.Context, asset string) (decimal.Decimal, error) {
	mid, err := o.Client.Midpoint(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	p, err := decimal.NewFromString(mid)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.CodeParseError, err, "midpoint %q for %s", mid, asset)
	}
	return p, nil
}
