// Package order turns price/size intents into signed exchange orders.
// Amounts are scaled to the 6-decimal fixed point both the collateral
// token and the outcome tokens use on chain.
package order

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/crypto"
	"github.com/polyclob/polyclob/pkg/errors"
	"github.com/polyclob/polyclob/pkg/util"
)

// Side of an order from the maker's point of view.
type Side uint8

const (
	Buy  Side = 0
	Sell Side = 1
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// defaultExpirySecs is applied when the caller leaves Expiration zero.
const defaultExpirySecs = 30 * 24 * 60 * 60

// tokenDecimals is shared by collateral and conditional tokens.
var amountScale = decimal.New(1, 6)

var one = decimal.NewFromInt(1)

// Params describe a single order intent. Price is the limit price per
// share in collateral units, open interval (0,1]. Size is the share
// count. Zero Expiration means now plus thirty days; a nil Nonce draws
// a fresh random one.
type Params struct {
	TokenID    string
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	FeeRateBps int64
	Expiration int64
	Nonce      *uint64
	NegRisk    bool
}

// SignedOrder is the wire shape the CLOB accepts. Numeric fields are
// decimal strings except signatureType, which the API wants as a bare
// number, and side, which it wants as a string.
type SignedOrder struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType uint8  `json:"signatureType"`
	Signature     string `json:"signature"`
}

// Typed parses the wire form back into the typed message, for
// signature verification against the original digest.
func (o *SignedOrder) Typed() (*crypto.TypedOrder, error) {
	fields := map[string]string{
		"salt":        o.Salt,
		"tokenId":     o.TokenID,
		"makerAmount": o.MakerAmount,
		"takerAmount": o.TakerAmount,
		"expiration":  o.Expiration,
		"nonce":       o.Nonce,
		"feeRateBps":  o.FeeRateBps,
	}
	nums := make(map[string]*big.Int, len(fields))
	for name, raw := range fields {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, errors.Newf(errors.CodeParseError, "order field %s: %q is not decimal", name, raw)
		}
		nums[name] = v
	}
	side, err := strconv.ParseUint(o.Side, 10, 8)
	if err != nil {
		return nil, errors.Wrapf(errors.CodeParseError, err, "order side %q", o.Side)
	}
	return &crypto.TypedOrder{
		Salt:          nums["salt"],
		Maker:         common.HexToAddress(o.Maker),
		Signer:        common.HexToAddress(o.Signer),
		Taker:         common.HexToAddress(o.Taker),
		TokenID:       nums["tokenId"],
		MakerAmount:   nums["makerAmount"],
		TakerAmount:   nums["takerAmount"],
		Expiration:    nums["expiration"],
		Nonce:         nums["nonce"],
		FeeRateBps:    nums["feeRateBps"],
		Side:          uint8(side),
		SignatureType: o.SignatureType,
	}, nil
}

// Builder assembles and signs orders for one network. Clock and
// entropy are injected so builds are reproducible under test.
type Builder struct {
	network params.Network
	clock   util.Clock
	rand    util.Rand
}

func NewBuilder(network params.Network) *Builder {
	return &Builder{network: network, clock: util.RealClock{}, rand: util.CryptoRand{}}
}

// NewBuilderWith lets tests pin time and entropy.
func NewBuilderWith(network params.Network, clock util.Clock, rand util.Rand) *Builder {
	return &Builder{network: network, clock: clock, rand: rand}
}

// Build validates p, scales the amounts, and signs the order with ctx.
// Validation runs before any key material is touched.
func (b *Builder) Build(ctx crypto.SigningContext, p Params) (*SignedOrder, error) {
	if !p.Price.IsPositive() || p.Price.GreaterThan(one) {
		return nil, errors.Newf(errors.CodeInvalidOrder, "price %s outside (0, 1]", p.Price)
	}
	if !p.Size.IsPositive() {
		return nil, errors.Newf(errors.CodeInvalidOrder, "size %s must be positive", p.Size)
	}
	if p.FeeRateBps < 0 {
		return nil, errors.Newf(errors.CodeInvalidOrder, "negative fee rate %d", p.FeeRateBps)
	}

	tokenID, err := parseTokenID(p.TokenID)
	if err != nil {
		return nil, err
	}

	makerAmount, takerAmount := scaleAmounts(p.Side, p.Price, p.Size)

	salt, err := b.rand.Uint64()
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "drawing salt", err)
	}

	var nonce uint64
	if p.Nonce != nil {
		nonce = *p.Nonce
	} else {
		nonce, err = b.rand.Uint64()
		if err != nil {
			return nil, errors.Wrap(errors.CodeSigningError, "drawing nonce", err)
		}
	}

	expiration := p.Expiration
	if expiration == 0 {
		expiration = b.clock.Now().Unix() + defaultExpirySecs
	}

	maker := ctx.Address()
	typed := &crypto.TypedOrder{
		Salt:          new(big.Int).SetUint64(salt),
		Maker:         maker,
		Signer:        maker,
		Taker:         common.Address{},
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    big.NewInt(expiration),
		Nonce:         new(big.Int).SetUint64(nonce),
		FeeRateBps:    big.NewInt(p.FeeRateBps),
		Side:          uint8(p.Side),
		SignatureType: uint8(ctx.Type()),
	}

	signer := crypto.NewOrderSigner(b.network.ChainID, b.network.Exchange(p.NegRisk))
	sig, err := signer.Sign(ctx, typed)
	if err != nil {
		return nil, err
	}

	return &SignedOrder{
		Salt:          typed.Salt.String(),
		Maker:         maker.Hex(),
		Signer:        maker.Hex(),
		Taker:         common.Address{}.Hex(),
		TokenID:       typed.TokenID.String(),
		MakerAmount:   typed.MakerAmount.String(),
		TakerAmount:   typed.TakerAmount.String(),
		Expiration:    typed.Expiration.String(),
		Nonce:         typed.Nonce.String(),
		FeeRateBps:    typed.FeeRateBps.String(),
		Side:          strconv.Itoa(int(p.Side)),
		SignatureType: typed.SignatureType,
		Signature:     "0x" + common.Bytes2Hex(sig),
	}, nil
}

// scaleAmounts converts price and size to the two uint256 legs.
// Buying pays collateral for shares; selling is the mirror. Fractions
// below 1e-6 truncate toward zero.
func scaleAmounts(side Side, price, size decimal.Decimal) (maker, taker *big.Int) {
	shares := size.Mul(amountScale).Truncate(0).BigInt()
	collateral := price.Mul(size).Mul(amountScale).Truncate(0).BigInt()
	if side == Buy {
		return collateral, shares
	}
	return shares, collateral
}

func parseTokenID(raw string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 || id.BitLen() > 256 {
		return nil, errors.Newf(errors.CodeInvalidToken, "token id %q is not a base-10 uint256", raw)
	}
	return id, nil
}
