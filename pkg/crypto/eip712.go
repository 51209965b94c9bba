package crypto

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/polyclob/polyclob/pkg/errors"
)

// EIP-712 domain constants for the two message schemas the CLOB
// accepts: Order (submitted for on-chain settlement, verified by the
// exchange contract) and ClobAuth (an off-chain authentication
// challenge, bound to the zero address).
const (
	OrderDomainName = "Polymarket CTF Exchange"
	AuthDomainName  = "ClobAuthDomain"
	domainVersion   = "1"
)

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "salt", Type: "uint256"},
		{Name: "maker", Type: "address"},
		{Name: "signer", Type: "address"},
		{Name: "taker", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "makerAmount", Type: "uint256"},
		{Name: "takerAmount", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "feeRateBps", Type: "uint256"},
		{Name: "side", Type: "uint8"},
		{Name: "signatureType", Type: "uint8"},
	},
}

var authTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"ClobAuth": []apitypes.Type{
		{Name: "address", Type: "address"},
		{Name: "timestamp", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

// TypedOrder is the Order message in its typed form, field order as
// declared in the schema. All uint256 fields are big.Ints; side and
// signatureType are single bytes widened to a 32-byte word by the
// encoder.
type TypedOrder struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

// TypedAuth is the ClobAuth challenge message.
type TypedAuth struct {
	Address   common.Address
	Timestamp int64
	Nonce     uint64
}

// OrderSigner computes EIP-712 digests for a fixed order-signing
// domain. The domain separator is a pure function of the domain, so
// one OrderSigner per (chain, exchange) pair is built once and reused.
type OrderSigner struct {
	chainID  int64
	exchange common.Address
}

func NewOrderSigner(chainID int64, exchange common.Address) *OrderSigner {
	return &OrderSigner{chainID: chainID, exchange: exchange}
}

func (s *OrderSigner) typedData(o *TypedOrder) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              OrderDomainName,
			Version:           domainVersion,
			ChainId:           math.NewHexOrDecimal256(s.chainID),
			VerifyingContract: s.exchange.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          o.Salt.String(),
			"maker":         o.Maker.Hex(),
			"signer":        o.Signer.Hex(),
			"taker":         o.Taker.Hex(),
			"tokenId":       o.TokenID.String(),
			"makerAmount":   o.MakerAmount.String(),
			"takerAmount":   o.TakerAmount.String(),
			"expiration":    o.Expiration.String(),
			"nonce":         o.Nonce.String(),
			"feeRateBps":    o.FeeRateBps.String(),
			"side":          strconv.Itoa(int(o.Side)),
			"signatureType": strconv.Itoa(int(o.SignatureType)),
		},
	}
}

// DomainSeparator returns the 32-byte hash binding signatures to this
// chain and exchange contract.
func (s *OrderSigner) DomainSeparator() ([]byte, error) {
	td := s.typedData(&TypedOrder{
		Salt: big.NewInt(0), TokenID: big.NewInt(0), MakerAmount: big.NewInt(0),
		TakerAmount: big.NewInt(0), Expiration: big.NewInt(0), Nonce: big.NewInt(0),
		FeeRateBps: big.NewInt(0),
	})
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "failed to hash domain", err)
	}
	return sep, nil
}

// StructHash returns the hash of the order's encoded fields under the
// Order schema.
func (s *OrderSigner) StructHash(o *TypedOrder) ([]byte, error) {
	td := s.typedData(o)
	h, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "failed to hash order", err)
	}
	return h, nil
}

// Digest computes the final 32-byte value to sign:
// keccak256(0x19 || 0x01 || domainSeparator || structHash).
func (s *OrderSigner) Digest(o *TypedOrder) ([]byte, error) {
	return typedDataDigest(s.typedData(o))
}

// Sign computes the order digest and signs it with the given context.
// The returned signature uses the 27/28 V convention the exchange
// expects. Signing failures are surfaced as-is; they are not
// transient and must not be retried here.
func (s *OrderSigner) Sign(ctx SigningContext, o *TypedOrder) ([]byte, error) {
	digest, err := s.Digest(o)
	if err != nil {
		return nil, err
	}
	sig, err := ctx.SignDigest(digest)
	if err != nil {
		return nil, err
	}
	return normalizeV(sig), nil
}

// RecoverOrderSigner recovers the address that signed an order.
func (s *OrderSigner) RecoverOrderSigner(o *TypedOrder, signature []byte) (common.Address, error) {
	digest, err := s.Digest(o)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest, signature)
}

// AuthSigner computes EIP-712 digests for the ClobAuth challenge. The
// message is never submitted on-chain, so the verifying contract is a
// fixed null-address placeholder.
type AuthSigner struct {
	chainID int64
}

func NewAuthSigner(chainID int64) *AuthSigner {
	return &AuthSigner{chainID: chainID}
}

func (s *AuthSigner) typedData(a *TypedAuth) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       authTypes,
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:              AuthDomainName,
			Version:           domainVersion,
			ChainId:           math.NewHexOrDecimal256(s.chainID),
			VerifyingContract: (common.Address{}).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"address":   a.Address.Hex(),
			"timestamp": strconv.FormatInt(a.Timestamp, 10),
			"nonce":     strconv.FormatUint(a.Nonce, 10),
		},
	}
}

func (s *AuthSigner) Digest(a *TypedAuth) ([]byte, error) {
	return typedDataDigest(s.typedData(a))
}

func (s *AuthSigner) Sign(ctx SigningContext, a *TypedAuth) ([]byte, error) {
	digest, err := s.Digest(a)
	if err != nil {
		return nil, err
	}
	sig, err := ctx.SignDigest(digest)
	if err != nil {
		return nil, err
	}
	return normalizeV(sig), nil
}

// typedDataDigest computes keccak256(0x19 || 0x01 || domainSeparator
// || structHash) for any typed-data payload.
func typedDataDigest(td apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "failed to hash domain", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "failed to hash message", err)
	}

	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(structHash)))
	digest := crypto.Keccak256Hash(raw)
	return digest.Bytes(), nil
}

// normalizeV shifts V from {0, 1} to the {27, 28} convention.
func normalizeV(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) == 65 && out[64] < 27 {
		out[64] += 27
	}
	return out
}
