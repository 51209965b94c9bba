// Package auth builds the two credential layers the CLOB uses: the
// one-shot signed challenge that mints an API key, and the per-request
// HMAC headers derived from it.
package auth

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polyclob/polyclob/pkg/crypto"
	"github.com/polyclob/polyclob/pkg/errors"
	"github.com/polyclob/polyclob/pkg/util"
)

// KeyRequest is the signed challenge posted to the key-issuance
// endpoint. The server verifies the signature against the typed
// message rebuilt from the other three fields.
type KeyRequest struct {
	Address   string `json:"address"`
	Timestamp string `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// RequestBuilder signs ClobAuth challenges for one chain.
type RequestBuilder struct {
	signer *crypto.AuthSigner
	clock  util.Clock
	rand   util.Rand
}

func NewRequestBuilder(chainID int64) *RequestBuilder {
	return NewRequestBuilderWith(chainID, util.RealClock{}, util.CryptoRand{})
}

func NewRequestBuilderWith(chainID int64, clock util.Clock, rand util.Rand) *RequestBuilder {
	return &RequestBuilder{signer: crypto.NewAuthSigner(chainID), clock: clock, rand: rand}
}

// Build signs a fresh challenge for ctx's address. The nonce mixes the
// timestamp with random bits so two challenges in the same second stay
// distinct.
func (b *RequestBuilder) Build(ctx crypto.SigningContext) (*KeyRequest, error) {
	timestamp := b.clock.Now().Unix()

	r, err := b.rand.Uint64()
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "drawing auth nonce", err)
	}
	nonce := uint64(timestamp) ^ r

	msg := &crypto.TypedAuth{
		Address:   ctx.Address(),
		Timestamp: timestamp,
		Nonce:     nonce,
	}
	sig, err := b.signer.Sign(ctx, msg)
	if err != nil {
		return nil, err
	}

	return &KeyRequest{
		Address:   ctx.Address().Hex(),
		Timestamp: strconv.FormatInt(timestamp, 10),
		Nonce:     strconv.FormatUint(nonce, 10),
		Signature: "0x" + common.Bytes2Hex(sig),
	}, nil
}
