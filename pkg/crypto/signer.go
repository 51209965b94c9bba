package crypto

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polyclob/polyclob/pkg/errors"
)

// SignatureType tags how the exchange verifies a signature.
// Only EOA signing is implemented here; the proxy variants exist so a
// wallet-contract signer can slot in without touching the encoders.
type SignatureType uint8

const (
	SignatureEOA        SignatureType = 0
	SignatureProxy      SignatureType = 1
	SignatureGnosisSafe SignatureType = 2
)

// SigningContext is the capability handed to the order and auth
// encoders: an address plus the ability to sign a 32-byte digest.
// Local keys, hardware wallets, and remote signers all fit behind it.
type SigningContext interface {
	Address() common.Address
	Type() SignatureType
	// SignDigest signs a 32-byte digest and returns a 65-byte [R || S || V]
	// signature with V in {0, 1}.
	SignDigest(digest []byte) ([]byte, error)
}

// Signer holds an in-memory secp256k1 key and implements SigningContext.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateKey creates a Signer with a fresh random key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfigError, "failed to generate key", err)
	}
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key,
// with or without the 0x prefix.
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfigError, "invalid private key", err)
	}
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) Type() SignatureType { return SignatureEOA }

func (s *Signer) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, errors.Newf(errors.CodeSigningError, "digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSigningError, "failed to sign digest", err)
	}
	return sig, nil
}

// RecoverAddress recovers the signer address from a digest and a
// 65-byte signature. Accepts V in {0, 1} or the Ethereum convention
// {27, 28}.
func RecoverAddress(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, errors.Newf(errors.CodeSigningError, "invalid signature length: %d", len(signature))
	}
	if len(digest) != 32 {
		return common.Address{}, errors.Newf(errors.CodeSigningError, "invalid digest length: %d", len(digest))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubBytes, err := crypto.Ecrecover(digest, sig)
	if err != nil {
		return common.Address{}, errors.Wrap(errors.CodeSigningError, "failed to recover public key", err)
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return common.Address{}, errors.Wrap(errors.CodeSigningError, "failed to unmarshal public key", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether signature over digest recovers to
// address.
func VerifySignature(address common.Address, digest []byte, signature []byte) bool {
	recovered, err := RecoverAddress(digest, signature)
	if err != nil {
		return false
	}
	return recovered == address
}
