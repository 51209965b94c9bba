package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/errors"
)

// Header names for authenticated CLOB requests.
const (
	HeaderAddress    = "POLY_ADDRESS"
	HeaderAPIKey     = "POLY_API_KEY"
	HeaderTimestamp  = "POLY_TIMESTAMP"
	HeaderPassphrase = "POLY_PASSPHRASE"
	HeaderSignature  = "POLY_SIGNATURE"
)

// SignHMAC computes the request signature: HMAC-SHA256 over
// timestamp+method+path+body, keyed with the base64url-decoded secret,
// result base64url-encoded. The path excludes query parameters.
func SignHMAC(secret, timestamp, method, path, body string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + method + path + body))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeSecret accepts url-safe base64 first, then standard base64.
// Some issuers pad, some do not, so both alphabets are tried.
func decodeSecret(secret string) ([]byte, error) {
	if key, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, errors.Wrap(errors.CodeAuthError, "api secret is not base64", err)
	}
	return key, nil
}

// L2Headers builds the five headers every credentialed endpoint wants.
func L2Headers(address common.Address, creds params.Credentials, timestamp int64, method, path, body string) (map[string]string, error) {
	if !creds.Complete() {
		return nil, errors.New(errors.CodeAuthError, "api credentials not configured")
	}
	ts := strconv.FormatInt(timestamp, 10)
	sig, err := SignHMAC(creds.Secret, ts, method, path, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderAddress:    address.Hex(),
		HeaderAPIKey:     creds.APIKey,
		HeaderTimestamp:  ts,
		HeaderPassphrase: creds.Passphrase,
		HeaderSignature:  sig,
	}, nil
}
