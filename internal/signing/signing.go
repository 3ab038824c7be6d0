package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HTTP header carrying the signature of the request body
const SignatureHeader = "X-Signature"

const signaturePrefix = "sha256="

var ErrMalformedSignature = errors.New("malformed signature")

type Signature []byte

func (s Signature) Hex() string {
	return hex.EncodeToString(s)
}

// Value for the X-Signature header, "sha256=<hex>"
func (s Signature) Header() string {
	return signaturePrefix + s.Hex()
}

func ParseHeader(header string) (Signature, error) {
	encoded, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedSignature, signaturePrefix)
	}

	sum, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	if len(sum) != sha256.Size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, sha256.Size, len(sum))
	}

	return sum, nil
}

// HMAC-SHA256 over the exact bytes sent as the request body
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret []byte) *HMACSigner {
	if len(secret) == 0 {
		panic("logic error: empty hmac secret")
	}
	return &HMACSigner{secret: append([]byte(nil), secret...)}
}

func (s *HMACSigner) Sign(body []byte) Signature {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return mac.Sum(nil)
}

func (s *HMACSigner) Verify(body []byte, header string) bool {
	signature, err := ParseHeader(header)
	if err != nil {
		return false
	}
	return hmac.Equal(s.Sign(body), signature)
}
