package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces the HMAC-SHA256 request signatures Binance expects on
// signed endpoints. Keys are held as []byte so they can be wiped.
type Signer struct {
	apiKey    []byte
	secretKey []byte
}

// NewSigner converts string credentials to []byte for internal handling.
func NewSigner(apiKey, secretKey string) *Signer {
	return &Signer{
		apiKey:    []byte(apiKey),
		secretKey: []byte(secretKey),
	}
}

// APIKey returns the key sent in the X-MBX-APIKEY header.
func (s *Signer) APIKey() string { return string(s.apiKey) }

// Sign computes the hex signature over the encoded query string.
func (s *Signer) Sign(query string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipe(s.apiKey)
	wipe(s.secretKey)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
