package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// signer produces Kraken private-API signatures:
// API-Sign = base64(HMAC-SHA512(base64decode(secret), path || SHA256(nonce || postdata)))
type signer struct {
	apiKey string
	secret []byte

	mu        sync.Mutex
	lastNonce int64
}

func newSigner(apiKey, apiSecret string) (*signer, error) {
	secret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid API secret: %w", err)
	}
	return &signer{apiKey: apiKey, secret: secret}, nil
}

// nonce returns wall-clock milliseconds, forced strictly increasing so two
// requests inside the same millisecond never reuse a value.
func (s *signer) nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := time.Now().UnixMilli()
	if n <= s.lastNonce {
		n = s.lastNonce + 1
	}
	s.lastNonce = n
	return strconv.FormatInt(n, 10)
}

func (s *signer) sign(path, nonce, postdata string) string {
	inner := sha256.Sum256([]byte(nonce + postdata))

	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(path))
	mac.Write(inner[:])

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
