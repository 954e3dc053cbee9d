package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// hmacHex computes the hex-encoded HMAC-SHA256 of message under key.
func hmacHex(key []byte, message []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyHMACHex compares a hex signature in constant time.
func verifyHMACHex(key []byte, message []byte, signature string) bool {
	if len(key) == 0 || signature == "" {
		return false
	}
	expected := hmacHex(key, message)
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// verifyTimestampedSignature checks the "t=<unix>,v1=<hex>" header scheme
// used by the international card provider: the v1 value is the HMAC of
// "<t>.<payload>".
func verifyTimestampedSignature(key []byte, payload []byte, header string) bool {
	var timestamp, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			v1 = v
		}
	}
	if timestamp == "" || v1 == "" {
		return false
	}
	signed := fmt.Sprintf("%s.%s", timestamp, payload)
	return verifyHMACHex(key, []byte(signed), v1)
}
