package rtms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Credentials identify this application to the streaming service.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Sign returns the hex HMAC-SHA256 of message keyed by secret. The webhook
// URL validation challenge uses it directly.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Signature derives the handshake credential for one leg. It is recomputed
// on every handshake and never stored.
func (c Credentials) Signature(meetingID, streamID string) string {
	return Sign(c.ClientSecret, strings.Join([]string{c.ClientID, meetingID, streamID}, ","))
}
