package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/httprate"
)

// IngestionKey derives the ingestion-policy key from a raw batch body.
// ok is false when the body is not a non-empty JSON array; validation
// rejects those requests without charging anyone's window. A first item
// without a usable deviceId falls back to the network address.
func IngestionKey(body []byte, networkAddr string) (string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
		return "", false
	}

	var first struct {
		DeviceID interface{} `json:"deviceId"`
	}
	if err := json.Unmarshal(items[0], &first); err == nil {
		if id, ok := first.DeviceID.(string); ok && strings.TrimSpace(id) != "" {
			return "device:" + id, true
		}
	}
	return "ip:" + networkAddr, true
}

// GeneralKey derives the general-policy key: the bearer token (hashed),
// else the principal id, else the network address.
func GeneralKey(token, principalID, networkAddr string) string {
	if token != "" {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:])
	}
	if principalID != "" {
		return "principal:" + principalID
	}
	return "ip:" + networkAddr
}

// NetworkAddress resolves the client address, honouring proxy headers.
func NetworkAddress(r *http.Request) string {
	if ip, err := httprate.KeyByRealIP(r); err == nil && ip != "" {
		return ip
	}
	return r.RemoteAddr
}
