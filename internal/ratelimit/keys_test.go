package ratelimit

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIngestionKey(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantKey string
		wantOK  bool
	}{
		{name: "first device wins", body: `[{"deviceId":"device-aaaa"},{"deviceId":"device-bbbb"}]`, wantKey: "device:device-aaaa", wantOK: true},
		{name: "missing device falls back to address", body: `[{"eventType":"app_opened"}]`, wantKey: "ip:203.0.113.9", wantOK: true},
		{name: "non-string device falls back", body: `[{"deviceId":12345678901}]`, wantKey: "ip:203.0.113.9", wantOK: true},
		{name: "blank device falls back", body: `[{"deviceId":"   "}]`, wantKey: "ip:203.0.113.9", wantOK: true},
		{name: "non-object first item falls back", body: `["nope"]`, wantKey: "ip:203.0.113.9", wantOK: true},
		{name: "empty array is not limited", body: `[]`},
		{name: "object is not limited", body: `{"deviceId":"device-aaaa"}`},
		{name: "garbage is not limited", body: `not json`},
		{name: "null is not limited", body: `null`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, ok := IngestionKey([]byte(tc.body), "203.0.113.9")
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.wantKey, key)
		})
	}
}

func TestGeneralKey(t *testing.T) {
	tokenKey := GeneralKey("abc.def.ghi", "user-1", "10.0.0.1")
	require.True(t, strings.HasPrefix(tokenKey, "token:"))
	require.NotContains(t, tokenKey, "abc.def.ghi")
	require.Len(t, tokenKey, len("token:")+64)
	require.Equal(t, tokenKey, GeneralKey("abc.def.ghi", "", "10.0.0.2"))

	require.Equal(t, "principal:user-1", GeneralKey("", "user-1", "10.0.0.1"))
	require.Equal(t, "ip:10.0.0.1", GeneralKey("", "", "10.0.0.1"))
}

func TestNetworkAddress(t *testing.T) {
	r := httptest.NewRequest("GET", "/analytics/overview", nil)
	r.RemoteAddr = "192.0.2.10:5123"
	require.Equal(t, "192.0.2.10", NetworkAddress(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 192.0.2.10")
	require.Equal(t, "198.51.100.7", NetworkAddress(r))
}
