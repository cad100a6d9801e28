package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/pulse/internal/auth"
)

func TestIssueToken(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "pulse.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  type: "memory"
auth:
  app_id: "pulse-mobile"
  jwt_secret: "token-test-secret"
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, issueToken([]string{"-config", cfgPath, "-sub", "admin-1", "-ttl", "1h"}, &out))

	tokens, err := auth.NewTokenManager("token-test-secret")
	require.NoError(t, err)
	claims, err := tokens.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "admin-1", claims.Subject)
	require.Equal(t, "admin", claims.Role)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssueToken_RequiresSubject(t *testing.T) {
	var out bytes.Buffer
	err := issueToken([]string{"-role", "admin"}, &out)
	require.Error(t, err)
	require.Empty(t, out.String())
}
