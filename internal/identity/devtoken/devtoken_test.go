package devtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	secret := []byte("dev-only-secret")

	token, err := Issue(secret, "operator", time.Minute)
	require.NoError(t, err)

	subject, err := Verify(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := Issue([]byte("secret-a"), "operator", time.Minute)
	require.NoError(t, err)

	_, err = Verify([]byte("secret-b"), token)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	secret := []byte("dev-only-secret")
	token, err := Issue(secret, "operator", -time.Minute)
	require.NoError(t, err)

	_, err = Verify(secret, token)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := Verify([]byte("secret"), "not-a-token")
	require.Error(t, err)
}
