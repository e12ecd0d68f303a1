package credentials

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ReadsScopedEnvVars(t *testing.T) {
	os.Setenv("OPERATOR1_EXCHANGE_1_API_KEY", "key-123")
	os.Setenv("OPERATOR1_EXCHANGE_1_API_SECRET", "secret-456")
	defer os.Unsetenv("OPERATOR1_EXCHANGE_1_API_KEY")
	defer os.Unsetenv("OPERATOR1_EXCHANGE_1_API_SECRET")

	r := New("OPERATOR1")
	key, secret, err := r.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "key-123", key)
	assert.Equal(t, "secret-456", secret)
}

func TestResolve_UnsetVarsReturnEmptyStringsNotError(t *testing.T) {
	r := New("NOBODY")
	key, secret, err := r.Resolve(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, secret)
}

func TestResolve_EmptyAdminIdentityOmitsPrefix(t *testing.T) {
	os.Setenv("EXCHANGE_2_API_KEY", "unscoped-key")
	defer os.Unsetenv("EXCHANGE_2_API_KEY")

	r := New("")
	key, _, err := r.Resolve(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "unscoped-key", key)
}
