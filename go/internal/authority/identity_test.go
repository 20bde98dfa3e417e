package authority

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "identity.json")
	store := NewIdentityStore(path)

	assert.Empty(t, store.DisplayName(), "no identity stored yet")

	require.NoError(t, store.SetDisplayName("alice"))
	assert.Equal(t, "alice", store.DisplayName())

	// A fresh store over the same file sees the persisted name.
	assert.Equal(t, "alice", NewIdentityStore(path).DisplayName())

	require.NoError(t, store.SetDisplayName("bob"))
	assert.Equal(t, "bob", store.DisplayName())
}
