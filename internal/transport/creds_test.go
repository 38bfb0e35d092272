package transport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCredentialStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth", "creds.bin")
	store := NewFileCredentialStore(path)
	ctx := context.Background()

	blob, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, blob)

	require.NoError(t, store.Save(ctx, []byte("first")))
	require.NoError(t, store.Save(ctx, []byte("second")))

	blob, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), blob)

	require.NoError(t, store.Clear(ctx))
	blob, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, blob)

	// Clearing twice is fine.
	require.NoError(t, store.Clear(ctx))
}
