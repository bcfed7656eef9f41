package processor

import (
	"path/filepath"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/stretchr/testify/require"
)

func testCursorStore(t *testing.T, store CursorStore) {
	_, ok, err := store.Cursor("demo", "chain-a-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveCursor("demo", "chain-a-1", ibc.NewHeight(1, 42)))
	require.NoError(t, store.SaveCursor("demo", "chain-b-1", ibc.NewHeight(1, 7)))
	require.NoError(t, store.SaveCursor("other", "chain-a-1", ibc.NewHeight(1, 3)))

	h, ok, err := store.Cursor("demo", "chain-a-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ibc.NewHeight(1, 42), h)

	require.NoError(t, store.SaveCursor("demo", "chain-a-1", ibc.NewHeight(1, 43)))
	h, _, err = store.Cursor("demo", "chain-a-1")
	require.NoError(t, err)
	require.Equal(t, ibc.NewHeight(1, 43), h)

	h, _, err = store.Cursor("other", "chain-a-1")
	require.NoError(t, err)
	require.Equal(t, ibc.NewHeight(1, 3), h)
}

func TestMemoryCursorStore(t *testing.T) {
	testCursorStore(t, NewMemoryCursorStore())
}

func TestBoltCursorStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")
	store, err := OpenBoltCursorStore(path)
	require.NoError(t, err)
	testCursorStore(t, store)
	require.NoError(t, store.Close())

	// cursors survive a restart
	store, err = OpenBoltCursorStore(path)
	require.NoError(t, err)
	defer store.Close()
	h, ok, err := store.Cursor("demo", "chain-b-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ibc.NewHeight(1, 7), h)
}
