package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("vault/1"), []byte("a")))
	require.NoError(t, db.Put([]byte("vault/2"), []byte("b")))
	require.NoError(t, db.Put([]byte("rate/ETH"), []byte("c")))

	value, err := db.Get([]byte("vault/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), value)

	ok, err := db.Has([]byte("vault/2"))
	require.NoError(t, err)
	require.True(t, ok)

	var keys []string
	require.NoError(t, db.Iterate([]byte("vault/"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"vault/1", "vault/2"}, keys)

	batch := db.NewBatch()
	batch.Put([]byte("vault/3"), []byte("d"))
	batch.Delete([]byte("vault/1"))
	require.Equal(t, 2, batch.Len())

	// Nothing is visible before Write.
	ok, err = db.Has([]byte("vault/3"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, batch.Write())
	_, err = db.Get([]byte("vault/1"))
	require.ErrorIs(t, err, ErrNotFound)
	value, err = db.Get([]byte("vault/3"))
	require.NoError(t, err)
	require.Equal(t, []byte("d"), value)

	require.NoError(t, db.Delete([]byte("rate/ETH")))
	ok, err = db.Has([]byte("rate/ETH"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("value")
	require.NoError(t, db.Put([]byte("k"), buf))
	buf[0] = 'X'
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}
