package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelDBBatchPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)

	require.NoError(t, db1.Put([]byte("stale"), []byte("x")))
	batch := NewBatch()
	batch.Put([]byte("key"), []byte("value"))
	batch.Delete([]byte("stale"))
	require.NoError(t, db1.Write(batch))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	_, err = db2.Get([]byte("stale"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBWriteAndDelete(t *testing.T) {
	db := NewMemDB()
	batch := NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	require.NoError(t, db.Write(batch))
	require.Equal(t, 2, db.Len())

	ok, err := db.Has([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("a")))
	_, err = db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Write(nil))
	require.Equal(t, 1, db.Len())
}
