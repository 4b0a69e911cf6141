package state

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"farmmarket/storage"
)

func TestEnsureStateVersionStampsEmptyStore(t *testing.T) {
	mgr := newTestManager(t)
	_, present, err := mgr.StateVersion()
	require.NoError(t, err)
	require.False(t, present)

	require.NoError(t, mgr.EnsureStateVersion())
	version, present, err := mgr.StateVersion()
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, SchemaVersion, version)

	require.NoError(t, mgr.EnsureStateVersion())
}

func TestEnsureStateVersionRejectsMismatch(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], SchemaVersion+1)
	require.NoError(t, db.Put(schemaVersionKey, buf[:]))

	err := NewManager(db).EnsureStateVersion()
	require.ErrorIs(t, err, ErrStateVersionMismatch)
}
