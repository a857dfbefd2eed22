package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"cdpchain/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestRegisterTokenAndBalances(t *testing.T) {
	mgr, _ := newTestManager(t)

	require.NoError(t, mgr.RegisterToken("par", "Parallel", 18))
	require.Error(t, mgr.RegisterToken("PAR", "Parallel", 18))
	require.Error(t, mgr.RegisterToken("  ", "Blank", 18))

	meta, err := mgr.Token("Par")
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, "PAR", meta.Symbol)
	require.EqualValues(t, 18, meta.Decimals)
	require.True(t, mgr.TokenExists("par"))
	require.False(t, mgr.TokenExists("weth"))

	addr := []byte{0x01, 0x02}
	require.Error(t, mgr.SetBalance(addr, "WETH", big.NewInt(1)))
	require.Error(t, mgr.SetBalance(addr, "PAR", big.NewInt(-1)))
	require.NoError(t, mgr.SetBalance(addr, "PAR", big.NewInt(42)))

	bal, err := mgr.Balance(addr, "par")
	require.NoError(t, err)
	require.Equal(t, "42", bal.String())

	zero, err := mgr.Balance([]byte{0x09}, "PAR")
	require.NoError(t, err)
	require.Zero(t, zero.Sign())
}

func TestSnapshotRevert(t *testing.T) {
	mgr, db := newTestManager(t)
	require.NoError(t, mgr.RegisterToken("PAR", "Parallel", 18))
	addr := []byte{0xaa}
	require.NoError(t, mgr.SetBalance(addr, "PAR", big.NewInt(10)))

	outer := mgr.Snapshot()
	require.NoError(t, mgr.SetBalance(addr, "PAR", big.NewInt(20)))
	inner := mgr.Snapshot()
	require.NoError(t, mgr.SetBalance(addr, "PAR", big.NewInt(30)))
	require.NoError(t, mgr.KVPut([]byte("cdp/test"), uint64(7)))

	mgr.RevertToSnapshot(inner)
	bal, err := mgr.Balance(addr, "PAR")
	require.NoError(t, err)
	require.Equal(t, "20", bal.String())
	ok, err := mgr.KVGet([]byte("cdp/test"), nil)
	require.NoError(t, err)
	require.False(t, ok)

	mgr.RevertToSnapshot(outer)
	bal, err = mgr.Balance(addr, "PAR")
	require.NoError(t, err)
	require.Equal(t, "10", bal.String())

	// Nothing reaches the database before Commit.
	require.Zero(t, db.Len())
	require.NoError(t, mgr.Commit())
	require.NotZero(t, db.Len())
	require.Zero(t, mgr.Pending())

	reopened := NewManager(db)
	bal, err = reopened.Balance(addr, "PAR")
	require.NoError(t, err)
	require.Equal(t, "10", bal.String())
}

func TestRevertRestoresDeletedKey(t *testing.T) {
	mgr, _ := newTestManager(t)
	key := []byte("cdp/config")
	require.NoError(t, mgr.KVPut(key, "weth"))
	require.NoError(t, mgr.Commit())

	snap := mgr.Snapshot()
	require.NoError(t, mgr.KVDelete(key))
	ok, err := mgr.KVGet(key, nil)
	require.NoError(t, err)
	require.False(t, ok)

	mgr.RevertToSnapshot(snap)
	var got string
	ok, err = mgr.KVGet(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "weth", got)
}

func TestRoles(t *testing.T) {
	mgr, _ := newTestManager(t)
	a := []byte{0x02}
	b := []byte{0x01}

	require.NoError(t, mgr.SetRole("cdp.manager", a))
	require.NoError(t, mgr.SetRole("cdp.manager", b))
	require.NoError(t, mgr.SetRole("cdp.manager", a))

	members, err := mgr.RoleMembers("cdp.manager")
	require.NoError(t, err)
	require.Equal(t, [][]byte{b, a}, members)
	require.True(t, mgr.HasRole("cdp.manager", a))

	require.NoError(t, mgr.RemoveRole("cdp.manager", a))
	require.False(t, mgr.HasRole("cdp.manager", a))
	require.True(t, mgr.HasRole("cdp.manager", b))
	require.Error(t, mgr.SetRole("", a))
}

func TestPauseFlags(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.False(t, mgr.IsPaused("cdp"))
	require.NoError(t, mgr.SetPaused("cdp", true))
	require.True(t, mgr.IsPaused("cdp"))
	require.NoError(t, mgr.SetPaused("cdp", false))
	require.False(t, mgr.IsPaused("cdp"))
}

func TestKVAppendAndList(t *testing.T) {
	mgr, _ := newTestManager(t)
	key := []byte("cdp/index")

	var empty [][]byte
	require.NoError(t, mgr.KVGetList(key, &empty))
	require.NotNil(t, empty)
	require.Len(t, empty, 0)

	require.NoError(t, mgr.KVAppend(key, []byte("a")))
	require.NoError(t, mgr.KVAppend(key, []byte("b")))
	require.NoError(t, mgr.KVAppend(key, []byte("a")))

	var list [][]byte
	require.NoError(t, mgr.KVGetList(key, &list))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)
}

func TestUpdateCommitsOrDiscards(t *testing.T) {
	mgr, db := newTestManager(t)

	require.NoError(t, mgr.Update(func() error {
		return mgr.KVPut([]byte("kept"), uint64(1))
	}))
	require.Zero(t, mgr.Pending())
	require.Equal(t, 1, db.Len())

	failure := errors.New("boom")
	err := mgr.Update(func() error {
		if err := mgr.KVPut([]byte("dropped"), uint64(2)); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.Zero(t, mgr.Pending())

	var out uint64
	ok, err := mgr.KVGet([]byte("dropped"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

type countingHook struct {
	committed int
	reverted  int
}

func (h *countingHook) Committed() { h.committed++ }
func (h *countingHook) Reverted()  { h.reverted++ }

func TestUpdateNotifiesHooks(t *testing.T) {
	mgr, _ := newTestManager(t)
	hook := &countingHook{}
	mgr.AddHook(hook)
	mgr.AddHook(nil)

	require.NoError(t, mgr.Update(func() error {
		return mgr.KVPut([]byte("kept"), uint64(1))
	}))
	require.Equal(t, 1, hook.committed)
	require.Zero(t, hook.reverted)

	require.Error(t, mgr.Update(func() error { return errors.New("rejected") }))
	require.Equal(t, 1, hook.committed)
	require.Equal(t, 1, hook.reverted)

	require.NoError(t, mgr.Commit())
	require.Equal(t, 2, hook.committed)
}
