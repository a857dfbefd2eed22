package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
	"cdpchain/storage"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	module = common.HexToAddress("0x00000000000000000000000000000000000000cd")
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	ledger := NewLedger(cdpstate.NewManager(db))
	require.NoError(t, ledger.Register("par", "Parallel", 18))
	return ledger
}

func TestMintBurnSupply(t *testing.T) {
	ledger := newTestLedger(t)
	recorder := events.NewRecorder(0)
	ledger.SetEmitter(recorder)

	require.NoError(t, ledger.Mint("PAR", alice, big.NewInt(100)))
	require.NoError(t, ledger.Burn("par", alice, big.NewInt(40)))

	bal, err := ledger.BalanceOf("PAR", alice)
	require.NoError(t, err)
	require.Equal(t, "60", bal.String())
	supply, err := ledger.TotalSupply("PAR")
	require.NoError(t, err)
	require.Equal(t, "60", supply.String())

	err = ledger.Burn("PAR", alice, big.NewInt(61))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Empty(t, recorder.Events())

	require.NoError(t, ledger.state.Commit())
	require.Len(t, recorder.OfType(events.TypeTokenMinted), 1)
	burned := recorder.OfType(events.TypeTokenBurned)
	require.Len(t, burned, 1)
	require.Equal(t, "40", burned[0].Attributes["amount"])
	require.Equal(t, "60", burned[0].Attributes["supply"])
	require.Equal(t, alice.Hex(), burned[0].Attributes["account"])

	require.ErrorIs(t, ledger.Mint("PAR", common.Address{}, big.NewInt(1)), ErrZeroAddress)
	require.ErrorIs(t, ledger.Mint("WETH", alice, big.NewInt(1)), ErrUnknownToken)
	require.ErrorIs(t, ledger.Mint("PAR", alice, big.NewInt(-1)), ErrInvalidAmount)
}

func TestMintOverflow(t *testing.T) {
	ledger := newTestLedger(t)
	maxValue := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NoError(t, ledger.Mint("PAR", alice, maxValue))
	err := ledger.Mint("PAR", alice, big.NewInt(1))
	require.True(t, errors.Is(err, ErrOverflow))
}

func TestCustodyAllowance(t *testing.T) {
	ledger := newTestLedger(t)
	custody := NewCustody(ledger, module)
	require.NoError(t, ledger.Mint("PAR", alice, big.NewInt(50)))

	err := custody.TransferIn("PAR", alice, big.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve("PAR", alice, module, big.NewInt(30)))
	require.NoError(t, custody.TransferIn("PAR", alice, big.NewInt(20)))
	allowance, err := ledger.Allowance("PAR", alice, module)
	require.NoError(t, err)
	require.Equal(t, "10", allowance.String())

	require.NoError(t, custody.TransferOut("PAR", bob, big.NewInt(5)))
	held, err := custody.BalanceOf("PAR", module)
	require.NoError(t, err)
	require.Equal(t, "15", held.String())
	got, err := ledger.BalanceOf("PAR", bob)
	require.NoError(t, err)
	require.Equal(t, "5", got.String())

	require.ErrorIs(t, custody.TransferOut("PAR", bob, big.NewInt(16)), ErrInsufficientBalance)
}

func TestRevertedUpdateDropsEvents(t *testing.T) {
	ledger := newTestLedger(t)
	recorder := events.NewRecorder(0)
	ledger.SetEmitter(recorder)
	require.NoError(t, ledger.state.Commit())

	err := ledger.state.Update(func() error {
		if err := ledger.Mint("PAR", alice, big.NewInt(100)); err != nil {
			return err
		}
		return ledger.Transfer("PAR", alice, bob, big.NewInt(200))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Empty(t, recorder.Events())
	supply, err := ledger.TotalSupply("PAR")
	require.NoError(t, err)
	require.Zero(t, supply.Sign())

	require.NoError(t, ledger.state.Update(func() error {
		if err := ledger.Mint("PAR", alice, big.NewInt(100)); err != nil {
			return err
		}
		if err := ledger.Approve("PAR", alice, module, big.NewInt(30)); err != nil {
			return err
		}
		return ledger.Transfer("PAR", alice, bob, big.NewInt(25))
	}))
	got := recorder.Events()
	require.Len(t, got, 3)
	require.Equal(t, events.TypeTokenMinted, got[0].Type)
	require.Equal(t, events.TypeTokenApproved, got[1].Type)
	require.Equal(t, events.TypeTokenTransferred, got[2].Type)
	require.Equal(t, bob.Hex(), got[2].Attributes["to"])
	require.Equal(t, "25", got[2].Attributes["amount"])
}
