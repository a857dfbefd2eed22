package cdp

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/events"
)

var (
	treasuryAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	stakersAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

// seedIncome credits income directly to the accumulator.
func (h *harness) seedIncome(amount *big.Int) {
	h.t.Helper()
	if err := h.engine.store.putIncome(amount); err != nil {
		h.t.Fatalf("seed income: %v", err)
	}
	if err := h.state.Commit(); err != nil {
		h.t.Fatalf("commit: %v", err)
	}
}

func TestChangePayeesValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		caller common.Address
		payees []common.Address
		shares []uint64
		want   error
	}{
		{"not manager", aliceAddr, []common.Address{treasuryAddr}, []uint64{1}, ErrNotManager},
		{"length mismatch", managerAddr, []common.Address{treasuryAddr}, []uint64{1, 2}, ErrLengthMismatch},
		{"empty table", managerAddr, nil, nil, ErrNoPayees},
		{"zero shares", managerAddr, []common.Address{treasuryAddr}, []uint64{0}, ErrZeroShares},
		{"zero address", managerAddr, []common.Address{{}}, []uint64{1}, ErrZeroAddressPayee},
		{"duplicate", managerAddr, []common.Address{treasuryAddr, treasuryAddr}, []uint64{1, 1}, ErrDuplicatePayee},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := h.engine.ChangePayees(tc.caller, tc.payees, tc.shares); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if table, _ := h.engine.Payees(); len(table) != 0 {
		t.Fatalf("rejected changes stored payees: %+v", table)
	}
}

func TestReleaseWithoutPayeesKeepsIncome(t *testing.T) {
	h := newHarness(t)
	h.seedIncome(wad(1))

	if _, err := h.engine.Release(); !errors.Is(err, ErrNoPayeesConfigured) {
		t.Fatalf("expected ErrNoPayeesConfigured, got %v", err)
	}
	expectEqual(t, "income", h.income(), wad(1))
}

func TestReleaseSplitsByShares(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.ChangePayees(managerAddr, []common.Address{treasuryAddr, stakersAddr}, []uint64{1, 2}); err != nil {
		t.Fatalf("change payees: %v", err)
	}
	if total, _ := h.engine.TotalShares(); total != 3 {
		t.Fatalf("unexpected total shares %d", total)
	}
	if _, err := h.engine.Release(); !errors.Is(err, ErrNoIncome) {
		t.Fatalf("expected ErrNoIncome, got %v", err)
	}

	h.seedIncome(wad(1))
	h.advance(60)
	minted, err := h.engine.Release()
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	expectEqual(t, "minted", minted, bigString(t, "999999999999999999"))
	expectEqual(t, "treasury", h.balance("PAR", treasuryAddr), bigString(t, "333333333333333333"))
	expectEqual(t, "stakers", h.balance("PAR", stakersAddr), bigString(t, "666666666666666666"))
	expectEqual(t, "dust", h.income(), big.NewInt(1))

	if last, _ := h.engine.LastReleasedAt(); last != uint64(h.now.Unix()) {
		t.Fatalf("unexpected last release %d", last)
	}
	released := h.recorder.OfType(events.TypeCDPFeeReleased)
	if len(released) != 1 || released[0].Attributes["dust"] != "1" {
		t.Fatalf("unexpected release events: %+v", released)
	}
}

func TestChangePayeesReleasesUnderPreviousTable(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.ChangePayees(managerAddr, []common.Address{treasuryAddr}, []uint64{1}); err != nil {
		t.Fatalf("change payees: %v", err)
	}
	h.seedIncome(wad(4))

	if err := h.engine.ChangePayees(managerAddr, []common.Address{stakersAddr}, []uint64{5}); err != nil {
		t.Fatalf("change payees: %v", err)
	}
	expectEqual(t, "previous payee", h.balance("PAR", treasuryAddr), wad(4))
	expectEqual(t, "new payee", h.balance("PAR", stakersAddr), big.NewInt(0))
	expectEqual(t, "income", h.income(), big.NewInt(0))

	table, err := h.engine.Payees()
	if err != nil {
		t.Fatalf("payees: %v", err)
	}
	if len(table) != 1 || table[0].Address != stakersAddr || table[0].Shares != 5 {
		t.Fatalf("unexpected payee table: %+v", table)
	}
	if got := len(h.recorder.OfType(events.TypeCDPPayeesChanged)); got != 2 {
		t.Fatalf("unexpected payee change events: got %d want 2", got)
	}
}

func TestReleaseCollectsBorrowIncome(t *testing.T) {
	h := newHarness(t)
	h.configure(defaultConfig())
	if err := h.engine.ChangePayees(managerAddr, []common.Address{treasuryAddr}, []uint64{1}); err != nil {
		t.Fatalf("change payees: %v", err)
	}
	h.openVault(aliceAddr, wad(1), wad(100))

	minted, err := h.engine.Release()
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	expectEqual(t, "minted", minted, wad(1))
	expectEqual(t, "treasury", h.balance("PAR", treasuryAddr), wad(1))

	// Minted income plus outstanding user balances matches the recognised debt.
	supply, err := h.ledger.TotalSupply("PAR")
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	expectEqual(t, "supply against debt", supply, mustDebt(t, h, "WETH"))
}

func TestReleasePaysWithheldCollateral(t *testing.T) {
	h, id := setupLiquidation(t)
	h.setPrice("WETH", wad(140))
	if _, err := h.engine.Liquidate(liquidatorAddr, id); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if err := h.engine.ChangePayees(managerAddr, []common.Address{treasuryAddr, stakersAddr}, []uint64{1, 2}); err != nil {
		t.Fatalf("change payees: %v", err)
	}

	minted, err := h.engine.Release()
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	expectEqual(t, "minted", minted, big.NewInt(0))
	expectEqual(t, "treasury collateral", h.balance("WETH", treasuryAddr), bigString(t, "83333333333333333"))
	expectEqual(t, "stakers collateral", h.balance("WETH", stakersAddr), bigString(t, "166666666666666666"))
	fees, err := h.engine.LiquidationFees("WETH")
	if err != nil {
		t.Fatalf("liquidation fees: %v", err)
	}
	expectEqual(t, "dust", fees, big.NewInt(1))
	expectEqual(t, "custody", h.balance("WETH", moduleAddr), big.NewInt(1))

	released := h.recorder.OfType(events.TypeCDPFeeReleased)
	if len(released) != 1 || released[0].Attributes["asset"] != "WETH" || released[0].Attributes["income"] != pct(25).String() {
		t.Fatalf("unexpected release events: %+v", released)
	}
}
