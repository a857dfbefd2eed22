package cdp

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
	"cdpchain/storage"
)

var (
	managerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	moduleAddr     = common.HexToAddress("0x00000000000000000000000000000000000000cd")
	aliceAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bobAddr        = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	liquidatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func wad(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), WAD)
}

// pct returns v percent in WAD precision.
func pct(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Div(WAD, big.NewInt(100)))
}

func bigString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid big integer %q", s)
	}
	return v
}

type harness struct {
	t        *testing.T
	state    *cdpstate.Manager
	ledger   *token.Ledger
	feed     *oracle.Feed
	engine   *Engine
	recorder *events.Recorder
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := cdpstate.NewManager(db)
	ledger := token.NewLedger(st)
	for _, tok := range []struct {
		symbol   string
		decimals uint8
	}{{"PAR", 18}, {"WETH", 18}, {"WBTC", 8}} {
		if err := ledger.Register(tok.symbol, tok.symbol, tok.decimals); err != nil {
			t.Fatalf("register %s: %v", tok.symbol, err)
		}
	}
	if err := st.SetRole(ManagerRole, managerAddr.Bytes()); err != nil {
		t.Fatalf("grant manager: %v", err)
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	h := &harness{
		t:        t,
		state:    st,
		ledger:   ledger,
		recorder: events.NewRecorder(0),
		now:      time.Unix(1_700_000_000, 0),
	}
	h.feed = oracle.NewFeed(ledger, 0)
	h.setPrice("WETH", wad(2_000))

	h.engine = NewEngine(st, Config{ModuleAddress: moduleAddr, StableToken: "par"})
	h.engine.SetTokenLedger(token.NewCustody(ledger, moduleAddr))
	h.engine.SetPriceFeed(h.feed)
	h.engine.SetAccessControl(NewRoleAccess(st))
	h.engine.SetPauses(st)
	h.engine.SetEmitter(h.recorder)
	h.engine.SetNowFunc(func() time.Time { return h.now })
	return h
}

func (h *harness) advance(seconds int64) {
	h.now = h.now.Add(time.Duration(seconds) * time.Second)
}

func (h *harness) setPrice(symbol string, price *big.Int) {
	h.t.Helper()
	if err := h.feed.SetPrice(symbol, price, "test"); err != nil {
		h.t.Fatalf("set price: %v", err)
	}
}

func defaultConfig() *CollateralConfig {
	return &CollateralConfig{
		CollateralType:     "WETH",
		DebtLimit:          wad(1_000_000),
		LiquidationRatio:   pct(130),
		MinCollateralRatio: pct(150),
		BorrowRate:         new(big.Int).Set(RAY),
		OriginationFee:     pct(1),
		LiquidationBonus:   pct(5),
		LiquidationFee:     big.NewInt(0),
	}
}

func (h *harness) configure(cfg *CollateralConfig) *CollateralConfig {
	h.t.Helper()
	stored, err := h.engine.SetCollateralConfig(managerAddr, cfg)
	if err != nil {
		h.t.Fatalf("set collateral config: %v", err)
	}
	return stored
}

// fund mints tokens to holder and approves the engine to pull them.
func (h *harness) fund(symbol string, holder common.Address, amount *big.Int) {
	h.t.Helper()
	if err := h.ledger.Mint(symbol, holder, amount); err != nil {
		h.t.Fatalf("mint %s: %v", symbol, err)
	}
	allowance, err := h.ledger.Allowance(symbol, holder, moduleAddr)
	if err != nil {
		h.t.Fatalf("allowance: %v", err)
	}
	if err := h.ledger.Approve(symbol, holder, moduleAddr, new(big.Int).Add(allowance, amount)); err != nil {
		h.t.Fatalf("approve: %v", err)
	}
	if err := h.state.Commit(); err != nil {
		h.t.Fatalf("commit: %v", err)
	}
}

func (h *harness) balance(symbol string, holder common.Address) *big.Int {
	h.t.Helper()
	bal, err := h.ledger.BalanceOf(symbol, holder)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (h *harness) vault(id uint64) *Vault {
	h.t.Helper()
	vault, err := h.engine.Vault(id)
	if err != nil {
		h.t.Fatalf("vault %d: %v", id, err)
	}
	return vault
}

func (h *harness) debt(id uint64) *big.Int {
	h.t.Helper()
	debt, err := h.engine.VaultDebt(id)
	if err != nil {
		h.t.Fatalf("vault debt %d: %v", id, err)
	}
	return debt
}

func (h *harness) income() *big.Int {
	h.t.Helper()
	income, err := h.engine.AvailableIncome()
	if err != nil {
		h.t.Fatalf("income: %v", err)
	}
	return income
}

// openVault deposits collateral for owner and borrows against it.
func (h *harness) openVault(owner common.Address, collateral, borrow *big.Int) uint64 {
	h.t.Helper()
	h.fund("WETH", owner, collateral)
	id, err := h.engine.DepositAndBorrow(owner, "WETH", collateral, borrow)
	if err != nil {
		h.t.Fatalf("deposit and borrow: %v", err)
	}
	return id
}

func expectEqual(t *testing.T, name string, got, want *big.Int) {
	t.Helper()
	if got == nil || got.Cmp(want) != 0 {
		t.Fatalf("unexpected %s: got %v want %s", name, got, want)
	}
}
