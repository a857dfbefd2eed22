package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestCDPLiquidatedEvent(t *testing.T) {
	owner := common.HexToAddress("0x01")
	evt := CDPLiquidated{
		VaultID:              3,
		Owner:                owner,
		DebtRepaid:           big.NewInt(100),
		CollateralLiquidated: big.NewInt(7),
	}.Event()
	if evt.Type != TypeCDPLiquidated {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["vaultId"] != "3" || evt.Attributes["debtRepaid"] != "100" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["owner"] != owner.Hex() {
		t.Fatalf("unexpected owner: %s", evt.Attributes["owner"])
	}
	if _, ok := evt.Attributes["liquidator"]; ok {
		t.Fatalf("zero liquidator should be omitted")
	}
}

func TestCDPVaultMovedUsesKind(t *testing.T) {
	evt := CDPVaultMoved{Kind: TypeCDPBorrowed, VaultID: 1, CollateralType: "weth", Amount: big.NewInt(5), Fee: big.NewInt(1)}.Event()
	if evt.Type != TypeCDPBorrowed {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["collateral"] != "WETH" || evt.Attributes["fee"] != "1" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestRecorderLimitAndFanout(t *testing.T) {
	a := NewRecorder(2)
	b := NewRecorder(0)
	fan := Fanout{a, nil, b}
	for i := 0; i < 3; i++ {
		fan.Emit(CDPFeeReleased{Income: big.NewInt(int64(i))})
	}
	if got := len(a.Events()); got != 2 {
		t.Fatalf("unexpected limited length: got %d want 2", got)
	}
	if a.Events()[0].Attributes["income"] != "1" {
		t.Fatalf("expected oldest event to be dropped: %+v", a.Events()[0])
	}
	if got := len(b.OfType(TypeCDPFeeReleased)); got != 3 {
		t.Fatalf("unexpected unlimited length: got %d want 3", got)
	}
}
