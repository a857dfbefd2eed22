package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/types"
)

const (
	TypeCDPDeposited             = "cdp.deposited"
	TypeCDPWithdrawn             = "cdp.withdrawn"
	TypeCDPBorrowed              = "cdp.borrowed"
	TypeCDPRepaid                = "cdp.repaid"
	TypeCDPLiquidated            = "cdp.liquidated"
	TypeCDPInsurancePaid         = "cdp.insurance_paid"
	TypeCDPCumulativeRateUpdated = "cdp.cumulative_rate_updated"
	TypeCDPCollateralUpdated     = "cdp.collateral_updated"
	TypeCDPFeeReleased           = "cdp.fee_released"
	TypeCDPPayeesChanged         = "cdp.payees_changed"
)

// CDPVaultMoved covers deposits, withdrawals, borrows and repayments, which
// share the same shape. Kind selects the event type.
type CDPVaultMoved struct {
	Kind           string
	VaultID        uint64
	CollateralType string
	Owner          common.Address
	Caller         common.Address
	Amount         *big.Int
	Fee            *big.Int
}

func (e CDPVaultMoved) EventType() string { return e.Kind }

func (e CDPVaultMoved) Event() *types.Event {
	attrs := map[string]string{
		"vaultId": strconv.FormatUint(e.VaultID, 10),
		"amount":  amountString(e.Amount),
	}
	if asset := normalizeAsset(e.CollateralType); asset != "" {
		attrs["collateral"] = asset
	}
	setAddress(attrs, "owner", e.Owner)
	setAddress(attrs, "caller", e.Caller)
	if e.Fee != nil && e.Fee.Sign() > 0 {
		attrs["fee"] = e.Fee.String()
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// CDPLiquidated is emitted once per successful liquidation.
type CDPLiquidated struct {
	VaultID              uint64
	Owner                common.Address
	Liquidator           common.Address
	DebtRepaid           *big.Int
	CollateralLiquidated *big.Int
	// CollateralFee is the part of CollateralLiquidated kept by the protocol.
	CollateralFee *big.Int
	Partial       bool
}

func (CDPLiquidated) EventType() string { return TypeCDPLiquidated }

func (e CDPLiquidated) Event() *types.Event {
	attrs := map[string]string{
		"vaultId":              strconv.FormatUint(e.VaultID, 10),
		"debtRepaid":           amountString(e.DebtRepaid),
		"collateralLiquidated": amountString(e.CollateralLiquidated),
		"partial":              strconv.FormatBool(e.Partial),
	}
	if e.CollateralFee != nil && e.CollateralFee.Sign() > 0 {
		attrs["collateralFee"] = e.CollateralFee.String()
	}
	setAddress(attrs, "owner", e.Owner)
	setAddress(attrs, "liquidator", e.Liquidator)
	return &types.Event{Type: TypeCDPLiquidated, Attributes: attrs}
}

// CDPInsurancePaid records a draw on the insurance reserve during liquidation.
type CDPInsurancePaid struct {
	VaultID    uint64
	Amount     *big.Int
	Liquidator common.Address
}

func (CDPInsurancePaid) EventType() string { return TypeCDPInsurancePaid }

func (e CDPInsurancePaid) Event() *types.Event {
	attrs := map[string]string{
		"vaultId": strconv.FormatUint(e.VaultID, 10),
		"amount":  amountString(e.Amount),
	}
	setAddress(attrs, "liquidator", e.Liquidator)
	return &types.Event{Type: TypeCDPInsurancePaid, Attributes: attrs}
}

// CDPCumulativeRateUpdated is emitted whenever a refresh advances a rate.
type CDPCumulativeRateUpdated struct {
	CollateralType string
	Elapsed        uint64
	CumulativeRate *big.Int
}

func (CDPCumulativeRateUpdated) EventType() string { return TypeCDPCumulativeRateUpdated }

func (e CDPCumulativeRateUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCDPCumulativeRateUpdated, Attributes: map[string]string{
		"collateral":     normalizeAsset(e.CollateralType),
		"elapsed":        strconv.FormatUint(e.Elapsed, 10),
		"cumulativeRate": amountString(e.CumulativeRate),
	}}
}

// CDPCollateralUpdated is emitted when a collateral configuration is created
// or changed. Field names the changed parameter, or "all" for a full set.
type CDPCollateralUpdated struct {
	CollateralType string
	ID             uint64
	Field          string
}

func (CDPCollateralUpdated) EventType() string { return TypeCDPCollateralUpdated }

func (e CDPCollateralUpdated) Event() *types.Event {
	field := strings.TrimSpace(e.Field)
	if field == "" {
		field = "all"
	}
	return &types.Event{Type: TypeCDPCollateralUpdated, Attributes: map[string]string{
		"collateral": normalizeAsset(e.CollateralType),
		"id":         strconv.FormatUint(e.ID, 10),
		"field":      field,
	}}
}

// CDPFeeReleased is emitted after income has been minted to payees.
type CDPFeeReleased struct {
	// Asset is the stablecoin for income or a collateral type for withheld
	// liquidation fees.
	Asset  string
	Income *big.Int
	Minted *big.Int
	Dust   *big.Int
}

func (CDPFeeReleased) EventType() string { return TypeCDPFeeReleased }

func (e CDPFeeReleased) Event() *types.Event {
	return &types.Event{Type: TypeCDPFeeReleased, Attributes: map[string]string{
		"asset":  normalizeAsset(e.Asset),
		"income": amountString(e.Income),
		"minted": amountString(e.Minted),
		"dust":   amountString(e.Dust),
	}}
}

// CDPPayeesChanged is emitted when the fee distribution table is replaced.
type CDPPayeesChanged struct {
	Payees      []common.Address
	Shares      []uint64
	TotalShares uint64
}

func (CDPPayeesChanged) EventType() string { return TypeCDPPayeesChanged }

func (e CDPPayeesChanged) Event() *types.Event {
	payees := make([]string, len(e.Payees))
	shares := make([]string, len(e.Shares))
	for i, payee := range e.Payees {
		payees[i] = payee.Hex()
	}
	for i, share := range e.Shares {
		shares[i] = strconv.FormatUint(share, 10)
	}
	return &types.Event{Type: TypeCDPPayeesChanged, Attributes: map[string]string{
		"payees":      strings.Join(payees, ","),
		"shares":      strings.Join(shares, ","),
		"totalShares": strconv.FormatUint(e.TotalShares, 10),
	}}
}
