package cdp

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralConfig holds the risk parameters of one collateral type. Ratios,
// fees and the bonus are WAD scaled; BorrowRate is a RAY scaled per-second
// growth factor.
type CollateralConfig struct {
	ID                 uint64
	CollateralType     string
	DebtLimit          *big.Int
	LiquidationRatio   *big.Int
	MinCollateralRatio *big.Int
	BorrowRate         *big.Int
	OriginationFee     *big.Int
	LiquidationBonus   *big.Int
	LiquidationFee     *big.Int
}

// Clone returns a deep copy of the configuration.
func (c *CollateralConfig) Clone() *CollateralConfig {
	if c == nil {
		return nil
	}
	return &CollateralConfig{
		ID:                 c.ID,
		CollateralType:     c.CollateralType,
		DebtLimit:          copyInt(c.DebtLimit),
		LiquidationRatio:   copyInt(c.LiquidationRatio),
		MinCollateralRatio: copyInt(c.MinCollateralRatio),
		BorrowRate:         copyInt(c.BorrowRate),
		OriginationFee:     copyInt(c.OriginationFee),
		LiquidationBonus:   copyInt(c.LiquidationBonus),
		LiquidationFee:     copyInt(c.LiquidationFee),
	}
}

// Validate checks the configuration invariants.
func (c *CollateralConfig) Validate() error {
	if c == nil || normalizeType(c.CollateralType) == "" {
		return ErrInvalidCollateral
	}
	for _, v := range []*big.Int{c.DebtLimit, c.LiquidationRatio, c.MinCollateralRatio, c.BorrowRate, c.OriginationFee, c.LiquidationBonus, c.LiquidationFee} {
		if v == nil || v.Sign() < 0 {
			return ErrInvalidParameter
		}
	}
	if c.BorrowRate.Cmp(RAY) < 0 {
		return ErrInvalidBorrowRate
	}
	if c.LiquidationRatio.Cmp(c.MinCollateralRatio) > 0 {
		return ErrInvalidRatio
	}
	if c.LiquidationFee.Cmp(WAD) >= 0 {
		return ErrInvalidFee
	}
	return nil
}

// RateState tracks the cumulative borrow rate of one collateral type.
type RateState struct {
	CumulativeRate *big.Int
	LastRefresh    uint64
}

// Clone returns a deep copy of the rate state.
func (r *RateState) Clone() *RateState {
	if r == nil {
		return nil
	}
	return &RateState{CumulativeRate: copyInt(r.CumulativeRate), LastRefresh: r.LastRefresh}
}

// Vault is a single owner's position in one collateral type.
type Vault struct {
	ID                uint64
	CollateralType    string
	Owner             common.Address
	CollateralBalance *big.Int
	BaseDebt          *big.Int
	CreatedAt         uint64
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	clone.CollateralBalance = copyInt(v.CollateralBalance)
	clone.BaseDebt = copyInt(v.BaseDebt)
	return &clone
}

// VaultState is the implicit lifecycle state of a vault.
type VaultState string

const (
	VaultEmpty          VaultState = "empty"
	VaultCollateralized VaultState = "collateralized"
	VaultBorrowed       VaultState = "borrowed"
)

// State derives the lifecycle state from the balances.
func (v *Vault) State() VaultState {
	if v == nil {
		return VaultEmpty
	}
	if !isZero(v.BaseDebt) {
		return VaultBorrowed
	}
	if !isZero(v.CollateralBalance) {
		return VaultCollateralized
	}
	return VaultEmpty
}

// LiquidationResult describes the outcome of a liquidation.
type LiquidationResult struct {
	VaultID              uint64
	DebtRepaid           *big.Int
	CollateralLiquidated *big.Int
	InsuranceAmount      *big.Int
	// LiquidatorPaid is the stablecoin burned from the liquidator: the debt
	// repaid less the insurance draw.
	LiquidatorPaid *big.Int
	// CollateralToLiquidator is CollateralLiquidated less CollateralFee.
	CollateralToLiquidator *big.Int
	CollateralFee          *big.Int
}

// Payee is one entry of the fee distribution table.
type Payee struct {
	Address common.Address
	Shares  uint64
}

func normalizeType(collateralType string) string {
	return strings.ToUpper(strings.TrimSpace(collateralType))
}
