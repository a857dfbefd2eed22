package cdp

import (
	"fmt"
	"math/big"
)

// CalculateHealthFactor returns collateralValue / (debt * ratio) in WAD
// precision. A vault without debt, or a zero ratio, reports exactly WAD.
func CalculateHealthFactor(collateralValue, debt, ratio *big.Int) *big.Int {
	if isZero(debt) || isZero(ratio) {
		return new(big.Int).Set(WAD)
	}
	numerator := new(big.Int).Mul(copyInt(collateralValue), WAD)
	numerator.Mul(numerator, WAD)
	denominator := new(big.Int).Mul(debt, ratio)
	return numerator.Quo(numerator, denominator)
}

// IsHealthy reports whether a health factor is at least WAD.
func IsHealthy(health *big.Int) bool {
	return health != nil && health.Cmp(WAD) >= 0
}

// LiquidationBonus returns the bonus owed on top of amount.
func LiquidationBonus(cfg *CollateralConfig, amount *big.Int) *big.Int {
	if cfg == nil {
		return zero()
	}
	return mulDivDown(amount, cfg.LiquidationBonus, WAD)
}

// ApplyLiquidationDiscount removes the liquidation bonus from an amount that
// already includes it.
func ApplyLiquidationDiscount(cfg *CollateralConfig, amount *big.Int) *big.Int {
	if cfg == nil {
		return copyInt(amount)
	}
	return mulDivDown(amount, WAD, new(big.Int).Add(WAD, cfg.LiquidationBonus))
}

// LiquidationSizing is the quantity breakdown of a single liquidation.
type LiquidationSizing struct {
	// DebtToRepay is the debt removed from the vault.
	DebtToRepay *big.Int
	// DebtCovered is the part of DebtToRepay burned from the liquidator.
	DebtCovered *big.Int
	// Insurance is the shortfall burned from the engine reserve.
	Insurance *big.Int
	// CollateralLiquidated leaves the vault. The liquidator receives it minus
	// CollateralFee, which the engine keeps as protocol income.
	CollateralLiquidated   *big.Int
	CollateralToLiquidator *big.Int
	CollateralFee          *big.Int
	// Clamped is set when the whole balance was seized.
	Clamped bool
}

// SizeLiquidation computes the collateral seized for repaying debtToRepay and
// how much of the debt the insurance reserve has to cover when the balance is
// worth too little. The seized value is the debt plus bonus grossed up by the
// liquidation fee, so the liquidator keeps the debt plus bonus after the fee
// share is withheld.
func SizeLiquidation(cfg *CollateralConfig, prices PriceFeed, debtToRepay, collateralBalance *big.Int) (*LiquidationSizing, error) {
	if cfg == nil {
		return nil, ErrUnknownCollateral
	}
	if prices == nil {
		return nil, ErrNotReady
	}
	collateralValue, err := prices.ConvertFrom(cfg.CollateralType, collateralBalance)
	if err != nil {
		return nil, fmt.Errorf("cdp: value collateral: %w", err)
	}
	netOfFee := new(big.Int).Sub(WAD, cfg.LiquidationFee)
	if netOfFee.Sign() <= 0 {
		return nil, ErrInvalidFee
	}
	sizing := &LiquidationSizing{
		DebtToRepay: copyInt(debtToRepay),
		Insurance:   zero(),
	}

	valueToReceive := mulDivDown(debtToRepay, new(big.Int).Add(WAD, cfg.LiquidationBonus), netOfFee)
	if valueToReceive.Cmp(collateralValue) > 0 {
		sizing.Clamped = true
		sizing.CollateralLiquidated = copyInt(collateralBalance)
		netValue := mulDivDown(collateralValue, netOfFee, WAD)
		sizing.DebtCovered = minInt(ApplyLiquidationDiscount(cfg, netValue), debtToRepay)
		sizing.Insurance = new(big.Int).Sub(debtToRepay, sizing.DebtCovered)
	} else {
		seized, err := prices.ConvertTo(cfg.CollateralType, valueToReceive)
		if err != nil {
			return nil, fmt.Errorf("cdp: convert collateral value: %w", err)
		}
		sizing.CollateralLiquidated = minInt(seized, copyInt(collateralBalance))
		sizing.DebtCovered = copyInt(debtToRepay)
	}
	sizing.CollateralFee = mulDivDown(sizing.CollateralLiquidated, cfg.LiquidationFee, WAD)
	sizing.CollateralToLiquidator = new(big.Int).Sub(sizing.CollateralLiquidated, sizing.CollateralFee)
	return sizing, nil
}
