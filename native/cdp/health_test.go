package cdp

import (
	"math/big"
	"testing"
)

func TestHealthFactorScenarios(t *testing.T) {
	ratio := pct(150)

	health := CalculateHealthFactor(wad(150), wad(100), ratio)
	expectEqual(t, "health at the threshold", health, WAD)
	if !IsHealthy(health) {
		t.Fatalf("expected vault at the threshold to be healthy")
	}

	health = CalculateHealthFactor(wad(100), wad(100), ratio)
	expectEqual(t, "health below the threshold", health, bigString(t, "666666666666666666"))
	if IsHealthy(health) {
		t.Fatalf("expected vault below the threshold to be unhealthy")
	}

	expectEqual(t, "health without debt", CalculateHealthFactor(wad(1), big.NewInt(0), ratio), WAD)
	expectEqual(t, "health without collateral", CalculateHealthFactor(big.NewInt(0), wad(1), ratio), big.NewInt(0))
}

func TestBonusAndDiscount(t *testing.T) {
	cfg := defaultConfig()
	expectEqual(t, "bonus", LiquidationBonus(cfg, wad(100)), wad(5))
	expectEqual(t, "discount", ApplyLiquidationDiscount(cfg, wad(105)), wad(100))
	// The discount undoes the bonus up to rounding.
	amount := bigString(t, "123456789123456789")
	withBonus := new(big.Int).Add(amount, LiquidationBonus(cfg, amount))
	back := ApplyLiquidationDiscount(cfg, withBonus)
	if diff := new(big.Int).Sub(amount, back); diff.Sign() < 0 || diff.Cmp(big.NewInt(1)) > 0 {
		t.Fatalf("discount did not invert the bonus: got %s want %s", back, amount)
	}
}

type fixedPrices struct {
	price *big.Int
}

func (f fixedPrices) PriceOf(string) (*big.Int, error) { return f.price, nil }

func (f fixedPrices) ConvertFrom(_ string, amount *big.Int) (*big.Int, error) {
	return mulDivDown(amount, f.price, WAD), nil
}

func (f fixedPrices) ConvertTo(_ string, value *big.Int) (*big.Int, error) {
	return mulDivDown(value, WAD, f.price), nil
}

func liquidationConfig() *CollateralConfig {
	cfg := defaultConfig()
	cfg.LiquidationRatio = pct(150)
	cfg.OriginationFee = big.NewInt(0)
	cfg.LiquidationFee = pct(25)
	return cfg
}

func TestSizeLiquidationExactCollateral(t *testing.T) {
	sizing, err := SizeLiquidation(liquidationConfig(), fixedPrices{price: wad(140)}, wad(100), wad(1))
	if err != nil {
		t.Fatalf("size liquidation: %v", err)
	}
	if sizing.Clamped {
		t.Fatalf("collateral worth exactly the entitlement must not be clamped")
	}
	expectEqual(t, "collateral liquidated", sizing.CollateralLiquidated, wad(1))
	expectEqual(t, "insurance", sizing.Insurance, big.NewInt(0))
	expectEqual(t, "debt covered", sizing.DebtCovered, wad(100))
	expectEqual(t, "collateral fee", sizing.CollateralFee, pct(25))
	expectEqual(t, "collateral to liquidator", sizing.CollateralToLiquidator, pct(75))
}

func TestSizeLiquidationClamped(t *testing.T) {
	sizing, err := SizeLiquidation(liquidationConfig(), fixedPrices{price: wad(100)}, wad(100), wad(1))
	if err != nil {
		t.Fatalf("size liquidation: %v", err)
	}
	if !sizing.Clamped {
		t.Fatalf("expected the whole balance to be seized")
	}
	expectEqual(t, "collateral liquidated", sizing.CollateralLiquidated, wad(1))
	expectEqual(t, "debt covered", sizing.DebtCovered, bigString(t, "71428571428571428571"))
	expectEqual(t, "insurance", sizing.Insurance, bigString(t, "28571428571428571429"))
	expectEqual(t, "collateral fee", sizing.CollateralFee, pct(25))

	total := new(big.Int).Add(sizing.DebtCovered, sizing.Insurance)
	expectEqual(t, "covered plus insurance", total, wad(100))
}

func TestSizeLiquidationPartial(t *testing.T) {
	sizing, err := SizeLiquidation(liquidationConfig(), fixedPrices{price: wad(140)}, wad(50), wad(1))
	if err != nil {
		t.Fatalf("size liquidation: %v", err)
	}
	expectEqual(t, "collateral liquidated", sizing.CollateralLiquidated, new(big.Int).Div(WAD, big.NewInt(2)))
	expectEqual(t, "debt covered", sizing.DebtCovered, wad(50))
	expectEqual(t, "collateral fee", sizing.CollateralFee, bigString(t, "125000000000000000"))
	expectEqual(t, "collateral to liquidator", sizing.CollateralToLiquidator, bigString(t, "375000000000000000"))
}
