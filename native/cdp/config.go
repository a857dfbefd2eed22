package cdp

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/events"
)

// SetCollateralConfig creates or fully replaces the configuration of a
// collateral type. The first configuration of a type is assigned the next
// sequential id and starts its rate index at RAY. Replacing an existing
// configuration accrues the previous borrow rate up to now before switching.
func (e *Engine) SetCollateralConfig(caller common.Address, cfg *CollateralConfig) (*CollateralConfig, error) {
	var stored *CollateralConfig
	err := e.execute("set_collateral_config", false, func(now uint64) error {
		if err := e.requireManager(caller); err != nil {
			return err
		}
		input := cfg.Clone()
		if input == nil {
			return ErrInvalidCollateral
		}
		input.CollateralType = normalizeType(input.CollateralType)
		if err := input.Validate(); err != nil {
			return err
		}
		existing, ok, err := e.store.config(input.CollateralType)
		if err != nil {
			return err
		}
		if ok {
			if _, _, err := e.refresh(input.CollateralType, now); err != nil {
				return err
			}
			input.ID = existing.ID
		} else {
			id, err := e.store.nextID(nextConfigIDKey)
			if err != nil {
				return err
			}
			input.ID = id
			if err := e.store.appendConfigType(input.CollateralType); err != nil {
				return err
			}
			if err := e.store.putRate(input.CollateralType, &RateState{CumulativeRate: new(big.Int).Set(RAY), LastRefresh: now}); err != nil {
				return err
			}
		}
		if err := e.store.putConfig(input); err != nil {
			return err
		}
		e.pending = append(e.pending, events.CDPCollateralUpdated{CollateralType: input.CollateralType, ID: input.ID})
		stored = input
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// SetCollateralDebtLimit updates the maximum recognised debt of a collateral type.
func (e *Engine) SetCollateralDebtLimit(caller common.Address, collateralType string, debtLimit *big.Int) error {
	return e.updateCollateral(caller, collateralType, "debtLimit", false, func(cfg *CollateralConfig) {
		cfg.DebtLimit = copyValue(debtLimit)
	})
}

// SetCollateralLiquidationRatio updates the ratio below which vaults can be
// liquidated. It must not exceed the minimum collateral ratio.
func (e *Engine) SetCollateralLiquidationRatio(caller common.Address, collateralType string, ratio *big.Int) error {
	return e.updateCollateral(caller, collateralType, "liquidationRatio", false, func(cfg *CollateralConfig) {
		cfg.LiquidationRatio = copyValue(ratio)
	})
}

// SetCollateralMinCollateralRatio updates the ratio enforced on borrow and
// withdraw. It must not drop below the liquidation ratio.
func (e *Engine) SetCollateralMinCollateralRatio(caller common.Address, collateralType string, ratio *big.Int) error {
	return e.updateCollateral(caller, collateralType, "minCollateralRatio", false, func(cfg *CollateralConfig) {
		cfg.MinCollateralRatio = copyValue(ratio)
	})
}

// SetCollateralBorrowRate switches the per-second borrow rate. Interest up to
// now is accrued at the previous rate first.
func (e *Engine) SetCollateralBorrowRate(caller common.Address, collateralType string, rate *big.Int) error {
	return e.updateCollateral(caller, collateralType, "borrowRate", true, func(cfg *CollateralConfig) {
		cfg.BorrowRate = copyValue(rate)
	})
}

func (e *Engine) SetCollateralOriginationFee(caller common.Address, collateralType string, fee *big.Int) error {
	return e.updateCollateral(caller, collateralType, "originationFee", false, func(cfg *CollateralConfig) {
		cfg.OriginationFee = copyValue(fee)
	})
}

func (e *Engine) SetCollateralLiquidationBonus(caller common.Address, collateralType string, bonus *big.Int) error {
	return e.updateCollateral(caller, collateralType, "liquidationBonus", false, func(cfg *CollateralConfig) {
		cfg.LiquidationBonus = copyValue(bonus)
	})
}

func (e *Engine) SetCollateralLiquidationFee(caller common.Address, collateralType string, fee *big.Int) error {
	return e.updateCollateral(caller, collateralType, "liquidationFee", false, func(cfg *CollateralConfig) {
		cfg.LiquidationFee = copyValue(fee)
	})
}

func (e *Engine) updateCollateral(caller common.Address, collateralType, field string, refreshFirst bool, apply func(*CollateralConfig)) error {
	return e.execute("set_collateral_"+field, false, func(now uint64) error {
		if err := e.requireManager(caller); err != nil {
			return err
		}
		normalized := normalizeType(collateralType)
		cfg, ok, err := e.store.config(normalized)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownCollateral
		}
		if refreshFirst {
			if _, _, err := e.refresh(normalized, now); err != nil {
				return err
			}
		}
		apply(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := e.store.putConfig(cfg); err != nil {
			return err
		}
		e.pending = append(e.pending, events.CDPCollateralUpdated{CollateralType: normalized, ID: cfg.ID, Field: field})
		return nil
	})
}

// CollateralConfig returns the configuration of a collateral type.
func (e *Engine) CollateralConfig(collateralType string) (*CollateralConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok, err := e.store.config(normalizeType(collateralType))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownCollateral
	}
	return cfg, nil
}

// CollateralConfigs returns every configured collateral type ordered by id.
func (e *Engine) CollateralConfigs() ([]*CollateralConfig, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collateralConfigs()
}

func (e *Engine) collateralConfigs() ([]*CollateralConfig, error) {
	types, err := e.store.configTypes()
	if err != nil {
		return nil, err
	}
	configs := make([]*CollateralConfig, 0, len(types))
	for _, collateralType := range types {
		cfg, ok, err := e.store.config(collateralType)
		if err != nil {
			return nil, err
		}
		if ok {
			configs = append(configs, cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs, nil
}

// CollateralID returns the sequential id of a collateral type.
func (e *Engine) CollateralID(collateralType string) (uint64, error) {
	cfg, err := e.CollateralConfig(collateralType)
	if err != nil {
		return 0, err
	}
	return cfg.ID, nil
}

// NumCollateralConfigs returns the number of configured collateral types.
func (e *Engine) NumCollateralConfigs() (int, error) {
	configs, err := e.CollateralConfigs()
	if err != nil {
		return 0, err
	}
	return len(configs), nil
}

func copyValue(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
