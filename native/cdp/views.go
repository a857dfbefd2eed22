package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) view(fn func() error) error {
	if e == nil || e.state == nil {
		return ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

// Vault returns a copy of the vault with the supplied id.
func (e *Engine) Vault(id uint64) (*Vault, error) {
	var vault *Vault
	err := e.view(func() error {
		var err error
		vault, err = e.loadVault(id)
		return err
	})
	return vault, err
}

// VaultID returns the id of the owner's vault for a collateral type, or zero
// when the owner never deposited it.
func (e *Engine) VaultID(collateralType string, owner common.Address) (uint64, error) {
	var id uint64
	err := e.view(func() error {
		var err error
		id, err = e.store.vaultID(normalizeType(collateralType), owner)
		return err
	})
	return id, err
}

// VaultDebt returns the vault debt at the last recorded cumulative rate.
func (e *Engine) VaultDebt(id uint64) (*big.Int, error) {
	var debt *big.Int
	err := e.view(func() error {
		vault, err := e.loadVault(id)
		if err != nil {
			return err
		}
		rate, err := e.store.rate(vault.CollateralType)
		if err != nil {
			return err
		}
		debt = CalculateDebt(vault.BaseDebt, rate.CumulativeRate)
		return nil
	})
	return debt, err
}

// VaultCollateralBalance returns the raw collateral units held by a vault.
func (e *Engine) VaultCollateralBalance(id uint64) (*big.Int, error) {
	vault, err := e.Vault(id)
	if err != nil {
		return nil, err
	}
	return vault.CollateralBalance, nil
}

// VaultState returns the derived lifecycle state of a vault.
func (e *Engine) VaultState(id uint64) (VaultState, error) {
	vault, err := e.Vault(id)
	if err != nil {
		return "", err
	}
	return vault.State(), nil
}

// VaultHealth returns the health factor of a vault measured against its
// liquidation ratio. Values below WAD are liquidatable.
func (e *Engine) VaultHealth(id uint64) (*big.Int, error) {
	var health *big.Int
	err := e.view(func() error {
		if e.prices == nil {
			return ErrNotReady
		}
		vault, err := e.loadVault(id)
		if err != nil {
			return err
		}
		cfg, ok, err := e.store.config(vault.CollateralType)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownCollateral
		}
		rate, err := e.store.rate(vault.CollateralType)
		if err != nil {
			return err
		}
		debt := CalculateDebt(vault.BaseDebt, rate.CumulativeRate)
		health, err = e.health(cfg, vault.CollateralBalance, debt, cfg.LiquidationRatio)
		return err
	})
	return health, err
}

// CollateralDebt returns the recognised debt of a collateral type.
func (e *Engine) CollateralDebt(collateralType string) (*big.Int, error) {
	var debt *big.Int
	err := e.view(func() error {
		var err error
		debt, err = e.collateralDebt(normalizeType(collateralType))
		return err
	})
	return debt, err
}

func (e *Engine) collateralDebt(collateralType string) (*big.Int, error) {
	total, err := e.store.totalBaseDebt(collateralType)
	if err != nil {
		return nil, err
	}
	rate, err := e.store.rate(collateralType)
	if err != nil {
		return nil, err
	}
	return CalculateDebt(total, rate.CumulativeRate), nil
}

// TotalDebt returns the recognised debt across every collateral type.
func (e *Engine) TotalDebt() (*big.Int, error) {
	total := zero()
	err := e.view(func() error {
		configs, err := e.collateralConfigs()
		if err != nil {
			return err
		}
		for _, cfg := range configs {
			debt, err := e.collateralDebt(cfg.CollateralType)
			if err != nil {
				return err
			}
			total.Add(total, debt)
		}
		return nil
	})
	return total, err
}

// AvailableIncome returns the income recognised but not yet released.
func (e *Engine) AvailableIncome() (*big.Int, error) {
	var income *big.Int
	err := e.view(func() error {
		var err error
		income, err = e.store.income()
		return err
	})
	return income, err
}

// CumulativeRate returns the rate index of a collateral type.
func (e *Engine) CumulativeRate(collateralType string) (*big.Int, error) {
	state, err := e.RateState(collateralType)
	if err != nil {
		return nil, err
	}
	return state.CumulativeRate, nil
}

// LastRefresh returns the unix time of the last rate refresh.
func (e *Engine) LastRefresh(collateralType string) (uint64, error) {
	state, err := e.RateState(collateralType)
	if err != nil {
		return 0, err
	}
	return state.LastRefresh, nil
}

// RateState returns the rate index and last refresh of a collateral type.
func (e *Engine) RateState(collateralType string) (*RateState, error) {
	var state *RateState
	err := e.view(func() error {
		normalized := normalizeType(collateralType)
		if _, ok, err := e.store.config(normalized); err != nil {
			return err
		} else if !ok {
			return ErrUnknownCollateral
		}
		var err error
		state, err = e.store.rate(normalized)
		return err
	})
	return state, err
}

// CumulativeRates returns the rate index of every collateral type.
func (e *Engine) CumulativeRates() (map[string]*big.Int, error) {
	rates := make(map[string]*big.Int)
	err := e.view(func() error {
		configs, err := e.collateralConfigs()
		if err != nil {
			return err
		}
		for _, cfg := range configs {
			state, err := e.store.rate(cfg.CollateralType)
			if err != nil {
				return err
			}
			rates[cfg.CollateralType] = state.CumulativeRate
		}
		return nil
	})
	return rates, err
}

// InsuranceBalance returns the stablecoin reserve held by the engine.
func (e *Engine) InsuranceBalance() (*big.Int, error) {
	var balance *big.Int
	err := e.view(func() error {
		if e.tokens == nil {
			return ErrNotReady
		}
		var err error
		balance, err = e.tokens.BalanceOf(e.stableToken, e.moduleAddr)
		return err
	})
	return balance, err
}
