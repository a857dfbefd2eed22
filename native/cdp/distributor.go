package cdp

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/events"
)

// ChangePayees replaces the fee distribution table. Income pending under the
// previous table is released to the previous payees first.
func (e *Engine) ChangePayees(caller common.Address, payees []common.Address, shares []uint64) error {
	return e.execute("change_payees", false, func(now uint64) error {
		if err := e.requireManager(caller); err != nil {
			return err
		}
		table, err := buildPayeeTable(payees, shares)
		if err != nil {
			return err
		}
		previous, err := e.store.payees()
		if err != nil {
			return err
		}
		pending, err := e.hasPendingIncome()
		if err != nil {
			return err
		}
		if len(previous) > 0 && pending {
			if e.tokens == nil || e.stableToken == "" {
				return ErrNotReady
			}
			if _, err := e.release(now); err != nil {
				return err
			}
		}
		if err := e.store.putPayees(table); err != nil {
			return err
		}
		e.pending = append(e.pending, events.CDPPayeesChanged{
			Payees:      append([]common.Address(nil), payees...),
			Shares:      append([]uint64(nil), shares...),
			TotalShares: totalShares(table).Uint64(),
		})
		return nil
	})
}

func buildPayeeTable(payees []common.Address, shares []uint64) ([]Payee, error) {
	if len(payees) != len(shares) {
		return nil, ErrLengthMismatch
	}
	if len(payees) == 0 {
		return nil, ErrNoPayees
	}
	seen := make(map[common.Address]struct{}, len(payees))
	table := make([]Payee, len(payees))
	for i, payee := range payees {
		if payee == (common.Address{}) {
			return nil, ErrZeroAddressPayee
		}
		if shares[i] == 0 {
			return nil, ErrZeroShares
		}
		if _, dup := seen[payee]; dup {
			return nil, ErrDuplicatePayee
		}
		seen[payee] = struct{}{}
		table[i] = Payee{Address: payee, Shares: shares[i]}
	}
	if !totalShares(table).IsUint64() {
		return nil, ErrInvalidParameter
	}
	return table, nil
}

func totalShares(table []Payee) *big.Int {
	total := zero()
	for _, payee := range table {
		total.Add(total, new(big.Int).SetUint64(payee.Shares))
	}
	return total
}

// Release mints the available income to the payees pro rata to their shares
// and pays out the collateral withheld by liquidations the same way. Rounding
// dust stays behind for the next release. It returns the stablecoin minted.
func (e *Engine) Release() (*big.Int, error) {
	var minted *big.Int
	err := e.execute("release", true, func(now uint64) error {
		var err error
		minted, err = e.release(now)
		return err
	})
	return minted, err
}

func (e *Engine) hasPendingIncome() (bool, error) {
	income, err := e.store.income()
	if err != nil {
		return false, err
	}
	if income.Sign() > 0 {
		return true, nil
	}
	types, err := e.store.configTypes()
	if err != nil {
		return false, err
	}
	for _, collateralType := range types {
		fees, err := e.store.liquidationFees(collateralType)
		if err != nil {
			return false, err
		}
		if fees.Sign() > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) release(now uint64) (*big.Int, error) {
	table, err := e.store.payees()
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, ErrNoPayeesConfigured
	}
	pending, err := e.hasPendingIncome()
	if err != nil {
		return nil, err
	}
	if !pending {
		return nil, ErrNoIncome
	}

	income, err := e.store.income()
	if err != nil {
		return nil, err
	}
	minted := zero()
	if income.Sign() > 0 {
		var dust *big.Int
		minted, dust, err = distribute(table, income, func(to common.Address, amount *big.Int) error {
			return e.tokens.Mint(e.stableToken, to, amount)
		})
		if err != nil {
			return nil, fmt.Errorf("cdp: mint income: %w", err)
		}
		if err := e.store.putIncome(dust); err != nil {
			return nil, err
		}
		e.pending = append(e.pending, events.CDPFeeReleased{Asset: e.stableToken, Income: income, Minted: copyInt(minted), Dust: dust})
		released := copyInt(minted)
		e.afterCommit(func() { e.metrics.AddIncomeReleased(released) })
	}

	types, err := e.store.configTypes()
	if err != nil {
		return nil, err
	}
	for _, collateralType := range types {
		fees, err := e.store.liquidationFees(collateralType)
		if err != nil {
			return nil, err
		}
		if fees.Sign() == 0 {
			continue
		}
		paid, dust, err := distribute(table, fees, func(to common.Address, amount *big.Int) error {
			return e.tokens.TransferOut(collateralType, to, amount)
		})
		if err != nil {
			return nil, fmt.Errorf("cdp: pay %s liquidation fees: %w", collateralType, err)
		}
		if err := e.store.putLiquidationFees(collateralType, dust); err != nil {
			return nil, err
		}
		e.pending = append(e.pending, events.CDPFeeReleased{Asset: collateralType, Income: fees, Minted: paid, Dust: dust})
	}

	if err := e.store.putLastReleasedAt(now); err != nil {
		return nil, err
	}
	e.logger.Info("cdp income released",
		slog.String("income", income.String()),
		slog.String("minted", minted.String()),
		slog.Int("payees", len(table)))
	return minted, nil
}

// distribute splits amount across the table by shares, rounding each share
// down, and returns what was paid and the remaining dust.
func distribute(table []Payee, amount *big.Int, pay func(common.Address, *big.Int) error) (*big.Int, *big.Int, error) {
	total := totalShares(table)
	paid := zero()
	for _, payee := range table {
		share := mulDivDown(amount, new(big.Int).SetUint64(payee.Shares), total)
		if share.Sign() == 0 {
			continue
		}
		if err := pay(payee.Address, share); err != nil {
			return nil, nil, fmt.Errorf("pay %s: %w", payee.Address.Hex(), err)
		}
		paid.Add(paid, share)
	}
	return paid, new(big.Int).Sub(amount, paid), nil
}

// LiquidationFees returns the collateral withheld by liquidations of a
// collateral type and not yet released.
func (e *Engine) LiquidationFees(collateralType string) (*big.Int, error) {
	var fees *big.Int
	err := e.view(func() error {
		var err error
		fees, err = e.store.liquidationFees(normalizeType(collateralType))
		return err
	})
	return fees, err
}

// Payees returns the current fee distribution table.
func (e *Engine) Payees() ([]Payee, error) {
	var table []Payee
	err := e.view(func() error {
		var err error
		table, err = e.store.payees()
		return err
	})
	return table, err
}

// TotalShares returns the sum of the payee shares.
func (e *Engine) TotalShares() (uint64, error) {
	table, err := e.Payees()
	if err != nil {
		return 0, err
	}
	return totalShares(table).Uint64(), nil
}

// LastReleasedAt returns the unix time of the last income release.
func (e *Engine) LastReleasedAt() (uint64, error) {
	var ts uint64
	err := e.view(func() error {
		var err error
		ts, err = e.store.lastReleasedAt()
		return err
	})
	return ts, err
}
