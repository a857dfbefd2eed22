package cdp

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/events"
	nativecommon "cdpchain/native/common"
	"cdpchain/observability/metrics"
)

const moduleName = "cdp"

// ModuleName is the pause key of the engine.
const ModuleName = moduleName

// Config carries the static engine parameters.
type Config struct {
	// ModuleAddress is the engine's own account. It holds collateral in
	// custody and the stablecoin insurance reserve.
	ModuleAddress common.Address
	// StableToken is the symbol of the stablecoin minted against collateral.
	StableToken string
}

// Engine is the CDP orchestrator. Every mutating call is serialised by a
// single lock and applied against a state snapshot that is reverted on error,
// so a failed call leaves no trace.
type Engine struct {
	mu      sync.Mutex
	state   StateBackend
	store   store
	tokens  TokenLedger
	prices  PriceFeed
	access  AccessControl
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.CDPMetrics
	nowFn   func() time.Time

	moduleAddr  common.Address
	stableToken string

	// pending and onCommit are buffered while an operation runs and only
	// published once its update commits.
	pending  []events.Event
	onCommit []func()
}

// NewEngine constructs an engine persisting through the supplied state.
func NewEngine(state StateBackend, cfg Config) *Engine {
	return &Engine{
		state:       state,
		store:       store{kv: state},
		emitter:     events.NoopEmitter{},
		logger:      slog.Default(),
		metrics:     metrics.CDP(),
		nowFn:       time.Now,
		moduleAddr:  cfg.ModuleAddress,
		stableToken: strings.ToUpper(strings.TrimSpace(cfg.StableToken)),
	}
}

// SetTokenLedger wires the token collaborator.
func (e *Engine) SetTokenLedger(tokens TokenLedger) {
	if e == nil {
		return
	}
	e.tokens = tokens
}

// SetPriceFeed wires the price collaborator.
func (e *Engine) SetPriceFeed(prices PriceFeed) {
	if e == nil {
		return
	}
	e.prices = prices
}

// SetAccessControl wires the manager capability check.
func (e *Engine) SetAccessControl(access AccessControl) {
	if e == nil {
		return
	}
	e.access = access
}

// SetPauses wires the pause view consulted before user operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event sink. Nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// SetNowFunc overrides the clock used for rate accrual.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func (e *Engine) ModuleAddress() common.Address { return e.moduleAddr }

func (e *Engine) StableToken() string { return e.stableToken }

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// execute runs fn as one atomic operation. User operations honour the pause
// guard and require the token and price collaborators.
func (e *Engine) execute(op string, user bool, fn func(now uint64) error) error {
	if e == nil || e.state == nil {
		return ErrNotReady
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.executeLocked(user, fn)
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
		e.logger.Debug("cdp operation rejected", slog.String("operation", op), slog.Any("error", err))
	}
	e.metrics.ObserveOperation(op, result)
	return err
}

func (e *Engine) executeLocked(user bool, fn func(now uint64) error) error {
	if user {
		if e.tokens == nil || e.prices == nil || e.stableToken == "" {
			return ErrNotReady
		}
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
	}
	e.resetBuffers()
	err := e.state.Update(func() error { return fn(e.now()) })
	if err != nil {
		e.resetBuffers()
		return err
	}
	for _, apply := range e.onCommit {
		apply()
	}
	for _, evt := range e.pending {
		e.emitter.Emit(evt)
	}
	e.resetBuffers()
	return nil
}

func (e *Engine) resetBuffers() {
	e.pending = e.pending[:0]
	e.onCommit = e.onCommit[:0]
}

// afterCommit defers a side effect outside the state, such as a metric
// update, until the running operation has committed.
func (e *Engine) afterCommit(fn func()) {
	e.onCommit = append(e.onCommit, fn)
}

func (e *Engine) requireManager(caller common.Address) error {
	if e.access == nil || !e.access.IsManager(caller) {
		return ErrNotManager
	}
	return nil
}

// refresh accrues the borrow rate of a collateral type up to now and credits
// the interest recognised on its outstanding debt to the available income.
func (e *Engine) refresh(collateralType string, now uint64) (*CollateralConfig, *RateState, error) {
	cfg, ok, err := e.store.config(collateralType)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrUnknownCollateral
	}
	current, err := e.store.rate(collateralType)
	if err != nil {
		return nil, nil, err
	}
	next, elapsed := Refresh(current, cfg.BorrowRate, now)
	if elapsed == 0 {
		return cfg, current, nil
	}
	totalBase, err := e.store.totalBaseDebt(collateralType)
	if err != nil {
		return nil, nil, err
	}
	before := CalculateDebt(totalBase, current.CumulativeRate)
	after := CalculateDebt(totalBase, next.CumulativeRate)
	if err := e.store.putRate(collateralType, next); err != nil {
		return nil, nil, err
	}
	if err := e.creditIncome(new(big.Int).Sub(after, before)); err != nil {
		return nil, nil, err
	}
	e.pending = append(e.pending, events.CDPCumulativeRateUpdated{
		CollateralType: collateralType,
		Elapsed:        elapsed,
		CumulativeRate: copyInt(next.CumulativeRate),
	})
	rateGauge := copyInt(next.CumulativeRate)
	e.afterCommit(func() {
		e.metrics.SetCumulativeRate(collateralType, rateGauge)
		e.metrics.SetCollateralDebt(collateralType, after)
	})
	return cfg, next, nil
}

func (e *Engine) creditIncome(delta *big.Int) error {
	if delta == nil || delta.Sign() <= 0 {
		return nil
	}
	income, err := e.store.income()
	if err != nil {
		return err
	}
	return e.store.putIncome(income.Add(income, delta))
}

// creditLiquidationFees adds collateral withheld from a liquidation to the
// fees released to payees alongside the stablecoin income.
func (e *Engine) creditLiquidationFees(collateralType string, amount *big.Int) error {
	fees, err := e.store.liquidationFees(collateralType)
	if err != nil {
		return err
	}
	return e.store.putLiquidationFees(collateralType, fees.Add(fees, amount))
}

// adjustTotalBaseDebt applies a signed delta to the per-collateral base debt
// and returns the recognised debt before and after the change.
func (e *Engine) adjustTotalBaseDebt(collateralType string, delta, rate *big.Int) (*big.Int, *big.Int, error) {
	total, err := e.store.totalBaseDebt(collateralType)
	if err != nil {
		return nil, nil, err
	}
	before := CalculateDebt(total, rate)
	updated := new(big.Int).Add(total, delta)
	if updated.Sign() < 0 {
		return nil, nil, fmt.Errorf("cdp: total base debt of %s would become negative", collateralType)
	}
	if err := e.store.putTotalBaseDebt(collateralType, updated); err != nil {
		return nil, nil, err
	}
	after := CalculateDebt(updated, rate)
	debtGauge := copyInt(after)
	e.afterCommit(func() { e.metrics.SetCollateralDebt(collateralType, debtGauge) })
	return before, after, nil
}

func (e *Engine) loadVault(id uint64) (*Vault, error) {
	vault, err := e.store.vault(id)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, ErrVaultNotFound
	}
	return vault, nil
}

func (e *Engine) health(cfg *CollateralConfig, balance, debt, ratio *big.Int) (*big.Int, error) {
	value, err := e.prices.ConvertFrom(cfg.CollateralType, balance)
	if err != nil {
		return nil, fmt.Errorf("cdp: value collateral: %w", err)
	}
	return CalculateHealthFactor(value, debt, ratio), nil
}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

// Deposit adds collateral to the caller's vault for the collateral type,
// opening the vault on first use. It returns the vault id.
func (e *Engine) Deposit(caller common.Address, collateralType string, amount *big.Int) (uint64, error) {
	var id uint64
	err := e.execute("deposit", true, func(now uint64) error {
		var err error
		id, err = e.deposit(caller, collateralType, amount, now)
		return err
	})
	return id, err
}

func (e *Engine) deposit(caller common.Address, collateralType string, amount *big.Int, now uint64) (uint64, error) {
	if err := requirePositive(amount); err != nil {
		return 0, err
	}
	normalized := normalizeType(collateralType)
	if _, ok, err := e.store.config(normalized); err != nil {
		return 0, err
	} else if !ok {
		return 0, ErrUnknownCollateral
	}
	id, err := e.store.vaultID(normalized, caller)
	if err != nil {
		return 0, err
	}
	var vault *Vault
	if id == 0 {
		id, err = e.store.nextID(nextVaultIDKey)
		if err != nil {
			return 0, err
		}
		vault = &Vault{
			ID:                id,
			CollateralType:    normalized,
			Owner:             caller,
			CollateralBalance: zero(),
			BaseDebt:          zero(),
			CreatedAt:         now,
		}
		if err := e.store.putVaultID(normalized, caller, id); err != nil {
			return 0, err
		}
	} else if vault, err = e.loadVault(id); err != nil {
		return 0, err
	}
	if err := e.addCollateral(caller, vault, amount); err != nil {
		return 0, err
	}
	return id, nil
}

// DepositByVaultID tops up an existing vault. Anyone may add collateral.
func (e *Engine) DepositByVaultID(caller common.Address, vaultID uint64, amount *big.Int) error {
	return e.execute("deposit_by_vault_id", true, func(uint64) error {
		if err := requirePositive(amount); err != nil {
			return err
		}
		vault, err := e.loadVault(vaultID)
		if err != nil {
			return err
		}
		return e.addCollateral(caller, vault, amount)
	})
}

func (e *Engine) addCollateral(caller common.Address, vault *Vault, amount *big.Int) error {
	if err := e.tokens.TransferIn(vault.CollateralType, caller, amount); err != nil {
		return fmt.Errorf("cdp: transfer collateral in: %w", err)
	}
	vault.CollateralBalance = new(big.Int).Add(vault.CollateralBalance, amount)
	if err := e.store.putVault(vault); err != nil {
		return err
	}
	e.pending = append(e.pending, events.CDPVaultMoved{
		Kind:           events.TypeCDPDeposited,
		VaultID:        vault.ID,
		CollateralType: vault.CollateralType,
		Owner:          vault.Owner,
		Caller:         caller,
		Amount:         copyInt(amount),
	})
	return nil
}

// Withdraw releases collateral to the vault owner. A vault with debt must stay
// above the minimum collateral ratio after the withdrawal.
func (e *Engine) Withdraw(caller common.Address, vaultID uint64, amount *big.Int) error {
	return e.execute("withdraw", true, func(now uint64) error {
		if err := requirePositive(amount); err != nil {
			return err
		}
		vault, err := e.loadVault(vaultID)
		if err != nil {
			return err
		}
		if vault.Owner != caller {
			return ErrNotOwner
		}
		if amount.Cmp(vault.CollateralBalance) > 0 {
			return ErrInsufficientCollateral
		}
		remaining := new(big.Int).Sub(vault.CollateralBalance, amount)
		if !isZero(vault.BaseDebt) {
			cfg, rate, err := e.refresh(vault.CollateralType, now)
			if err != nil {
				return err
			}
			debt := CalculateDebt(vault.BaseDebt, rate.CumulativeRate)
			if debt.Sign() > 0 {
				health, err := e.health(cfg, remaining, debt, cfg.MinCollateralRatio)
				if err != nil {
					return err
				}
				if !IsHealthy(health) {
					return ErrUndercollateralized
				}
			}
		}
		vault.CollateralBalance = remaining
		if err := e.store.putVault(vault); err != nil {
			return err
		}
		if err := e.tokens.TransferOut(vault.CollateralType, caller, amount); err != nil {
			return fmt.Errorf("cdp: transfer collateral out: %w", err)
		}
		e.pending = append(e.pending, events.CDPVaultMoved{
			Kind:           events.TypeCDPWithdrawn,
			VaultID:        vault.ID,
			CollateralType: vault.CollateralType,
			Owner:          vault.Owner,
			Caller:         caller,
			Amount:         copyInt(amount),
		})
		return nil
	})
}

// Borrow mints stablecoin against the vault. The origination fee is added to
// the vault debt but not paid out.
func (e *Engine) Borrow(caller common.Address, vaultID uint64, amount *big.Int) error {
	return e.execute("borrow", true, func(now uint64) error {
		return e.borrow(caller, vaultID, amount, now)
	})
}

func (e *Engine) borrow(caller common.Address, vaultID uint64, amount *big.Int, now uint64) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return err
	}
	if vault.Owner != caller {
		return ErrNotOwner
	}
	cfg, rate, err := e.refresh(vault.CollateralType, now)
	if err != nil {
		return err
	}
	fee := mulDivDown(amount, cfg.OriginationFee, WAD)
	baseDelta, err := CalculateBaseDebt(new(big.Int).Add(amount, fee), rate.CumulativeRate)
	if err != nil {
		return err
	}

	before, after, err := e.adjustTotalBaseDebt(vault.CollateralType, baseDelta, rate.CumulativeRate)
	if err != nil {
		return err
	}
	if after.Cmp(cfg.DebtLimit) > 0 {
		return ErrDebtLimitExceeded
	}
	newBase := new(big.Int).Add(vault.BaseDebt, baseDelta)
	debt := CalculateDebt(newBase, rate.CumulativeRate)
	health, err := e.health(cfg, vault.CollateralBalance, debt, cfg.MinCollateralRatio)
	if err != nil {
		return err
	}
	if !IsHealthy(health) {
		return ErrUndercollateralized
	}
	vault.BaseDebt = newBase
	if err := e.store.putVault(vault); err != nil {
		return err
	}
	recognised := new(big.Int).Sub(after, before)
	if err := e.creditIncome(recognised.Sub(recognised, amount)); err != nil {
		return err
	}
	if err := e.tokens.Mint(e.stableToken, caller, amount); err != nil {
		return fmt.Errorf("cdp: mint stablecoin: %w", err)
	}
	e.pending = append(e.pending, events.CDPVaultMoved{
		Kind:           events.TypeCDPBorrowed,
		VaultID:        vault.ID,
		CollateralType: vault.CollateralType,
		Owner:          vault.Owner,
		Caller:         caller,
		Amount:         copyInt(amount),
		Fee:            fee,
	})
	return nil
}

// DepositAndBorrow deposits collateral and borrows against it in one atomic
// step. It returns the vault id.
func (e *Engine) DepositAndBorrow(caller common.Address, collateralType string, depositAmount, borrowAmount *big.Int) (uint64, error) {
	var id uint64
	err := e.execute("deposit_and_borrow", true, func(now uint64) error {
		var err error
		id, err = e.deposit(caller, collateralType, depositAmount, now)
		if err != nil {
			return err
		}
		return e.borrow(caller, id, borrowAmount, now)
	})
	return id, err
}

// Repay burns stablecoin from the caller to reduce the vault debt. Amounts
// above the outstanding debt are capped. It returns the amount repaid.
func (e *Engine) Repay(caller common.Address, vaultID uint64, amount *big.Int) (*big.Int, error) {
	var repaid *big.Int
	err := e.execute("repay", true, func(now uint64) error {
		if err := requirePositive(amount); err != nil {
			return err
		}
		var err error
		repaid, err = e.repay(caller, vaultID, amount, now)
		return err
	})
	return repaid, err
}

// RepayAll repays the exact outstanding debt of the vault.
func (e *Engine) RepayAll(caller common.Address, vaultID uint64) (*big.Int, error) {
	var repaid *big.Int
	err := e.execute("repay_all", true, func(now uint64) error {
		var err error
		repaid, err = e.repay(caller, vaultID, nil, now)
		return err
	})
	return repaid, err
}

// repay settles amount of the vault debt, or all of it when amount is nil.
func (e *Engine) repay(caller common.Address, vaultID uint64, amount *big.Int, now uint64) (*big.Int, error) {
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}
	_, rate, err := e.refresh(vault.CollateralType, now)
	if err != nil {
		return nil, err
	}
	debt := CalculateDebt(vault.BaseDebt, rate.CumulativeRate)
	if debt.Sign() == 0 {
		return nil, ErrNoDebt
	}
	pay := new(big.Int).Set(debt)
	if amount != nil {
		pay = minInt(amount, debt)
	}
	if err := e.reduceDebt(vault, pay, debt, rate.CumulativeRate, pay); err != nil {
		return nil, err
	}
	if err := e.store.putVault(vault); err != nil {
		return nil, err
	}
	if err := e.tokens.Burn(e.stableToken, caller, pay); err != nil {
		return nil, fmt.Errorf("cdp: burn stablecoin: %w", err)
	}
	e.pending = append(e.pending, events.CDPVaultMoved{
		Kind:           events.TypeCDPRepaid,
		VaultID:        vault.ID,
		CollateralType: vault.CollateralType,
		Owner:          vault.Owner,
		Caller:         caller,
		Amount:         copyInt(pay),
	})
	return pay, nil
}

// reduceDebt lowers the vault base debt by the base equivalent of amount,
// zeroing it when amount settles the whole debt. Any part of settled that
// exceeds the recognised debt removed is credited to income.
func (e *Engine) reduceDebt(vault *Vault, amount, debt, rate, settled *big.Int) error {
	var reduction *big.Int
	if amount.Cmp(debt) >= 0 {
		reduction = new(big.Int).Set(vault.BaseDebt)
	} else {
		base, err := CalculateBaseDebt(amount, rate)
		if err != nil {
			return err
		}
		reduction = minInt(base, vault.BaseDebt)
	}
	before, after, err := e.adjustTotalBaseDebt(vault.CollateralType, new(big.Int).Neg(reduction), rate)
	if err != nil {
		return err
	}
	vault.BaseDebt = new(big.Int).Sub(vault.BaseDebt, reduction)
	removed := new(big.Int).Sub(before, after)
	return e.creditIncome(new(big.Int).Sub(settled, removed))
}

// Liquidate settles the whole debt of an unhealthy vault.
func (e *Engine) Liquidate(caller common.Address, vaultID uint64) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := e.execute("liquidate", true, func(now uint64) error {
		var err error
		result, err = e.liquidate(caller, vaultID, nil, now)
		return err
	})
	return result, err
}

// LiquidatePartial settles up to repayAmount of an unhealthy vault's debt.
func (e *Engine) LiquidatePartial(caller common.Address, vaultID uint64, repayAmount *big.Int) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := e.execute("liquidate_partial", true, func(now uint64) error {
		if err := requirePositive(repayAmount); err != nil {
			return err
		}
		var err error
		result, err = e.liquidate(caller, vaultID, repayAmount, now)
		return err
	})
	return result, err
}

func (e *Engine) liquidate(caller common.Address, vaultID uint64, repayAmount *big.Int, now uint64) (*LiquidationResult, error) {
	vault, err := e.loadVault(vaultID)
	if err != nil {
		return nil, err
	}
	cfg, rate, err := e.refresh(vault.CollateralType, now)
	if err != nil {
		return nil, err
	}
	debt := CalculateDebt(vault.BaseDebt, rate.CumulativeRate)
	if debt.Sign() == 0 {
		return nil, ErrNoDebt
	}
	health, err := e.health(cfg, vault.CollateralBalance, debt, cfg.LiquidationRatio)
	if err != nil {
		return nil, err
	}
	if IsHealthy(health) {
		return nil, ErrNotUnhealthy
	}
	debtToRepay := new(big.Int).Set(debt)
	if repayAmount != nil {
		debtToRepay = minInt(repayAmount, debt)
	}
	sizing, err := SizeLiquidation(cfg, e.prices, debtToRepay, vault.CollateralBalance)
	if err != nil {
		return nil, err
	}

	if sizing.Insurance.Sign() > 0 {
		reserve, err := e.tokens.BalanceOf(e.stableToken, e.moduleAddr)
		if err != nil {
			return nil, fmt.Errorf("cdp: read insurance reserve: %w", err)
		}
		if reserve.Cmp(sizing.Insurance) < 0 {
			return nil, ErrInsuranceDepleted
		}
		if err := e.tokens.Burn(e.stableToken, e.moduleAddr, sizing.Insurance); err != nil {
			return nil, fmt.Errorf("cdp: burn insurance: %w", err)
		}
	}
	if sizing.DebtCovered.Sign() > 0 {
		if err := e.tokens.Burn(e.stableToken, caller, sizing.DebtCovered); err != nil {
			return nil, fmt.Errorf("cdp: burn liquidator payment: %w", err)
		}
	}

	if err := e.reduceDebt(vault, debtToRepay, debt, rate.CumulativeRate, debtToRepay); err != nil {
		return nil, err
	}
	vault.CollateralBalance = new(big.Int).Sub(vault.CollateralBalance, sizing.CollateralLiquidated)
	if err := e.store.putVault(vault); err != nil {
		return nil, err
	}
	if sizing.CollateralFee.Sign() > 0 {
		if err := e.creditLiquidationFees(vault.CollateralType, sizing.CollateralFee); err != nil {
			return nil, err
		}
	}
	if sizing.CollateralToLiquidator.Sign() > 0 {
		if err := e.tokens.TransferOut(vault.CollateralType, caller, sizing.CollateralToLiquidator); err != nil {
			return nil, fmt.Errorf("cdp: transfer seized collateral: %w", err)
		}
	}

	partial := repayAmount != nil
	e.pending = append(e.pending, events.CDPLiquidated{
		VaultID:              vault.ID,
		Owner:                vault.Owner,
		Liquidator:           caller,
		DebtRepaid:           copyInt(debtToRepay),
		CollateralLiquidated: copyInt(sizing.CollateralLiquidated),
		CollateralFee:        copyInt(sizing.CollateralFee),
		Partial:              partial,
	})
	if sizing.Insurance.Sign() > 0 {
		e.pending = append(e.pending, events.CDPInsurancePaid{
			VaultID:    vault.ID,
			Amount:     copyInt(sizing.Insurance),
			Liquidator: caller,
		})
		insurance := copyInt(sizing.Insurance)
		e.afterCommit(func() { e.metrics.AddInsurancePaid(insurance) })
	}
	collateralType := vault.CollateralType
	e.afterCommit(func() { e.metrics.ObserveLiquidation(collateralType, partial) })
	e.logger.Info("cdp vault liquidated",
		slog.Uint64("vaultId", vault.ID),
		slog.String("collateral", vault.CollateralType),
		slog.String("liquidator", caller.Hex()),
		slog.String("debtRepaid", debtToRepay.String()),
		slog.String("collateralLiquidated", sizing.CollateralLiquidated.String()),
		slog.String("collateralFee", sizing.CollateralFee.String()),
		slog.String("insurance", sizing.Insurance.String()))

	return &LiquidationResult{
		VaultID:                vault.ID,
		DebtRepaid:             debtToRepay,
		CollateralLiquidated:   sizing.CollateralLiquidated,
		InsuranceAmount:        sizing.Insurance,
		LiquidatorPaid:         sizing.DebtCovered,
		CollateralToLiquidator: sizing.CollateralToLiquidator,
		CollateralFee:          sizing.CollateralFee,
	}, nil
}

// Refresh accrues the borrow rate of a collateral type up to now. Calling it
// again in the same second is a no-op.
func (e *Engine) Refresh(collateralType string) error {
	return e.execute("refresh", true, func(now uint64) error {
		_, _, err := e.refresh(normalizeType(collateralType), now)
		return err
	})
}

// RefreshAll accrues every configured collateral type.
func (e *Engine) RefreshAll() error {
	return e.execute("refresh_all", true, func(now uint64) error {
		configs, err := e.collateralConfigs()
		if err != nil {
			return err
		}
		for _, cfg := range configs {
			if _, _, err := e.refresh(cfg.CollateralType, now); err != nil {
				return err
			}
		}
		return nil
	})
}
