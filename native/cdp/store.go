package cdp

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	configKeyFormat     = "cdp/config/%s"
	rateKeyFormat       = "cdp/rate/%s"
	totalBaseKeyFormat  = "cdp/total-base-debt/%s"
	vaultKeyFormat      = "cdp/vault/%d"
	vaultIndexKeyFormat = "cdp/vault-index/%s/%s"
	configListKey       = "cdp/configs"
	nextConfigIDKey     = "cdp/next-config-id"
	nextVaultIDKey      = "cdp/next-vault-id"
	incomeKey           = "cdp/available-income"
	payeesKey           = "cdp/payees"
	lastReleasedAtKey   = "cdp/last-released-at"
	liqFeesKeyFormat    = "cdp/liquidation-fees/%s"
)

func configKey(collateralType string) []byte {
	return []byte(fmt.Sprintf(configKeyFormat, collateralType))
}

func rateKey(collateralType string) []byte {
	return []byte(fmt.Sprintf(rateKeyFormat, collateralType))
}

func totalBaseDebtKey(collateralType string) []byte {
	return []byte(fmt.Sprintf(totalBaseKeyFormat, collateralType))
}

func vaultKey(id uint64) []byte {
	return []byte(fmt.Sprintf(vaultKeyFormat, id))
}

func vaultIndexKey(collateralType string, owner common.Address) []byte {
	return []byte(fmt.Sprintf(vaultIndexKeyFormat, collateralType, strings.ToLower(owner.Hex())))
}

// store persists engine state through the RLP key-value surface.
type store struct {
	kv KVStore
}

func (s store) config(collateralType string) (*CollateralConfig, bool, error) {
	cfg := new(CollateralConfig)
	ok, err := s.kv.KVGet(configKey(collateralType), cfg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg, true, nil
}

func (s store) putConfig(cfg *CollateralConfig) error {
	return s.kv.KVPut(configKey(cfg.CollateralType), cfg)
}

func (s store) configTypes() ([]string, error) {
	var raw [][]byte
	if err := s.kv.KVGetList([]byte(configListKey), &raw); err != nil {
		return nil, err
	}
	types := make([]string, len(raw))
	for i, entry := range raw {
		types[i] = string(entry)
	}
	return types, nil
}

func (s store) appendConfigType(collateralType string) error {
	return s.kv.KVAppend([]byte(configListKey), []byte(collateralType))
}

func (s store) rate(collateralType string) (*RateState, error) {
	state := new(RateState)
	ok, err := s.kv.KVGet(rateKey(collateralType), state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &RateState{CumulativeRate: new(big.Int).Set(RAY)}, nil
	}
	if state.CumulativeRate == nil || state.CumulativeRate.Cmp(RAY) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRateIndex, collateralType)
	}
	return state, nil
}

func (s store) putRate(collateralType string, state *RateState) error {
	return s.kv.KVPut(rateKey(collateralType), state)
}

func (s store) totalBaseDebt(collateralType string) (*big.Int, error) {
	return s.bigInt(totalBaseDebtKey(collateralType))
}

func (s store) putTotalBaseDebt(collateralType string, amount *big.Int) error {
	return s.kv.KVPut(totalBaseDebtKey(collateralType), amount)
}

func (s store) vault(id uint64) (*Vault, error) {
	vault := new(Vault)
	ok, err := s.kv.KVGet(vaultKey(id), vault)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if vault.CollateralBalance == nil {
		vault.CollateralBalance = zero()
	}
	if vault.BaseDebt == nil {
		vault.BaseDebt = zero()
	}
	return vault, nil
}

func (s store) putVault(vault *Vault) error {
	return s.kv.KVPut(vaultKey(vault.ID), vault)
}

func (s store) vaultID(collateralType string, owner common.Address) (uint64, error) {
	var id uint64
	ok, err := s.kv.KVGet(vaultIndexKey(collateralType, owner), &id)
	if err != nil || !ok {
		return 0, err
	}
	return id, nil
}

func (s store) putVaultID(collateralType string, owner common.Address, id uint64) error {
	return s.kv.KVPut(vaultIndexKey(collateralType, owner), id)
}

func (s store) counter(key string) (uint64, error) {
	var value uint64
	if _, err := s.kv.KVGet([]byte(key), &value); err != nil {
		return 0, err
	}
	return value, nil
}

// nextID increments the counter stored under key and returns the new value,
// so identifiers start at 1.
func (s store) nextID(key string) (uint64, error) {
	current, err := s.counter(key)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.kv.KVPut([]byte(key), next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s store) income() (*big.Int, error) {
	return s.bigInt([]byte(incomeKey))
}

func (s store) putIncome(amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("cdp: negative income %s", amount)
	}
	return s.kv.KVPut([]byte(incomeKey), amount)
}

func (s store) liquidationFees(collateralType string) (*big.Int, error) {
	return s.bigInt([]byte(fmt.Sprintf(liqFeesKeyFormat, collateralType)))
}

func (s store) putLiquidationFees(collateralType string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("cdp: negative liquidation fees %s for %s", amount, collateralType)
	}
	return s.kv.KVPut([]byte(fmt.Sprintf(liqFeesKeyFormat, collateralType)), amount)
}

func (s store) payees() ([]Payee, error) {
	var payees []Payee
	if err := s.kv.KVGetList([]byte(payeesKey), &payees); err != nil {
		return nil, err
	}
	return payees, nil
}

func (s store) putPayees(payees []Payee) error {
	return s.kv.KVPut([]byte(payeesKey), payees)
}

func (s store) lastReleasedAt() (uint64, error) {
	return s.counter(lastReleasedAtKey)
}

func (s store) putLastReleasedAt(ts uint64) error {
	return s.kv.KVPut([]byte(lastReleasedAtKey), ts)
}

func (s store) bigInt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := s.kv.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return zero(), nil
	}
	return value, nil
}
