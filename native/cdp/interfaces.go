package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceFeed values collateral in stablecoin units (WAD scaled).
type PriceFeed interface {
	// PriceOf returns the value of one whole collateral token.
	PriceOf(collateralType string) (*big.Int, error)
	// ConvertFrom values an amount of raw collateral units.
	ConvertFrom(collateralType string, amount *big.Int) (*big.Int, error)
	// ConvertTo returns the raw collateral units worth the supplied value.
	ConvertTo(collateralType string, value *big.Int) (*big.Int, error)
}

// TokenLedger moves, mints and burns tokens on behalf of the engine.
// TransferIn pulls tokens from an account into the engine's custody and
// TransferOut pays them back out.
type TokenLedger interface {
	TransferIn(token string, from common.Address, amount *big.Int) error
	TransferOut(token string, to common.Address, amount *big.Int) error
	Mint(token string, to common.Address, amount *big.Int) error
	Burn(token string, from common.Address, amount *big.Int) error
	BalanceOf(token string, holder common.Address) (*big.Int, error)
}

// AccessControl gates the manager-only configuration surface.
type AccessControl interface {
	IsManager(addr common.Address) bool
}

// Journal provides the all-or-nothing semantics of every engine operation.
// Update commits the writes made by fn when it returns nil and discards them
// otherwise.
type Journal interface {
	Update(fn func() error) error
}

// KVStore is the RLP key-value surface the engine persists through.
type KVStore interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// StateBackend combines the storage and journaling capabilities required by
// the engine. core/state.Manager satisfies it.
type StateBackend interface {
	KVStore
	Journal
}
