package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Custody exposes the ledger to a module that holds tokens in its own account.
// Deposits are pulled with the depositor's allowance to the module.
type Custody struct {
	ledger *Ledger
	module common.Address
}

// NewCustody binds the ledger to the module account.
func NewCustody(ledger *Ledger, module common.Address) *Custody {
	return &Custody{ledger: ledger, module: module}
}

func (c *Custody) TransferIn(symbol string, from common.Address, amount *big.Int) error {
	return c.ledger.TransferFrom(symbol, c.module, from, c.module, amount)
}

func (c *Custody) TransferOut(symbol string, to common.Address, amount *big.Int) error {
	return c.ledger.Transfer(symbol, c.module, to, amount)
}

func (c *Custody) Mint(symbol string, to common.Address, amount *big.Int) error {
	return c.ledger.Mint(symbol, to, amount)
}

func (c *Custody) Burn(symbol string, from common.Address, amount *big.Int) error {
	return c.ledger.Burn(symbol, from, amount)
}

func (c *Custody) BalanceOf(symbol string, holder common.Address) (*big.Int, error) {
	return c.ledger.BalanceOf(symbol, holder)
}
