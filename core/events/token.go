package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cdpchain/core/types"
)

const (
	// TypeTokenMinted reports new units credited to an account.
	TypeTokenMinted = "token.minted"
	// TypeTokenBurned reports units removed from an account and from supply.
	TypeTokenBurned = "token.burned"
	// TypeTokenTransferred reports a balance move, including custody deposits
	// and payouts.
	TypeTokenTransferred = "token.transferred"
	// TypeTokenApproved reports a new spending allowance.
	TypeTokenApproved = "token.approved"
)

// TokenSupplyChanged is emitted by the ledger for mints and burns. Kind is
// TypeTokenMinted or TypeTokenBurned.
type TokenSupplyChanged struct {
	Kind    string
	Token   string
	Account common.Address
	Amount  *big.Int
	Supply  *big.Int
}

func (e TokenSupplyChanged) EventType() string {
	if e.Kind == TypeTokenBurned {
		return TypeTokenBurned
	}
	return TypeTokenMinted
}

func (e TokenSupplyChanged) Event() *types.Event {
	attrs := map[string]string{
		"token":  normalizeAsset(e.Token),
		"amount": amountString(e.Amount),
		"supply": amountString(e.Supply),
	}
	setAddress(attrs, "account", e.Account)
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// TokenTransferred records a move between two accounts.
type TokenTransferred struct {
	Token  string
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Event() *types.Event {
	attrs := map[string]string{
		"token":  normalizeAsset(e.Token),
		"amount": amountString(e.Amount),
	}
	setAddress(attrs, "from", e.From)
	setAddress(attrs, "to", e.To)
	return &types.Event{Type: TypeTokenTransferred, Attributes: attrs}
}

// TokenApproved records the allowance an owner granted a spender.
type TokenApproved struct {
	Token   string
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (TokenApproved) EventType() string { return TypeTokenApproved }

func (e TokenApproved) Event() *types.Event {
	attrs := map[string]string{
		"token":  normalizeAsset(e.Token),
		"amount": amountString(e.Amount),
	}
	setAddress(attrs, "owner", e.Owner)
	setAddress(attrs, "spender", e.Spender)
	return &types.Event{Type: TypeTokenApproved, Attributes: attrs}
}
