package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnknownToken          = errors.New("token: unknown token")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrOverflow              = errors.New("token: amount overflows 256 bits")
	ErrZeroAddress           = errors.New("token: zero address")
)

const (
	allowanceKeyFormat = "token/allowance/%s/%s/%s"
	supplyKeyFormat    = "token/supply/%s"
)

// Ledger is a fungible token ledger kept in the shared state manager so that
// token movements revert together with the engine state that caused them.
// Events are held until the state manager commits and dropped when the
// update that produced them is reverted.
type Ledger struct {
	state *cdpstate.Manager

	mu      sync.Mutex
	emitter events.Emitter
	pending []events.Event
}

// NewLedger creates a ledger over the provided state manager.
func NewLedger(state *cdpstate.Manager) *Ledger {
	l := &Ledger{state: state, emitter: events.NoopEmitter{}}
	state.AddHook(l)
	return l
}

// SetEmitter configures where committed token events are published.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.mu.Lock()
	l.emitter = emitter
	l.mu.Unlock()
}

// Committed publishes the events buffered since the last commit.
func (l *Ledger) Committed() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	emitter := l.emitter
	l.mu.Unlock()
	for _, evt := range batch {
		emitter.Emit(evt)
	}
}

// Reverted drops the buffered events.
func (l *Ledger) Reverted() {
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
}

func (l *Ledger) emit(evt events.Event) {
	l.mu.Lock()
	l.pending = append(l.pending, evt)
	l.mu.Unlock()
}

// Register adds a new token. Symbols are case-insensitive.
func (l *Ledger) Register(symbol, name string, decimals uint8) error {
	return l.state.RegisterToken(symbol, name, decimals)
}

// Decimals returns the number of decimals of a registered token.
func (l *Ledger) Decimals(symbol string) (uint8, error) {
	meta, err := l.state.Token(symbol)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, cdpstate.NormalizeSymbol(symbol))
	}
	return meta.Decimals, nil
}

func (l *Ledger) requireToken(symbol string) (string, error) {
	normalized := cdpstate.NormalizeSymbol(symbol)
	if !l.state.TokenExists(normalized) {
		return "", fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	return normalized, nil
}

// BalanceOf returns the balance of holder.
func (l *Ledger) BalanceOf(symbol string, holder common.Address) (*big.Int, error) {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.Balance(holder.Bytes(), normalized)
}

// TotalSupply returns the amount minted minus the amount burned.
func (l *Ledger) TotalSupply(symbol string) (*big.Int, error) {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return nil, err
	}
	return l.bigInt(fmt.Sprintf(supplyKeyFormat, normalized))
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(symbol string, from, to common.Address, amount *big.Int) error {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return err
	}
	return l.move(normalized, from, to, amount)
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(symbol string, owner, spender common.Address, amount *big.Int) error {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return err
	}
	if _, err := checkedAmount(amount); err != nil {
		return err
	}
	if err := l.state.KVPut(allowanceKey(normalized, owner, spender), amount); err != nil {
		return err
	}
	l.emit(events.TokenApproved{Token: normalized, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Allowance returns the remaining amount spender may move for owner.
func (l *Ledger) Allowance(symbol string, owner, spender common.Address) (*big.Int, error) {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return nil, err
	}
	return l.bigInt(string(allowanceKey(normalized, owner, spender)))
}

// TransferFrom moves amount out of from's balance using spender's allowance.
func (l *Ledger) TransferFrom(symbol string, spender, from, to common.Address, amount *big.Int) error {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return err
	}
	if _, err := checkedAmount(amount); err != nil {
		return err
	}
	key := allowanceKey(normalized, from, spender)
	allowance, err := l.bigInt(string(key))
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.state.KVPut(key, new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	return l.move(normalized, from, to, amount)
}

// Mint creates amount new tokens for to.
func (l *Ledger) Mint(symbol string, to common.Address, amount *big.Int) error {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, err := checkedAmount(amount); err != nil {
		return err
	}
	balance, err := l.state.Balance(to.Bytes(), normalized)
	if err != nil {
		return err
	}
	newBalance, err := checkedAdd(balance, amount)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply(normalized)
	if err != nil {
		return err
	}
	newSupply, err := checkedAdd(supply, amount)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(to.Bytes(), normalized, newBalance); err != nil {
		return err
	}
	if err := l.state.KVPut([]byte(fmt.Sprintf(supplyKeyFormat, normalized)), newSupply); err != nil {
		return err
	}
	l.emit(events.TokenSupplyChanged{Kind: events.TypeTokenMinted, Token: normalized, Account: to, Amount: new(big.Int).Set(amount), Supply: newSupply})
	return nil
}

// Burn destroys amount tokens held by from.
func (l *Ledger) Burn(symbol string, from common.Address, amount *big.Int) error {
	normalized, err := l.requireToken(symbol)
	if err != nil {
		return err
	}
	if _, err := checkedAmount(amount); err != nil {
		return err
	}
	balance, err := l.state.Balance(from.Bytes(), normalized)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s", ErrInsufficientBalance, balance, amount)
	}
	supply, err := l.TotalSupply(normalized)
	if err != nil {
		return err
	}
	newSupply := new(big.Int).Sub(supply, amount)
	if newSupply.Sign() < 0 {
		newSupply = big.NewInt(0)
	}
	if err := l.state.SetBalance(from.Bytes(), normalized, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := l.state.KVPut([]byte(fmt.Sprintf(supplyKeyFormat, normalized)), newSupply); err != nil {
		return err
	}
	l.emit(events.TokenSupplyChanged{Kind: events.TypeTokenBurned, Token: normalized, Account: from, Amount: new(big.Int).Set(amount), Supply: newSupply})
	return nil
}

func (l *Ledger) move(symbol string, from, to common.Address, amount *big.Int) error {
	if _, err := checkedAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBalance, err := l.state.Balance(from.Bytes(), symbol)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	toBalance, err := l.state.Balance(to.Bytes(), symbol)
	if err != nil {
		return err
	}
	newTo, err := checkedAdd(toBalance, amount)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from.Bytes(), symbol, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.state.SetBalance(to.Bytes(), symbol, newTo); err != nil {
		return err
	}
	l.emit(events.TokenTransferred{Token: symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) bigInt(key string) (*big.Int, error) {
	value := new(big.Int)
	ok, err := l.state.KVGet([]byte(key), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func allowanceKey(symbol string, owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf(allowanceKeyFormat, symbol, strings.ToLower(owner.Hex()), strings.ToLower(spender.Hex())))
}

func checkedAmount(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrOverflow
	}
	return value, nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	left, err := checkedAmount(a)
	if err != nil {
		return nil, err
	}
	right, err := checkedAmount(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(left, right)
	if overflow {
		return nil, ErrOverflow
	}
	return sum.ToBig(), nil
}
