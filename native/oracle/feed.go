package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	ErrPriceUnavailable = errors.New("oracle: price unavailable")
	ErrStalePrice       = errors.New("oracle: price is stale")
	ErrInvalidPrice     = errors.New("oracle: price must be positive")
)

// DecimalsSource resolves the number of decimals of a token.
type DecimalsSource interface {
	Decimals(symbol string) (uint8, error)
}

// Quote is a price observation for one whole token, expressed in stablecoin
// units with 18 decimals.
type Quote struct {
	Price     *big.Int
	UpdatedAt time.Time
	Source    string
}

// Clone returns a deep copy of the quote.
func (q Quote) Clone() Quote {
	clone := Quote{UpdatedAt: q.UpdatedAt, Source: q.Source}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	return clone
}

// Feed keeps the latest quote per collateral symbol and converts between raw
// token units and stablecoin value.
type Feed struct {
	mu       sync.RWMutex
	quotes   map[string]Quote
	decimals DecimalsSource
	maxAge   time.Duration
	nowFn    func() time.Time
}

// NewFeed creates a feed. A zero maxAge disables the staleness check.
func NewFeed(decimals DecimalsSource, maxAge time.Duration) *Feed {
	return &Feed{
		quotes:   make(map[string]Quote),
		decimals: decimals,
		maxAge:   maxAge,
		nowFn:    time.Now,
	}
}

// SetNowFunc overrides the clock used by the staleness check.
func (f *Feed) SetNowFunc(now func() time.Time) {
	if f == nil || now == nil {
		return
	}
	f.mu.Lock()
	f.nowFn = now
	f.mu.Unlock()
}

// SetPrice records a new quote for symbol at the current time.
func (f *Feed) SetPrice(symbol string, price *big.Int, source string) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	normalized := normalize(symbol)
	if normalized == "" {
		return fmt.Errorf("oracle: symbol required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[normalized] = Quote{Price: new(big.Int).Set(price), UpdatedAt: f.nowFn(), Source: strings.TrimSpace(source)}
	return nil
}

// Quote returns the latest quote for symbol regardless of its age.
func (f *Feed) Quote(symbol string) (Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	quote, ok := f.quotes[normalize(symbol)]
	if !ok {
		return Quote{}, false
	}
	return quote.Clone(), true
}

// Quotes returns a copy of every quote keyed by symbol.
func (f *Feed) Quotes() map[string]Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]Quote, len(f.quotes))
	for symbol, quote := range f.quotes {
		out[symbol] = quote.Clone()
	}
	return out
}

// PriceOf returns the value of one whole token of symbol.
func (f *Feed) PriceOf(symbol string) (*big.Int, error) {
	normalized := normalize(symbol)
	f.mu.RLock()
	quote, ok := f.quotes[normalized]
	now := f.nowFn()
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, normalized)
	}
	if f.maxAge > 0 && now.Sub(quote.UpdatedAt) > f.maxAge {
		return nil, fmt.Errorf("%w: %s updated %s", ErrStalePrice, normalized, quote.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return new(big.Int).Set(quote.Price), nil
}

// ConvertFrom values amount raw units of symbol, rounding down.
func (f *Feed) ConvertFrom(symbol string, amount *big.Int) (*big.Int, error) {
	price, unit, err := f.priceAndUnit(symbol)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return big.NewInt(0), nil
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, unit), nil
}

// ConvertTo returns the raw units of symbol worth value, rounding down.
func (f *Feed) ConvertTo(symbol string, value *big.Int) (*big.Int, error) {
	price, unit, err := f.priceAndUnit(symbol)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return big.NewInt(0), nil
	}
	amount := new(big.Int).Mul(value, unit)
	return amount.Quo(amount, price), nil
}

func (f *Feed) priceAndUnit(symbol string) (*big.Int, *big.Int, error) {
	price, err := f.PriceOf(symbol)
	if err != nil {
		return nil, nil, err
	}
	decimals := uint8(18)
	if f.decimals != nil {
		decimals, err = f.decimals.Decimals(symbol)
		if err != nil {
			return nil, nil, fmt.Errorf("oracle: decimals of %s: %w", normalize(symbol), err)
		}
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return price, unit, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
