package oracle

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

type staticDecimals map[string]uint8

func (s staticDecimals) Decimals(symbol string) (uint8, error) {
	d, ok := s[normalize(symbol)]
	if !ok {
		return 0, errors.New("unknown token")
	}
	return d, nil
}

func wad(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000_000_000_000_000))
}

func TestConvertWithDecimals(t *testing.T) {
	feed := NewFeed(staticDecimals{"WBTC": 8, "WETH": 18}, 0)
	if err := feed.SetPrice("wbtc", wad(30_000), "test"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := feed.SetPrice("WETH", wad(2_000), "test"); err != nil {
		t.Fatalf("set price: %v", err)
	}

	// 0.5 WBTC
	value, err := feed.ConvertFrom("WBTC", big.NewInt(50_000_000))
	if err != nil {
		t.Fatalf("convert from: %v", err)
	}
	if value.Cmp(wad(15_000)) != 0 {
		t.Fatalf("unexpected value: got %s want %s", value, wad(15_000))
	}

	amount, err := feed.ConvertTo("weth", wad(1_000))
	if err != nil {
		t.Fatalf("convert to: %v", err)
	}
	want := new(big.Int).Div(wad(1), big.NewInt(2))
	if amount.Cmp(want) != 0 {
		t.Fatalf("unexpected amount: got %s want %s", amount, want)
	}
}

func TestStaleAndMissingPrices(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feed := NewFeed(nil, time.Minute)
	feed.SetNowFunc(func() time.Time { return now })

	if _, err := feed.PriceOf("WETH"); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
	if err := feed.SetPrice("WETH", big.NewInt(0), "test"); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if err := feed.SetPrice("WETH", wad(2_000), "test"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := feed.PriceOf("WETH"); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
	if quote, ok := feed.Quote("weth"); !ok || quote.Source != "test" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}
