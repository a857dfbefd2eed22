package cdp

import "math/big"

// SecondsPerYear is the horizon used when annualising per-second rates.
const SecondsPerYear = 31_536_000

var (
	// RAY is the 1e27 fixed-point scale used by borrow rates and the
	// cumulative rate index.
	RAY = mustBigInt("1000000000000000000000000000")
	// WAD is the 1e18 fixed-point scale used by ratios, fees and prices.
	WAD = mustBigInt("1000000000000000000")

	halfRay = new(big.Int).Rsh(RAY, 1)
	halfWad = new(big.Int).Rsh(WAD, 1)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func zero() *big.Int { return big.NewInt(0) }

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return zero()
	}
	return new(big.Int).Set(v)
}

func isZero(v *big.Int) bool { return v == nil || v.Sign() == 0 }

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return zero()
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	return product.Quo(product, RAY)
}

func wadMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return zero()
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfWad)
	return product.Quo(product, WAD)
}

// mulDivDown returns floor(a*b/c). It panics when c is zero; callers check
// their divisors.
func mulDivDown(a, b, c *big.Int) *big.Int {
	if c == nil || c.Sign() == 0 {
		panic("cdp: division by zero")
	}
	if a == nil || b == nil {
		return zero()
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c)
}

// mulDivUp returns ceil(a*b/c). It panics when c is zero.
func mulDivUp(a, b, c *big.Int) *big.Int {
	if c == nil || c.Sign() == 0 {
		panic("cdp: division by zero")
	}
	if a == nil || b == nil {
		return zero()
	}
	product := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).QuoRem(product, c, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// Compound raises a ray-scaled per-second rate to the power of elapsed
// seconds using exponentiation by squaring. Every intermediate product is
// rounded half up.
func Compound(baseRate *big.Int, elapsed uint64) *big.Int {
	if baseRate == nil {
		return new(big.Int).Set(RAY)
	}
	x := new(big.Int).Set(baseRate)
	n := elapsed
	var z *big.Int
	if n%2 == 1 {
		z = new(big.Int).Set(x)
	} else {
		z = new(big.Int).Set(RAY)
	}
	for n /= 2; n != 0; n /= 2 {
		x = rayMul(x, x)
		if n%2 == 1 {
			z = rayMul(z, x)
		}
	}
	return z
}

// AnnualizedRate returns the growth factor of a per-second rate over one year.
func AnnualizedRate(baseRate *big.Int) *big.Int {
	return Compound(baseRate, SecondsPerYear)
}

// CalculateDebt converts a base debt into the amount owed at the supplied
// cumulative rate, rounding down.
func CalculateDebt(baseDebt, cumulativeRate *big.Int) *big.Int {
	return mulDivDown(baseDebt, cumulativeRate, RAY)
}

// CalculateBaseDebt converts an amount into base debt at the supplied
// cumulative rate, rounding up so the recognised debt never falls short of
// the amount issued.
func CalculateBaseDebt(amount, cumulativeRate *big.Int) (*big.Int, error) {
	if cumulativeRate == nil || cumulativeRate.Cmp(RAY) < 0 {
		return nil, ErrInvalidRateIndex
	}
	return mulDivUp(amount, RAY, cumulativeRate), nil
}
