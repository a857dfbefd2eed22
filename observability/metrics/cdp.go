package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CDPMetrics struct {
	operations     *prometheus.CounterVec
	liquidations   *prometheus.CounterVec
	insurancePaid  prometheus.Counter
	incomeReleased prometheus.Counter
	cumulativeRate *prometheus.GaugeVec
	collateralDebt *prometheus.GaugeVec
}

var (
	cdpOnce     sync.Once
	cdpRegistry *CDPMetrics
)

// CDP returns the lazily registered engine metrics.
func CDP() *CDPMetrics {
	cdpOnce.Do(func() {
		cdpRegistry = &CDPMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_operations_total",
				Help: "Count of engine operations by name and result.",
			}, []string{"operation", "result"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdp_liquidations_total",
				Help: "Count of liquidations by collateral type and mode.",
			}, []string{"collateral", "mode"}),
			insurancePaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cdp_insurance_paid_total",
				Help: "Stablecoin burned from the insurance reserve, in whole tokens.",
			}),
			incomeReleased: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cdp_income_released_total",
				Help: "Protocol income minted to payees, in whole tokens.",
			}),
			cumulativeRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "cdp_cumulative_rate",
				Help: "Cumulative borrow rate index per collateral type.",
			}, []string{"collateral"}),
			collateralDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "cdp_collateral_debt",
				Help: "Recognised debt per collateral type, in whole tokens.",
			}, []string{"collateral"}),
		}
		prometheus.MustRegister(
			cdpRegistry.operations,
			cdpRegistry.liquidations,
			cdpRegistry.insurancePaid,
			cdpRegistry.incomeReleased,
			cdpRegistry.cumulativeRate,
			cdpRegistry.collateralDebt,
		)
	})
	return cdpRegistry
}

// ObserveOperation records the result of an engine call. Result is usually
// "ok" or the error kind.
func (m *CDPMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *CDPMetrics) ObserveLiquidation(collateral string, partial bool) {
	if m == nil {
		return
	}
	mode := "full"
	if partial {
		mode = "partial"
	}
	m.liquidations.WithLabelValues(label(collateral), mode).Inc()
}

func (m *CDPMetrics) AddInsurancePaid(amount *big.Int) {
	if m == nil {
		return
	}
	m.insurancePaid.Add(scaled(amount, 18))
}

func (m *CDPMetrics) AddIncomeReleased(amount *big.Int) {
	if m == nil {
		return
	}
	m.incomeReleased.Add(scaled(amount, 18))
}

func (m *CDPMetrics) SetCumulativeRate(collateral string, rate *big.Int) {
	if m == nil {
		return
	}
	m.cumulativeRate.WithLabelValues(label(collateral)).Set(scaled(rate, 27))
}

func (m *CDPMetrics) SetCollateralDebt(collateral string, debt *big.Int) {
	if m == nil {
		return
	}
	m.collateralDebt.WithLabelValues(label(collateral)).Set(scaled(debt, 18))
}

func label(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}

// scaled converts a fixed-point integer into a float for exposition.
func scaled(v *big.Int, decimals int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	denom := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(v), denom).Float64()
	return out
}
