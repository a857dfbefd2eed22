package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cdpchain/core/events"
)

func TestGatewayObserve(t *testing.T) {
	m := Gateway()
	m.Observe("/v1/cdp/vaults/{id}", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	m.Observe("/v1/cdp/vaults/{id}", http.MethodGet, http.StatusNotFound, time.Millisecond)
	m.RecordThrottle("", "rate_limit")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/v1/cdp/vaults/{id}", "GET", "error")); got != 1 {
		t.Fatalf("unexpected error requests: %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("/v1/cdp/vaults/{id}", "GET", "404")); got != 1 {
		t.Fatalf("unexpected 404 count: %v", got)
	}
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "rate_limit")); got != 1 {
		t.Fatalf("unexpected throttle count: %v", got)
	}
}

func TestEventCounterEmits(t *testing.T) {
	counter := Events()
	var emitter events.Emitter = events.Fanout{counter, events.NoopEmitter{}}
	emitter.Emit(events.CDPFeeReleased{})
	emitter.Emit(events.CDPFeeReleased{})

	if got := testutil.ToFloat64(counter.emitted.WithLabelValues(events.TypeCDPFeeReleased)); got != 2 {
		t.Fatalf("unexpected event count: %v", got)
	}
}
