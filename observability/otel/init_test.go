package otel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,bad, =x,tenant=cdp")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "tenant": "cdp"}, headers)
	require.Empty(t, ParseHeaders(""))
}

func TestInitWithoutEndpointIsLocal(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "cdpd", Traces: true, Metrics: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestSampler(t *testing.T) {
	require.True(t, strings.Contains(Sampler(0).Description(), "AlwaysOnSampler"))
	require.True(t, strings.Contains(Sampler(0.25).Description(), "TraceIDRatioBased{0.25}"))
}
