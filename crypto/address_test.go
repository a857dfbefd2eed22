package crypto

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseAddressHexAndBech32(t *testing.T) {
	want := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	got, err := ParseAddress("0x00000000000000000000000000000000000000A1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	encoded, err := EncodeBech32(CDPPrefix, want)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "cdp1"))

	got, err = ParseAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "0x1234", "cdp1notvalid", "hello"} {
		_, err := ParseAddress(raw)
		require.Error(t, err, raw)
		require.True(t, errors.Is(err, ErrInvalidAddress), raw)
	}
	require.Panics(t, func() { MustParseAddress("nope") })
}
