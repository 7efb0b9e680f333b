package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-wallet/internal/account"
)

// Well known hardhat account #0.
const (
	knownKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	knownAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestDerive(t *testing.T) {
	tt := []struct {
		name    string
		key     string
		addr    string
		invalid bool
	}{
		{name: "prefixed", key: knownKey, addr: knownAddr},
		{name: "bare", key: knownKey[2:], addr: knownAddr},
		{name: "padded", key: "  " + knownKey + "\n", addr: knownAddr},
		{name: "empty", key: "", invalid: true},
		{name: "short", key: "0x1234", invalid: true},
		{name: "not hex", key: "0x" + "zz" + knownKey[4:], invalid: true},
		{name: "zero scalar", key: "0x0000000000000000000000000000000000000000000000000000000000000000", invalid: true},
	}

	for i, tc := range tt {
		addr, err := account.Derive(tc.key)
		if tc.invalid {
			require.ErrorIs(t, err, account.ErrInvalidKey, "[case:%d] %s", i, tc.name)
			continue
		}
		require.NoError(t, err, "[case:%d] %s", i, tc.name)
		assert.Equal(t, tc.addr, addr.Hex(), "[case:%d] %s", i, tc.name)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	a, err := account.Derive(knownKey)
	require.NoError(t, err)
	b, err := account.Derive(knownKey)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateRoundTrip(t *testing.T) {
	acc, err := account.Generate()
	require.NoError(t, err)

	addr, err := account.Derive(acc.KeyHex())
	require.NoError(t, err)
	assert.Equal(t, acc.Address, addr)
	assert.NotContains(t, acc.String(), acc.KeyHex()[2:])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", account.Mask("0x1234"))
	assert.Equal(t, "0xac09…ff80", account.Mask(knownKey))
}

func TestChecksum(t *testing.T) {
	addr, err := account.Derive(knownKey)
	require.NoError(t, err)
	assert.Equal(t, knownAddr, account.Checksum(addr))
}
